// Package pipeline runs one conversational turn: transcription, translation,
// routing, retrieval or recall, generation and persistence, in that order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"ai-voicechat-be/internal/entity"
	"ai-voicechat-be/internal/pkg/logger"
	"ai-voicechat-be/pkg/asr"
	"ai-voicechat-be/pkg/embedding"
	"ai-voicechat-be/pkg/events"
	"ai-voicechat-be/pkg/lock"
	"ai-voicechat-be/pkg/rag/prompt"
	"ai-voicechat-be/pkg/rag/router"
	"ai-voicechat-be/pkg/translation"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const module = "ORCHESTRATOR"

var tracer = otel.Tracer("ai-voicechat-be/pipeline")

// TurnInput carries either typed text or recorded audio, never both.
// Language is a BCP-47 hint such as "hi-IN"; typed text without a hint has
// its language detected from its script.
type TurnInput struct {
	Text     string
	Audio    []byte
	Filename string
	Language string
}

// IsAudio reports whether the turn carries audio.
func (in TurnInput) IsAudio() bool {
	return len(in.Audio) > 0
}

func (in TurnInput) validate() error {
	hasText := strings.TrimSpace(in.Text) != ""
	switch {
	case hasText && in.IsAudio():
		return fmt.Errorf("%w: both text and audio given", ErrInvalidInput)
	case !hasText && !in.IsAudio():
		return fmt.Errorf("%w: message is empty", ErrInvalidInput)
	}
	return nil
}

// Response is the answer to one turn plus what the pipeline learned on the way.
type Response struct {
	Answer         string
	Source         entity.Provenance
	Transcription  string
	Translation    string
	SourceLanguage string
	ChunksUsed     int
	Sequence       int64
	Trace          []Stage
}

// Timeouts bound every remote call of a turn. Zero values take defaults.
type Timeouts struct {
	Transcription time.Duration
	Translation   time.Duration
	Embedding     time.Duration
	Retrieval     time.Duration
	Generation    time.Duration
	Persistence   time.Duration
}

// Config tunes the orchestrator.
type Config struct {
	HistoryWindow      int
	RecallWindow       int
	TopK               int
	TargetLanguage     string
	SupportedLanguages []string
	PendingTTL         time.Duration
	Timeouts           Timeouts
}

// Deps are the collaborators of a turn. Locker, Publisher and Logger are
// optional.
type Deps struct {
	Transcriber Transcriber
	Translator  Translator
	Router      router.Router
	Guard       IndexGuard
	Embedder    Embedder
	Retriever   Retriever
	Prompts     *prompt.Builder
	Generator   Generator
	Sessions    SessionStore
	Locker      lock.Locker
	Publisher   EventPublisher
	Logger      logger.ILogger
}

// Orchestrator runs turns. It is safe for concurrent use.
type Orchestrator struct {
	deps      Deps
	cfg       Config
	supported map[string]bool
	pending   *pendingStore
}

// New creates an Orchestrator, filling unset config with defaults.
func New(deps Deps, cfg Config) *Orchestrator {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 10
	}
	if cfg.RecallWindow <= 0 {
		cfg.RecallWindow = 6
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.TargetLanguage == "" {
		cfg.TargetLanguage = "en-IN"
	}
	cfg.Timeouts = withDefaultTimeouts(cfg.Timeouts)

	if deps.Locker == nil {
		deps.Locker = lock.NewLocal()
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNopLogger()
	}

	supported := make(map[string]bool, len(cfg.SupportedLanguages))
	for _, code := range cfg.SupportedLanguages {
		supported[translation.NormalizeLanguageCode(code)] = true
	}

	return &Orchestrator{
		deps:      deps,
		cfg:       cfg,
		supported: supported,
		pending:   newPendingStore(cfg.PendingTTL),
	}
}

func withDefaultTimeouts(t Timeouts) Timeouts {
	set := func(d *time.Duration, fallback time.Duration) {
		if *d <= 0 {
			*d = fallback
		}
	}
	set(&t.Transcription, 120*time.Second)
	set(&t.Translation, 30*time.Second)
	set(&t.Embedding, 30*time.Second)
	set(&t.Retrieval, 10*time.Second)
	set(&t.Generation, 60*time.Second)
	set(&t.Persistence, 10*time.Second)
	return t
}

// turn is the working state of one HandleTurn call.
type turn struct {
	*machine
	sessionID uuid.UUID
	input     TurnInput
	sequence  int64
	history   []*entity.ChatTurn

	text          string
	language      string
	transcription string
	translation   string
	question      string

	decision   router.Decision
	prompt     *prompt.Prompt
	chunksUsed int
	source     entity.Provenance
	answer     string
}

func (t *turn) response() *Response {
	return &Response{
		Answer:         t.answer,
		Source:         t.source,
		Transcription:  t.transcription,
		Translation:    t.translation,
		SourceLanguage: t.language,
		ChunksUsed:     t.chunksUsed,
		Sequence:       t.sequence,
		Trace:          t.Trace(),
	}
}

func sessionLockKey(id uuid.UUID) string {
	return "session:" + id.String()
}

// HandleTurn answers one user turn and appends the user/assistant pair to
// the session. Turns on the same session run one at a time.
//
// Failures before PERSISTING return a *StageError and leave the session
// untouched. A failed append returns a *PersistenceError holding the
// answer and a retry key.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID uuid.UUID, in TurnInput) (*Response, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "pipeline.HandleTurn", trace.WithAttributes(
		attribute.String("session.id", sessionID.String()),
		attribute.Bool("input.audio", in.IsAudio()),
	))
	defer span.End()

	start := time.Now()

	unlock, err := o.deps.Locker.Lock(ctx, sessionLockKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("acquire session lock: %w", err)
	}
	defer unlock()

	t := &turn{machine: newMachine(), sessionID: sessionID, input: in}
	if err := o.load(ctx, t); err != nil {
		return nil, err
	}

	steps := []func(context.Context, *turn) error{
		o.transcribe,
		o.translate,
		o.route,
		o.gather,
		o.generate,
	}
	for _, step := range steps {
		if err := step(ctx, t); err != nil {
			o.recordFailure(span, t, err)
			return nil, err
		}
	}

	resp, err := o.persist(ctx, t)
	if err != nil {
		o.recordFailure(span, t, err)
		return nil, err
	}

	elapsed := time.Since(start)
	span.SetAttributes(
		attribute.String("turn.source", string(resp.Source)),
		attribute.Int("turn.chunks_used", resp.ChunksUsed),
		attribute.Int64("turn.sequence", resp.Sequence),
	)
	o.deps.Logger.Info(module, "Turn completed", map[string]interface{}{
		"session_id":  sessionID.String(),
		"sequence":    resp.Sequence,
		"source":      string(resp.Source),
		"route":       t.decision.Reason,
		"chunks_used": resp.ChunksUsed,
		"elapsed_ms":  elapsed.Milliseconds(),
	})
	o.publish(ctx, events.TurnCompleted(sessionID.String(), resp.Sequence, string(resp.Source), resp.ChunksUsed, elapsed))
	return resp, nil
}

// RetryPersist re-appends a parked turn pair. The stored answer is
// returned as is; nothing is recomputed. The pair keeps its sequence and
// timestamps, so it lands in order even when later turns were stored first.
func (o *Orchestrator) RetryPersist(ctx context.Context, retryKey string) (*Response, error) {
	p, ok := o.pending.get(retryKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRetryKey, retryKey)
	}

	unlock, err := o.deps.Locker.Lock(ctx, sessionLockKey(p.SessionID))
	if err != nil {
		return nil, fmt.Errorf("acquire session lock: %w", err)
	}
	defer unlock()

	pctx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Persistence)
	defer cancel()
	if err := o.deps.Sessions.AppendTurnPair(pctx, p.SessionID, p.User, p.Assistant); err != nil {
		return nil, &PersistenceError{Response: p.Response, RetryKey: retryKey, Err: err}
	}
	o.pending.remove(retryKey)

	o.deps.Logger.Info(module, "Parked turn persisted", map[string]interface{}{"retry_key": retryKey})
	o.publish(ctx, events.TurnCompleted(p.SessionID.String(), p.User.Sequence, string(p.Response.Source), p.Response.ChunksUsed, 0))
	return p.Response, nil
}

// PendingCount is the number of parked turns awaiting RetryPersist.
func (o *Orchestrator) PendingCount() int {
	return o.pending.count()
}

// load runs in RECEIVED: session lookup, recent history and the next sequence.
func (o *Orchestrator) load(ctx context.Context, t *turn) error {
	exists, err := o.deps.Sessions.Exists(ctx, t.sessionID)
	if err != nil {
		return fmt.Errorf("look up session: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, t.sessionID)
	}

	history, err := o.deps.Sessions.RecentTurns(ctx, t.sessionID, o.cfg.HistoryWindow)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	last, err := o.deps.Sessions.LastSequence(ctx, t.sessionID)
	if err != nil {
		return fmt.Errorf("load last sequence: %w", err)
	}
	if parked := o.pending.highestSequence(t.sessionID); parked > last {
		last = parked
	} else {
		o.pending.settle(t.sessionID, last)
	}

	t.history = history
	t.sequence = last + 1
	return nil
}

func (o *Orchestrator) fail(t *turn, kind, err error) error {
	stage := t.current
	_ = t.advance(StageErrored)
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// enter panics on an illegal transition; only a wrong step order can cause one.
func (o *Orchestrator) enter(t *turn, next Stage) {
	if err := t.advance(next); err != nil {
		panic(err)
	}
}

func (o *Orchestrator) transcribe(ctx context.Context, t *turn) error {
	if !t.input.IsAudio() {
		t.text = strings.TrimSpace(t.input.Text)
		if t.input.Language != "" {
			t.language = translation.NormalizeLanguageCode(t.input.Language)
		} else {
			t.language = translation.DetectScript(t.text)
		}
		return nil
	}

	o.enter(t, StageTranscribing)
	ctx, span := tracer.Start(ctx, "pipeline.transcribe")
	defer span.End()

	cctx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Transcription)
	defer cancel()

	tr, err := o.deps.Transcriber.Transcribe(cctx, t.input.Audio, t.input.Filename, t.input.Language)
	if err != nil {
		return o.fail(t, ErrTranscription, err)
	}
	text := strings.TrimSpace(tr.Text)
	if text == "" {
		return o.fail(t, ErrTranscription, asr.ErrEmptyTranscript)
	}

	t.text = text
	t.transcription = text
	switch {
	case tr.Language != "":
		t.language = translation.NormalizeLanguageCode(tr.Language)
	case t.input.Language != "":
		t.language = translation.NormalizeLanguageCode(t.input.Language)
	default:
		t.language = translation.DetectScript(text)
	}
	return nil
}

func (o *Orchestrator) translate(ctx context.Context, t *turn) error {
	t.question = t.text
	if translation.IsEnglish(t.language) {
		return nil
	}

	o.enter(t, StageTranslating)
	ctx, span := tracer.Start(ctx, "pipeline.translate", trace.WithAttributes(attribute.String("language", t.language)))
	defer span.End()

	if !o.supported[t.language] {
		return o.fail(t, ErrTranslation, fmt.Errorf("unsupported source language %q", t.language))
	}

	ceiling := o.deps.Translator.Ceiling()
	input := translation.Truncate(t.text, ceiling)
	if input != t.text {
		o.deps.Logger.Info(module, "Translation input truncated", map[string]interface{}{
			"session_id": t.sessionID.String(),
			"from_chars": utf8.RuneCountInString(t.text),
			"to_chars":   utf8.RuneCountInString(input),
		})
	}

	out, err := o.callTranslator(ctx, input, t.language)
	if errors.Is(err, translation.ErrInputTooLong) {
		// The provider counts differently than we do; one resubmit at half size.
		input = translation.Truncate(input, ceiling/2)
		o.deps.Logger.Warn(module, "Translator rejected length, resubmitting", map[string]interface{}{
			"session_id": t.sessionID.String(),
			"chars":      utf8.RuneCountInString(input),
		})
		out, err = o.callTranslator(ctx, input, t.language)
	}
	if err != nil {
		return o.fail(t, ErrTranslation, err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return o.fail(t, ErrTranslation, errors.New("translation is empty"))
	}
	if utf8.RuneCountInString(out) > ceiling {
		out = translation.Truncate(out, ceiling)
	}

	t.translation = out
	t.question = out
	return nil
}

func (o *Orchestrator) callTranslator(ctx context.Context, text, lang string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Translation)
	defer cancel()
	return o.deps.Translator.Translate(cctx, text, lang, o.cfg.TargetLanguage)
}

func (o *Orchestrator) route(ctx context.Context, t *turn) error {
	o.enter(t, StageRouting)
	ctx, span := tracer.Start(ctx, "pipeline.route")
	defer span.End()

	// Model-assisted routing calls the generator, so it shares its deadline.
	cctx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Generation)
	defer cancel()

	d, err := o.deps.Router.Decide(cctx, t.question, t.history)
	if err != nil {
		return o.fail(t, ErrGeneration, fmt.Errorf("routing: %w", err))
	}
	t.decision = d
	span.SetAttributes(attribute.String("route", string(d.Route)))
	return nil
}

// gather builds the prompt for the chosen route.
func (o *Orchestrator) gather(ctx context.Context, t *turn) error {
	if t.decision.Route == router.RouteHistory {
		return o.recall(t)
	}
	return o.retrieve(ctx, t)
}

func (o *Orchestrator) recall(t *turn) error {
	o.enter(t, StageRecalling)

	recent := t.history
	if len(recent) > o.cfg.RecallWindow {
		recent = recent[len(recent)-o.cfg.RecallWindow:]
	}
	p, err := o.deps.Prompts.History(t.question, recent)
	if err != nil {
		return o.fail(t, ErrGeneration, err)
	}
	t.prompt = p
	t.source = entity.ProvenanceHistory
	return nil
}

func (o *Orchestrator) retrieve(ctx context.Context, t *turn) error {
	o.enter(t, StageRetrieving)
	ctx, span := tracer.Start(ctx, "pipeline.retrieve")
	defer span.End()

	if err := o.deps.Guard.EnsureIndex(ctx); err != nil {
		return o.fail(t, ErrRetrieval, fmt.Errorf("knowledge index unavailable: %w", err))
	}

	ectx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Embedding)
	emb, err := o.deps.Embedder.Generate(ectx, t.question, embedding.TaskQuery)
	cancel()
	if err != nil {
		return o.fail(t, ErrRetrieval, fmt.Errorf("embed question: %w", err))
	}

	rctx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Retrieval)
	passages, err := o.deps.Retriever.Search(rctx, emb.Embedding.Values, o.cfg.TopK)
	cancel()
	if err != nil {
		return o.fail(t, ErrRetrieval, err)
	}

	p, err := o.deps.Prompts.Retrieval(t.question, passages)
	if err != nil {
		return o.fail(t, ErrGeneration, err)
	}
	if len(passages) == 0 {
		o.deps.Logger.Info(module, "No passages above threshold, answering without context", map[string]interface{}{
			"session_id": t.sessionID.String(),
		})
	}

	span.SetAttributes(attribute.Int("passages.found", len(passages)), attribute.Int("passages.used", p.PassagesUsed))
	t.prompt = p
	t.chunksUsed = p.PassagesUsed
	t.source = entity.ProvenanceVectorDB
	return nil
}

func (o *Orchestrator) generate(ctx context.Context, t *turn) error {
	o.enter(t, StageGenerating)
	ctx, span := tracer.Start(ctx, "pipeline.generate", trace.WithAttributes(attribute.Int("prompt.tokens", t.prompt.Tokens)))
	defer span.End()

	cctx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Generation)
	defer cancel()

	answer, err := o.deps.Generator.Generate(cctx, t.prompt)
	if err != nil {
		return o.fail(t, ErrGeneration, err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return o.fail(t, ErrGeneration, errors.New("generator returned an empty answer"))
	}
	t.answer = answer
	return nil
}

// turnPair builds the two turns to append. Timestamps are strictly after
// the newest stored turn so history order by time matches sequence order.
func (o *Orchestrator) turnPair(t *turn) (*entity.ChatTurn, *entity.ChatTurn) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	if n := len(t.history); n > 0 {
		if last := t.history[n-1].CreatedAt; !now.After(last) {
			now = last.Add(time.Microsecond)
		}
	}

	userMeta := &entity.TurnMetadata{SourceLanguage: t.language, InputType: entity.InputText}
	if t.input.IsAudio() {
		userMeta.InputType = entity.InputAudio
		userMeta.Transcription = t.transcription
	}
	if t.translation != "" {
		userMeta.Translation = t.translation
	}

	chunks := t.chunksUsed
	user := &entity.ChatTurn{
		Id:            uuid.New(),
		ChatSessionId: t.sessionID,
		Sequence:      t.sequence,
		Role:          entity.RoleUser,
		Content:       t.question,
		Metadata:      userMeta,
		CreatedAt:     now,
	}
	assistant := &entity.ChatTurn{
		Id:            uuid.New(),
		ChatSessionId: t.sessionID,
		Sequence:      t.sequence,
		Role:          entity.RoleAssistant,
		Content:       t.answer,
		Metadata:      &entity.TurnMetadata{Source: t.source, ChunksUsed: &chunks},
		CreatedAt:     now.Add(time.Microsecond),
	}
	return user, assistant
}

func (o *Orchestrator) persist(ctx context.Context, t *turn) (*Response, error) {
	o.enter(t, StagePersisting)
	ctx, span := tracer.Start(ctx, "pipeline.persist")
	defer span.End()

	user, assistant := o.turnPair(t)

	pctx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Persistence)
	defer cancel()

	if err := o.deps.Sessions.AppendTurnPair(pctx, t.sessionID, user, assistant); err != nil {
		_ = t.advance(StageErrored)
		resp := t.response()
		key := RetryKey(t.sessionID, t.sequence)
		o.pending.park(key, &pendingTurn{SessionID: t.sessionID, User: user, Assistant: assistant, Response: resp})

		o.deps.Logger.Error(module, "Turn computed but not persisted", map[string]interface{}{
			"session_id": t.sessionID.String(),
			"retry_key":  key,
			"error":      err,
		})
		o.publish(ctx, events.TurnUnpersisted(t.sessionID.String(), t.sequence, key))
		return nil, &PersistenceError{Response: resp, RetryKey: key, Err: err}
	}

	o.enter(t, StageDone)
	return t.response(), nil
}

func (o *Orchestrator) recordFailure(span trace.Span, t *turn, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	details := map[string]interface{}{
		"session_id": t.sessionID.String(),
		"trace":      t.Trace(),
		"error":      err,
	}
	var se *StageError
	if errors.As(err, &se) {
		details["stage"] = string(se.Stage)
		details["timeout"] = se.Timeout()
	}
	if errors.As(err, new(*PersistenceError)) {
		return // already logged in persist
	}
	o.deps.Logger.Warn(module, "Turn failed", details)
}

func (o *Orchestrator) publish(ctx context.Context, ev events.Event) {
	// Events outlive the request; a cancelled ctx must not drop them.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := o.deps.Publisher.Publish(pctx, ev); err != nil {
		o.deps.Logger.Warn(module, "Event publish failed", map[string]interface{}{
			"type":  ev.EventType(),
			"error": err.Error(),
		})
	}
}
