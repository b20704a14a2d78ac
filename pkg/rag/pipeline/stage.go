package pipeline

import "fmt"

// Stage is one state of the per-turn machine.
type Stage string

const (
	StageReceived     Stage = "RECEIVED"
	StageTranscribing Stage = "TRANSCRIBING"
	StageTranslating  Stage = "TRANSLATING"
	StageRouting      Stage = "ROUTING"
	StageRetrieving   Stage = "RETRIEVING"
	StageRecalling    Stage = "RECALLING"
	StageGenerating   Stage = "GENERATING"
	StagePersisting   Stage = "PERSISTING"
	StageDone         Stage = "DONE"
	StageErrored      Stage = "ERRORED"
)

var transitions = map[Stage][]Stage{
	StageReceived:     {StageTranscribing, StageTranslating, StageRouting},
	StageTranscribing: {StageTranslating, StageRouting},
	StageTranslating:  {StageRouting},
	StageRouting:      {StageRetrieving, StageRecalling},
	StageRetrieving:   {StageGenerating},
	StageRecalling:    {StageGenerating},
	StageGenerating:   {StagePersisting},
	StagePersisting:   {StageDone},
}

// Terminal reports whether s ends a turn.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageErrored
}

// CanTransition reports whether next may follow s. ERRORED is reachable
// from every non-terminal stage.
func (s Stage) CanTransition(next Stage) bool {
	if s.Terminal() {
		return false
	}
	if next == StageErrored {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// machine tracks one turn's progress. Stages only move forward, so a trace
// never holds the same stage twice.
type machine struct {
	current Stage
	trace   []Stage
}

func newMachine() *machine {
	return &machine{current: StageReceived, trace: []Stage{StageReceived}}
}

func (m *machine) advance(next Stage) error {
	if !m.current.CanTransition(next) {
		return fmt.Errorf("illegal stage transition %s -> %s", m.current, next)
	}
	m.current = next
	m.trace = append(m.trace, next)
	return nil
}

// Trace lists the stages entered so far.
func (m *machine) Trace() []Stage {
	out := make([]Stage, len(m.trace))
	copy(out, m.trace)
	return out
}
