// Package asr is the client for the speech-to-text server.
package asr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	ErrEmptyAudio      = errors.New("audio payload is empty")
	ErrEmptyTranscript = errors.New("speech server returned no text")
)

// Transcript is the decoded recognizer reply.
type Transcript struct {
	Text     string
	Language string
	Model    string
}

// Client uploads audio to the speech recognition server.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

// Transcribe uploads the audio as multipart field "file". languageHint is
// forwarded when set; the server may ignore it.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename, languageHint string) (*Transcript, error) {
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}
	if filename == "" {
		filename = "audio.wav"
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("write audio: %w", err)
	}
	if languageHint != "" {
		if err := w.WriteField("language", languageHint); err != nil {
			return nil, fmt.Errorf("write language field: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", &body)
	if err != nil {
		return nil, fmt.Errorf("create transcribe request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcribe request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read transcribe response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("speech server error (status %d): %s", resp.StatusCode, gjson.GetBytes(raw, "detail").String())
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("speech server returned invalid json")
	}

	res := gjson.ParseBytes(raw)
	text := strings.TrimSpace(res.Get("text").String())
	if text == "" {
		return nil, ErrEmptyTranscript
	}
	return &Transcript{
		Text:     text,
		Language: res.Get("language").String(),
		Model:    res.Get("model").String(),
	}, nil
}
