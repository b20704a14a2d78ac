// Package translation wraps a Sarvam-compatible translate endpoint.
package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"
)

// ErrInputTooLong means the provider will not take the text in one call.
// Callers truncate and resubmit.
var ErrInputTooLong = errors.New("translation input exceeds the provider character ceiling")

// Config configures the Sarvam translate client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Mode    string
	// Ceiling is the provider's per-call character limit.
	Ceiling int
}

// Client calls the Sarvam /translate endpoint.
type Client struct {
	cfg    Config
	client *http.Client
}

type translateRequest struct {
	Input               string `json:"input"`
	SourceLanguageCode  string `json:"source_language_code"`
	TargetLanguageCode  string `json:"target_language_code"`
	Model               string `json:"model,omitempty"`
	Mode                string `json:"mode,omitempty"`
	EnablePreprocessing bool   `json:"enable_preprocessing"`
}

type translateResponse struct {
	TranslatedText string `json:"translated_text"`
	RequestID      string `json:"request_id"`
}

// NewClient creates a translate client. An empty BaseURL means the public
// API and a zero Ceiling means 1000 characters.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.sarvam.ai"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Ceiling <= 0 {
		cfg.Ceiling = 1000
	}
	return &Client{cfg: cfg, client: &http.Client{}}
}

// Ceiling is the largest input, in characters, one call accepts.
func (c *Client) Ceiling() int {
	return c.cfg.Ceiling
}

// Translate returns text unchanged when the source is already English.
func (c *Client) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if IsEnglish(sourceLang) {
		return text, nil
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("nothing to translate")
	}
	if utf8.RuneCountInString(text) > c.cfg.Ceiling {
		return "", ErrInputTooLong
	}

	payload, err := json.Marshal(translateRequest{
		Input:               text,
		SourceLanguageCode:  NormalizeLanguageCode(sourceLang),
		TargetLanguageCode:  NormalizeLanguageCode(targetLang),
		Model:               c.cfg.Model,
		Mode:                c.cfg.Mode,
		EnablePreprocessing: true,
	})
	if err != nil {
		return "", fmt.Errorf("marshal translate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/translate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create translate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-subscription-key", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read translate response: %w", err)
	}

	if resp.StatusCode == http.StatusRequestEntityTooLarge || (resp.StatusCode == http.StatusBadRequest && mentionsLength(body)) {
		return "", ErrInputTooLong
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translate api error (status %d): %s", resp.StatusCode, string(body))
	}

	var out translateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode translate response: %w", err)
	}
	translated := strings.TrimSpace(out.TranslatedText)
	if translated == "" {
		return "", errors.New("translate api returned empty text")
	}
	return translated, nil
}

func mentionsLength(body []byte) bool {
	lower := strings.ToLower(string(body))
	for _, marker := range []string{"too long", "exceed", "max length", "maximum length", "1000 characters"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
