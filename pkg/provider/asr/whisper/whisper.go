// Package whisper provides an asr.Transcriber backed by a whisper.cpp server.
//
// It talks to a running whisper-server binary, which exposes a REST API at
// POST /inference accepting multipart/form-data with the audio file plus
// optional language and model hint fields, and answering with a JSON body
// containing the transcribed text.
//
// Usage:
//
//	c, err := whisper.New("http://localhost:8080",
//	    whisper.WithLanguage("tl"),
//	)
//	tr, err := c.Transcribe(ctx, asr.Request{Audio: wav})
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/pulox/pulox/pkg/provider/asr"
)

const (
	defaultLanguage = "tl"
	defaultTimeout  = 60 * time.Second
)

var _ asr.Transcriber = (*Client)(nil)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithModel sets the model identifier forwarded to the server (e.g. "small",
// "medium"). When empty the server uses whichever model it was started with.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithLanguage sets the default language code sent when a request carries no
// language hint. Defaults to "tl".
func WithLanguage(lang string) Option {
	return func(c *Client) { c.language = lang }
}

// WithTimeout overrides the HTTP client timeout. Defaults to 60s; whisper
// inference on long recordings is slow.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// Client implements asr.Transcriber against a whisper.cpp HTTP server.
type Client struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a Client for the whisper.cpp server at serverURL (e.g.
// "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Client, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	c := &Client{
		serverURL:  strings.TrimSuffix(serverURL, "/"),
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Transcribe POSTs the audio to the server's /inference endpoint and returns
// the recognized text.
func (c *Client) Transcribe(ctx context.Context, req asr.Request) (*asr.Transcript, error) {
	if len(req.Audio) == 0 {
		return nil, errors.New("whisper: empty audio")
	}

	lang := req.Language
	if lang == "" {
		lang = c.language
	}
	filename := req.Filename
	if filename == "" {
		filename = "audio.wav"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(req.Audio); err != nil {
		return nil, fmt.Errorf("whisper: write audio: %w", err)
	}
	if lang != "" {
		if err := mw.WriteField("language", lang); err != nil {
			return nil, fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if c.model != "" {
		if err := mw.WriteField("model", c.model); err != nil {
			return nil, fmt.Errorf("whisper: write model field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/inference", &body)
	if err != nil {
		return nil, fmt.Errorf("whisper: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("whisper: read response body: %w", err)
	}

	// Older whisper.cpp builds answer with just {"text": ...}; newer ones add
	// detected language, total duration and per-segment timestamps. All the
	// extras are optional.
	var result struct {
		Text     string  `json:"text"`
		Language string  `json:"language"`
		Duration float64 `json:"duration"`
		Segments []struct {
			Start float64 `json:"start"`
			End   float64 `json:"end"`
			Text  string  `json:"text"`
		} `json:"segments"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	if result.Language != "" {
		lang = result.Language
	}
	tr := &asr.Transcript{
		Text:     strings.TrimSpace(result.Text),
		Language: lang,
		Duration: result.Duration,
	}
	for _, seg := range result.Segments {
		tr.Segments = append(tr.Segments, asr.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		})
	}
	if tr.Duration == 0 && len(tr.Segments) > 0 {
		tr.Duration = tr.Segments[len(tr.Segments)-1].End
	}
	return tr, nil
}
