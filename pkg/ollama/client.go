// Package ollama is a small client for the Ollama HTTP API: non-streaming
// chat completion and text embeddings, with outbound rate limiting.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/WessleyAI/astra/pkg/fn"
)

// ErrStatus is wrapped by errors for non-2xx responses.
var ErrStatus = errors.New("ollama: unexpected status")

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options configures a Client.
type Options struct {
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	Retry         fn.RetryOpts
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:       30 * time.Second,
		RatePerSecond: 5,
		Burst:         5,
		Retry:         fn.RetryOpts{MaxAttempts: 2, InitialWait: 500 * time.Millisecond, MaxWait: 2 * time.Second, Jitter: true},
	}
}

// Client talks to one Ollama server.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   fn.RetryOpts
}

// New creates a Client for baseURL (e.g. http://localhost:11434).
func New(baseURL string, opts Options) *Client {
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = DefaultOptions().Retry
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		retry:   opts.Retry,
	}
}

type chatReq struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   string         `json:"format,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResp struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
}

// Chat sends msgs to model and returns the assistant's reply.
func (c *Client) Chat(ctx context.Context, model string, msgs []Message, temperature float64, jsonFormat bool) (string, error) {
	req := chatReq{Model: model, Messages: msgs, Options: map[string]any{"temperature": temperature}}
	if jsonFormat {
		req.Format = "json"
	}
	var resp chatResp
	if err := c.post(ctx, "/api/chat", req, &resp); err != nil {
		return "", fmt.Errorf("ollama chat %s: %w", model, err)
	}
	return resp.Message.Content, nil
}

type embedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResp struct {
	Embedding []float64 `json:"embedding"`
}

// Embed returns the embedding of text under model.
func (c *Client) Embed(ctx context.Context, model, text string) ([]float32, error) {
	var resp embedResp
	if err := c.post(ctx, "/api/embeddings", embedReq{Model: model, Prompt: text}, &resp); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	out := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}

// EmbedModel binds a model name to a client so it can be used wherever a
// single-argument embedder is expected.
type EmbedModel struct {
	Client *Client
	Model  string
}

func (m EmbedModel) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.Client.Embed(ctx, m.Model, text)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	var permanent error
	r := fn.Retry(ctx, c.retry, func(ctx context.Context) fn.Result[struct{}] {
		err := c.do(ctx, path, body, out)
		var se *statusError
		if errors.As(err, &se) && se.code < 500 {
			// 4xx will not improve on retry; stop the loop and report it below.
			permanent = err
			return fn.Ok(struct{}{})
		}
		return fn.FromPair(struct{}{}, err)
	})
	if permanent != nil {
		return permanent
	}
	_, err = r.Unwrap()
	return err
}

func (c *Client) do(ctx context.Context, path string, body []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{code: resp.StatusCode, body: string(snippet)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s %d: %s", ErrStatus, e.code, e.body)
}

func (e *statusError) Unwrap() error { return ErrStatus }
