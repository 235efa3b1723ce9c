package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/WessleyAI/astra/engine/domain"
)

// maxMalformedReply bounds the text salvaged from a non-JSON body.
const maxMalformedReply = 500

// HTTPBackend calls a remote /api/chat endpoint.
type HTTPBackend struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewHTTPBackend targets baseURL + "/api/chat".
func NewHTTPBackend(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPBackend{
		url: strings.TrimRight(baseURL, "/") + "/api/chat",
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// Chat posts req. Transport errors and non-2xx statuses wrap
// domain.ErrBackendCallFailed. A 2xx body that is not a chat response is
// salvaged as a truncated plain-text reply.
func (h *HTTPBackend) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.ConversationHistory == nil {
		req.ConversationHistory = []string{}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("assistant: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("assistant: %w: %w", domain.ErrBackendCallFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("assistant: %w: %w", domain.ErrBackendCallFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("assistant: read reply: %w: %w", domain.ErrBackendCallFailed, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("assistant: %w: status %d", domain.ErrBackendCallFailed, resp.StatusCode)
	}

	out, err := DecodeResponse(data)
	if errors.Is(err, domain.ErrMalformedResponse) {
		h.logger.Warn("assistant: malformed chat reply, using raw text", "bytes", len(data), "err", err)
		return &ChatResponse{Response: Truncate(strings.TrimSpace(string(data)), maxMalformedReply)}, nil
	}
	return out, err
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}
