package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/WessleyAI/astra/engine/domain"
)

func TestHTTPBackendChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" || r.Method != http.MethodPost {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var req ChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Message != "hi" || req.EntityID != "c1" || req.ConversationHistory == nil {
			t.Errorf("req = %+v", req)
		}
		w.Write([]byte(`{"response":"hello","intent":{"primaryIntent":"general"}}`))
	}))
	defer srv.Close()

	b := NewHTTPBackend(srv.URL+"/", time.Second, quiet())
	resp, err := b.Chat(context.Background(), ChatRequest{Message: "hi", EntityID: "c1"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Response != "hello" || resp.PrimaryIntent() != "general" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHTTPBackendMalformed(t *testing.T) {
	long := strings.Repeat("x", 800)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(long))
	}))
	defer srv.Close()

	resp, err := NewHTTPBackend(srv.URL, time.Second, quiet()).Chat(context.Background(), ChatRequest{Message: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if len([]rune(resp.Response)) != maxMalformedReply+1 || !strings.HasSuffix(resp.Response, "…") {
		t.Errorf("response length = %d", len([]rune(resp.Response)))
	}
}

func TestHTTPBackendStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPBackend(srv.URL, time.Second, quiet()).Chat(context.Background(), ChatRequest{Message: "hi"})
	if !errors.Is(err, domain.ErrBackendCallFailed) {
		t.Fatalf("err = %v", err)
	}
}

func TestHTTPBackendUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPBackend(url, time.Second, quiet()).Chat(context.Background(), ChatRequest{Message: "hi"})
	if !errors.Is(err, domain.ErrBackendCallFailed) {
		t.Fatalf("err = %v", err)
	}
}

func TestTruncate(t *testing.T) {
	if Truncate("héllo", 10) != "héllo" {
		t.Error("short strings are untouched")
	}
	if got := Truncate("héllo", 2); got != "hé…" {
		t.Errorf("got %q", got)
	}
}
