package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/WessleyAI/astra/engine/assistant"
	"github.com/WessleyAI/astra/engine/catalog"
	"github.com/WessleyAI/astra/engine/chat"
	"github.com/WessleyAI/astra/engine/domain"
	"github.com/WessleyAI/astra/engine/graph"
	"github.com/WessleyAI/astra/engine/intent"
	"github.com/WessleyAI/astra/engine/review"
	"github.com/WessleyAI/astra/engine/viz"
)

// --- fakes ---

type fakeStore struct {
	cars     map[string]domain.Car
	reviews  map[string][]domain.Review
	failList bool
	added    []domain.Review
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		cars: map[string]domain.Car{
			"civic": {ID: "civic", Manufacturer: "Honda", Model: "Civic", Year: 2022},
		},
		reviews: map[string][]domain.Review{
			"civic": {
				{ID: "r1", CarID: "civic", Rating: 4.5, Text: "Great handling and excellent mileage."},
				{ID: "r2", CarID: "civic", Rating: 2, Text: "Noisy cabin on the highway."},
			},
		},
	}
}

func (f *fakeStore) SearchCars(_ context.Context, flt catalog.CarFilter) ([]domain.Car, error) {
	if f.failList {
		return nil, domain.ErrDataUnavailable
	}
	var out []domain.Car
	for _, c := range f.cars {
		if flt.Manufacturer != "" && c.Manufacturer != flt.Manufacturer {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeStore) GetCar(_ context.Context, id string) (*domain.Car, error) {
	c, ok := f.cars[id]
	if !ok {
		return nil, fmt.Errorf("catalog: get car %s: %w", id, domain.ErrNotFound)
	}
	return &c, nil
}

func (f *fakeStore) Manufacturers(context.Context) ([]string, error) {
	if f.failList {
		return nil, domain.ErrDataUnavailable
	}
	return []string{"Honda"}, nil
}

func (f *fakeStore) ReviewsForCar(_ context.Context, carID string) ([]domain.Review, error) {
	return f.reviews[carID], nil
}

func (f *fakeStore) AddReview(_ context.Context, r domain.Review) (domain.Review, error) {
	if err := domain.ValidateReview(r); err != nil {
		return domain.Review{}, err
	}
	r.ID = fmt.Sprintf("new-%d", len(f.added)+1)
	f.added = append(f.added, r)
	return r, nil
}

type fakeChat struct {
	resp *assistant.ChatResponse
	err  error
	reqs []assistant.ChatRequest
}

func (f *fakeChat) Chat(_ context.Context, req assistant.ChatRequest) (*assistant.ChatResponse, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &assistant.ChatResponse{Response: "It's a solid commuter."}, nil
}

func (f *fakeChat) Metrics() assistant.RouterMetrics {
	return assistant.RouterMetrics{PrimaryRequests: int64(len(f.reqs))}
}

type fakeReviews struct {
	announced []domain.Review
}

func (f *fakeReviews) Generate(_ context.Context, carID string) (domain.Review, error) {
	if carID != "civic" {
		return domain.Review{}, fmt.Errorf("review: %w", domain.ErrNotFound)
	}
	return domain.Review{ID: "gen", CarID: carID, Rating: 4.2, AIGenerated: true}, nil
}

func (f *fakeReviews) Announce(_ context.Context, r domain.Review) {
	f.announced = append(f.announced, r)
}

type fakeShaper struct{}

func (fakeShaper) Shape(_ context.Context, c intent.Category, _ string, _ domain.Car) (viz.Visualization, error) {
	return viz.Visualization{Type: c, Data: viz.SentimentPayload{}}, nil
}

type fakeGraph struct{}

func (fakeGraph) Stats(context.Context) (graph.Stats, error) {
	return graph.Stats{Cars: 3, Relationships: map[string]int64{"COMPETES_WITH": 2}}, nil
}

type fixture struct {
	store   *fakeStore
	chat    *fakeChat
	reviews *fakeReviews
	srv     *server
	h       http.Handler
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newFixture() *fixture {
	f := &fixture{store: newFakeStore(), chat: &fakeChat{}, reviews: &fakeReviews{}}
	f.srv = &server{
		cars:     f.store,
		chat:     f.chat,
		reviews:  f.reviews,
		shaper:   fakeShaper{},
		graph:    fakeGraph{},
		sessions: chat.NewRegistry(f.store, nil),
		orch:     chat.NewOrchestrator(f.chat, chat.Options{Logger: quiet()}),
		logger:   quiet(),
	}
	f.h = f.srv.routes()
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v (body %q)", err, rec.Body.String())
	}
	return v
}

// --- tests ---

func TestHealthEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	handleHealth(rec, httptest.NewRequest("GET", "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp := decode[map[string]string](t, rec); resp["status"] != "ok" {
		t.Fatalf("expected status ok, got %s", resp["status"])
	}
}

func TestListCars(t *testing.T) {
	f := newFixture()
	rec := f.do("GET", "/api/cars?manufacturer=Honda", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if cars := decode[[]domain.Car](t, rec); len(cars) != 1 || cars[0].ID != "civic" {
		t.Errorf("cars = %+v", cars)
	}
}

func TestListCarsFailsClosed(t *testing.T) {
	f := newFixture()
	f.store.failList = true

	rec := f.do("GET", "/api/cars", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("cars on failure = %d %q", rec.Code, rec.Body.String())
	}
	rec = f.do("GET", "/api/manufacturers", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("manufacturers on failure = %d %q", rec.Code, rec.Body.String())
	}
}

func TestGetCar(t *testing.T) {
	f := newFixture()
	if rec := f.do("GET", "/api/cars/civic", ""); rec.Code != http.StatusOK {
		t.Errorf("known car: %d", rec.Code)
	}
	rec := f.do("GET", "/api/cars/ghost", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown car: %d", rec.Code)
	}
	if resp := decode[map[string]string](t, rec); resp["error"] == "" {
		t.Error("missing error field")
	}
}

func TestReviewsAndAnalysis(t *testing.T) {
	f := newFixture()
	rec := f.do("GET", "/api/cars/civic/reviews", "")
	if got := decode[[]domain.Review](t, rec); len(got) != 2 {
		t.Errorf("reviews = %+v", got)
	}

	rec = f.do("GET", "/api/cars/civic/reviews/analysis", "")
	a := decode[review.Analysis](t, rec)
	if a.TotalReviews != 2 || a.Sentiment.Positive != 1 || a.Sentiment.Negative != 1 {
		t.Errorf("analysis = %+v", a)
	}

	if rec := f.do("GET", "/api/cars/ghost/reviews", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown car reviews: %d", rec.Code)
	}
}

func TestAddReview(t *testing.T) {
	f := newFixture()
	body := `{"author":"Sam","review_title":"Daily driver","review_text":"Comfortable and frugal.","rating":4,"is_ai_generated":true}`
	rec := f.do("POST", "/api/cars/civic/reviews", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	got := decode[domain.Review](t, rec)
	if got.CarID != "civic" || got.AIGenerated || got.ID == "" {
		t.Errorf("saved = %+v", got)
	}
	if len(f.reviews.announced) != 1 || f.reviews.announced[0].ID != got.ID {
		t.Errorf("announced = %+v", f.reviews.announced)
	}

	if rec := f.do("POST", "/api/cars/civic/reviews", `{"rating":9}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid review: %d", rec.Code)
	}
	if rec := f.do("POST", "/api/cars/civic/reviews", `nope`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad json: %d", rec.Code)
	}
}

func TestGenerateReview(t *testing.T) {
	f := newFixture()
	if rec := f.do("POST", "/api/reviews/generate", `{"car_id":"civic"}`); rec.Code != http.StatusOK {
		t.Errorf("generate: %d", rec.Code)
	}
	if rec := f.do("POST", "/api/reviews/generate", `{"car_id":""}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing id: %d", rec.Code)
	}
	if rec := f.do("POST", "/api/reviews/generate", `{"car_id":"ghost"}`); rec.Code != http.StatusNotFound {
		t.Errorf("unknown car: %d", rec.Code)
	}
}

func TestChatEndpoint(t *testing.T) {
	f := newFixture()
	rec := f.do("POST", "/api/chat", `{"message":"How is the mileage?","entity_id":"civic"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp := decode[assistant.ChatResponse](t, rec); resp.Response == "" {
		t.Error("empty response")
	}
	if len(f.chat.reqs) != 1 || f.chat.reqs[0].EntityID != "civic" {
		t.Errorf("reqs = %+v", f.chat.reqs)
	}
}

func TestChatEndpoint_InvalidJSON(t *testing.T) {
	f := newFixture()
	if rec := f.do("POST", "/api/chat", "not json"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestChatEndpoint_TooLong(t *testing.T) {
	f := newFixture()
	body, _ := json.Marshal(assistant.ChatRequest{Message: strings.Repeat("a", 5000)})
	if rec := f.do("POST", "/api/chat", string(body)); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(f.chat.reqs) != 0 {
		t.Error("rejected query reached the backend")
	}
}

func TestChatEndpoint_BackendDown(t *testing.T) {
	f := newFixture()
	f.chat.err = fmt.Errorf("assistant: %w", domain.ErrBackendCallFailed)
	if rec := f.do("POST", "/api/chat", `{"message":"hi"}`); rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestChatMetrics(t *testing.T) {
	f := newFixture()
	rec := f.do("GET", "/api/chat/metrics", "")
	resp := decode[map[string]any](t, rec)
	if resp["status"] != "operational" || resp["metrics"] == nil {
		t.Errorf("metrics = %+v", resp)
	}
}

func TestVisualizationEndpoint(t *testing.T) {
	f := newFixture()
	cases := []struct {
		path   string
		status int
		typ    intent.Category
	}{
		{"/api/cars/civic/visualization?q=What+do+owners+think", http.StatusOK, intent.Sentiment},
		{"/api/cars/civic/visualization?type=comparison", http.StatusOK, intent.Comparison},
		{"/api/cars/civic/visualization?q=hello", http.StatusOK, intent.None},
		{"/api/cars/civic/visualization?type=pie", http.StatusBadRequest, ""},
		{"/api/cars/ghost/visualization?type=trend", http.StatusNotFound, ""},
	}
	for _, tc := range cases {
		rec := f.do("GET", tc.path, "")
		if rec.Code != tc.status {
			t.Errorf("%s: status %d, want %d", tc.path, rec.Code, tc.status)
			continue
		}
		if tc.status != http.StatusOK {
			continue
		}
		var v struct {
			Type intent.Category `json:"type"`
		}
		json.NewDecoder(rec.Body).Decode(&v)
		if v.Type != tc.typ {
			t.Errorf("%s: type %q, want %q", tc.path, v.Type, tc.typ)
		}
	}

	f.srv.shaper = nil
	if rec := f.do("GET", "/api/cars/civic/visualization?type=trend", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("no shaper: %d", rec.Code)
	}
}

func TestGraphStats(t *testing.T) {
	f := newFixture()
	rec := f.do("GET", "/api/graph/stats", "")
	if s := decode[graph.Stats](t, rec); s.Cars != 3 {
		t.Errorf("stats = %+v", s)
	}
	f.srv.graph = nil
	if rec := f.do("GET", "/api/graph/stats", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("no graph: %d", rec.Code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture()

	rec := f.do("POST", "/api/sessions", `{"car_id":"civic"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	view := decode[chat.View](t, rec)
	if view.ID == "" || view.CarID != "civic" {
		t.Fatalf("view = %+v", view)
	}
	base := "/api/sessions/" + view.ID

	rec = f.do("POST", base+"/messages", `{"text":"How is the mileage?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: %d", rec.Code)
	}
	out := decode[MessagesResponse](t, rec)
	if len(out.Messages) != 2 || out.Messages[1].Sender != chat.AI {
		t.Fatalf("messages = %+v", out.Messages)
	}

	rec = f.do("POST", base+"/messages", `{"text":"   "}`)
	if got := decode[MessagesResponse](t, rec); len(got.Messages) != 0 {
		t.Errorf("blank submit appended %+v", got.Messages)
	}

	rec = f.do("GET", base, "")
	if got := decode[chat.View](t, rec); len(got.Messages) != 2 {
		t.Errorf("transcript = %+v", got.Messages)
	}

	if rec := f.do("DELETE", base, ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete: %d", rec.Code)
	}
	if rec := f.do("GET", base, ""); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: %d", rec.Code)
	}
}

func TestSessionUnknownCar(t *testing.T) {
	f := newFixture()
	if rec := f.do("POST", "/api/sessions", `{"car_id":"ghost"}`); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if rec := f.do("POST", "/api/sessions", ""); rec.Code != http.StatusCreated {
		t.Errorf("anonymous session: %d", rec.Code)
	}
}

func TestSessionRetry(t *testing.T) {
	f := newFixture()
	view := decode[chat.View](t, f.do("POST", "/api/sessions", `{}`))
	base := "/api/sessions/" + view.ID

	if rec := f.do("POST", base+"/retry", ""); rec.Code != http.StatusConflict {
		t.Errorf("retry with nothing to retry: %d", rec.Code)
	}

	f.chat.err = domain.ErrBackendCallFailed
	out := decode[MessagesResponse](t, f.do("POST", base+"/messages", `{"text":"hello"}`))
	if out.RetryCount != 1 || !out.Messages[1].Error || out.Messages[1].Text != chat.TierMessage(1) {
		t.Fatalf("first failure = %+v", out)
	}

	f.chat.err = nil
	out = decode[MessagesResponse](t, f.do("POST", base+"/retry", ""))
	if out.RetryCount != 0 || len(out.Messages) != 1 || out.Messages[0].Error {
		t.Errorf("retry = %+v", out)
	}
}

func TestReveal(t *testing.T) {
	f := newFixture()
	f.chat.resp = &assistant.ChatResponse{Response: "abcdef"}
	view := decode[chat.View](t, f.do("POST", "/api/sessions", `{}`))
	base := "/api/sessions/" + view.ID
	out := decode[MessagesResponse](t, f.do("POST", base+"/messages", `{"text":"hi"}`))

	rec := f.do("GET", base+"/messages/"+out.Messages[1].ID+"/reveal?size=4&interval=0", "")
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}
	var chunks []string
	done := false
	sc := bufio.NewScanner(bytes.NewReader(rec.Body.Bytes()))
	for sc.Scan() {
		line := sc.Text()
		if line == "event: done" {
			done = true
			break
		}
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			var s string
			json.Unmarshal([]byte(data), &s)
			chunks = append(chunks, s)
		}
	}
	if !done || strings.Join(chunks, "|") != "abcd|ef" {
		t.Errorf("chunks = %q done=%v", chunks, done)
	}

	if rec := f.do("GET", base+"/messages/missing/reveal", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown message: %d", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", domain.ErrNotFound), http.StatusNotFound},
		{domain.NewValidationError("text", "", domain.ErrInvalidQuery), http.StatusBadRequest},
		{fmt.Errorf("x: %w", domain.ErrDataUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("x: %w", domain.ErrBackendCallFailed), http.StatusBadGateway},
		{chat.ErrNothingToRetry, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := loadConfig()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Port)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Fatalf("expected default CORS *, got %v", cfg.CORSOrigins)
	}
	if cfg.Collection != "astra_reviews" {
		t.Fatalf("expected default collection astra_reviews, got %s", cfg.Collection)
	}
	if cfg.PrimaryModel != "llama3.1" || cfg.FallbackModel != "mistral" {
		t.Fatalf("models = %s/%s", cfg.PrimaryModel, cfg.FallbackModel)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("CORS_ORIGIN", "http://a.test,http://b.test")
	t.Setenv("RATE_LIMIT_RPS", "0.5")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := loadConfig()
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" {
		t.Errorf("origins = %v", cfg.CORSOrigins)
	}
	if cfg.RateLimit != 0.5 || cfg.CacheTTL.Seconds() != 90 || cfg.RedisDB != 0 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestUnknownDataPolicy(t *testing.T) {
	t.Setenv("VIZ_UNKNOWN_POLICY", "")
	cfg := loadConfig()
	if p, err := cfg.unknownDataPolicy(); err != nil {
		t.Fatal(err)
	} else if _, ok := p.(viz.OmitPolicy); !ok {
		t.Errorf("default policy = %T, want OmitPolicy", p)
	}

	cfg.VizPolicy = "omitt"
	if _, err := cfg.unknownDataPolicy(); !errors.Is(err, viz.ErrUnknownPolicy) {
		t.Errorf("expected ErrUnknownPolicy, got %v", err)
	}
}

func TestRun_RejectsUnknownPolicy(t *testing.T) {
	cfg := loadConfig()
	cfg.VizPolicy = "Omit"
	if err := run(cfg, quiet()); !errors.Is(err, viz.ErrUnknownPolicy) {
		t.Errorf("run = %v, want ErrUnknownPolicy", err)
	}
}

func TestEnvOr(t *testing.T) {
	t.Setenv("TEST_ENV_VAR_XYZ", "custom")
	if v := envOr("TEST_ENV_VAR_XYZ", "default"); v != "custom" {
		t.Fatalf("expected custom, got %s", v)
	}
	if v := envOr("NONEXISTENT_VAR_ABC", "fallback"); v != "fallback" {
		t.Fatalf("expected fallback, got %s", v)
	}
}
