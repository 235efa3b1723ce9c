package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/WessleyAI/astra/engine/domain"
	"github.com/WessleyAI/astra/engine/viz"
	"github.com/WessleyAI/astra/pkg/metrics"
	"github.com/google/uuid"
)

// Sender identifies who wrote a message.
type Sender string

const (
	User Sender = "user"
	AI   Sender = "ai"
)

// ComponentKind tags a structured card attached to an AI message.
type ComponentKind string

const (
	SpecCard      ComponentKind = "spec"
	ScoresCard    ComponentKind = "category_scores"
	ProsConsCard  ComponentKind = "pros_cons"
	SentimentCard ComponentKind = "sentiment"
	RatingCard    ComponentKind = "rating"
)

// Component is a structured card. Data holds *domain.Car for SpecCard,
// map[string]float64 for ScoresCard, ProsCons, *assistant.Sentiment or a
// float64 rating.
type Component struct {
	Kind ComponentKind `json:"type"`
	Data any           `json:"data"`
}

// ProsCons is the payload of a ProsConsCard.
type ProsCons struct {
	Pros []string `json:"pros"`
	Cons []string `json:"cons"`
}

// Message is one entry in a session transcript.
type Message struct {
	ID            string             `json:"id"`
	Text          string             `json:"text"`
	Sender        Sender             `json:"sender"`
	Suggestions   []string           `json:"suggestions,omitempty"`
	Components    []Component        `json:"components,omitempty"`
	Visualization *viz.Visualization `json:"visualization,omitempty"`
	Error         bool               `json:"error,omitempty"`
	Retryable     bool               `json:"retryable,omitempty"`
	Timestamp     time.Time          `json:"timestamp"`
}

// Session is one conversation about one car (or none). Its fields are only
// changed by Orchestrator methods.
type Session struct {
	ID        string
	Car       *domain.Car
	CreatedAt time.Time

	mu         sync.Mutex
	messages   []Message
	pending    bool
	retryCount int
	lastIntent string
	touched    time.Time
}

// View is a consistent copy of a session.
type View struct {
	ID         string      `json:"id"`
	CarID      string      `json:"car_id,omitempty"`
	Car        *domain.Car `json:"car,omitempty"`
	Messages   []Message   `json:"messages"`
	Pending    bool        `json:"pending"`
	RetryCount int         `json:"retry_count"`
	CreatedAt  time.Time   `json:"created_at"`
}

// View copies the session state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		ID: s.ID, Car: s.Car, Pending: s.pending, RetryCount: s.retryCount,
		CreatedAt: s.CreatedAt, Messages: append([]Message{}, s.messages...),
	}
	if s.Car != nil {
		v.CarID = s.Car.ID
	}
	return v
}

// Message returns the message with id.
func (s *Session) Message(id string) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

// RetryCount returns the number of consecutive failed exchanges.
func (s *Session) RetryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retryCount
}

func (s *Session) carID() string {
	if s.Car == nil {
		return ""
	}
	return s.Car.ID
}

// CarLookup resolves the car a session is about.
type CarLookup interface {
	GetCar(ctx context.Context, id string) (*domain.Car, error)
}

// Registry owns the live sessions.
type Registry struct {
	cars    CarLookup
	metrics *metrics.Metrics
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry. cars may be nil when sessions are
// never bound to a car; m may be nil.
func NewRegistry(cars CarLookup, m *metrics.Metrics) *Registry {
	return &Registry{cars: cars, metrics: m, now: time.Now, sessions: make(map[string]*Session)}
}

// Create starts a session. A non-empty carID must name a known car.
func (r *Registry) Create(ctx context.Context, carID string) (*Session, error) {
	s := &Session{ID: uuid.NewString(), CreatedAt: r.now().UTC()}
	s.touched = s.CreatedAt
	if carID != "" {
		if r.cars == nil {
			return nil, fmt.Errorf("chat: create session: car %s: %w", carID, domain.ErrNotFound)
		}
		car, err := r.cars.GetCar(ctx, carID)
		if err != nil {
			return nil, fmt.Errorf("chat: create session: %w", err)
		}
		s.Car = car
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	n := len(r.sessions)
	r.mu.Unlock()
	r.metrics.Sessions(n)
	return s, nil
}

// Get returns the session with id or an error wrapping domain.ErrNotFound.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("chat: session %s: %w", id, domain.ErrNotFound)
	}
	return s, nil
}

// Delete drops a session. Unknown ids are ignored.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()
	r.metrics.Sessions(n)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Prune drops sessions idle for longer than maxIdle, skipping any with a
// request in flight, and returns how many were removed.
func (r *Registry) Prune(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)
	r.mu.Lock()
	removed := 0
	for id, s := range r.sessions {
		s.mu.Lock()
		idle := !s.pending && s.touched.Before(cutoff)
		s.mu.Unlock()
		if idle {
			delete(r.sessions, id)
			removed++
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()
	r.metrics.Sessions(n)
	return removed
}
