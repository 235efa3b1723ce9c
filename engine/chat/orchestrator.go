// Package chat runs conversations: it owns session state, calls the chat
// backend for each user turn and turns replies or failures into transcript
// messages.
//
// Each session tracks one request at a time. A request that finishes after
// the caller has moved on still appends its result; nothing is cancelled on
// navigation.
package chat

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/WessleyAI/astra/engine/assistant"
	"github.com/WessleyAI/astra/engine/domain"
	"github.com/WessleyAI/astra/engine/intent"
	"github.com/WessleyAI/astra/engine/suggest"
	"github.com/WessleyAI/astra/engine/viz"
	"github.com/WessleyAI/astra/pkg/metrics"
	"github.com/WessleyAI/astra/pkg/natsutil"
	"github.com/google/uuid"
)

// MaxRetryTier is the failure count at which wording stops escalating and
// fallback questions are offered.
const MaxRetryTier = 3

// ErrNothingToRetry is returned by Retry when the session has no user message.
var ErrNothingToRetry = errors.New("chat: no user message to retry")

var tierMessages = [MaxRetryTier]string{
	"Sorry, I couldn't get a response just now. Trying again usually helps.",
	"I apologize, the connection to the assistant seems unstable. Please try once more.",
	"I cannot connect to the assistant right now, so I'm falling back to general knowledge.",
}

const fallbackIntro = "In the meantime, here are some questions I can help with:"

// TierMessage returns the failure notice for the n-th consecutive failure.
// Counts above MaxRetryTier reuse the last tier.
func TierMessage(n int) string {
	n = min(max(n, 1), MaxRetryTier)
	return tierMessages[n-1]
}

// Shaper builds a chart for a car; *viz.Shaper satisfies it.
type Shaper interface {
	Shape(ctx context.Context, category intent.Category, entityID string, primary domain.Car) (viz.Visualization, error)
}

// Publisher emits turn events; *natsutil.Bus satisfies it.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

// TurnEvent is published on natsutil.SubjectChatMessage after each exchange.
type TurnEvent struct {
	SessionID  string    `json:"session_id"`
	CarID      string    `json:"car_id,omitempty"`
	Query      string    `json:"query"`
	Intent     string    `json:"intent,omitempty"`
	Failed     bool      `json:"failed"`
	RetryCount int       `json:"retry_count"`
	At         time.Time `json:"at"`
}

// Options configures an Orchestrator. Every field is optional.
type Options struct {
	Shaper  Shaper
	Events  Publisher
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

// Orchestrator drives sessions against a chat backend.
type Orchestrator struct {
	backend  assistant.Backend
	opts     Options
	log      *slog.Logger
	classify *intent.Classifier
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(backend assistant.Backend, opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		backend:  backend,
		opts:     opts,
		log:      opts.Logger,
		classify: intent.NewClassifier(opts.Logger),
	}
}

// Submit appends a user message and the outcome of asking the backend about
// it, returning the messages it appended. Blank text is ignored. Backend
// failures become transcript messages, not errors.
func (o *Orchestrator) Submit(ctx context.Context, s *Session, text string) []Message {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.mu.Lock()
	history := userTexts(s.messages)
	user := o.message(User, text)
	s.messages = append(s.messages, user)
	s.pending = true
	s.touched = user.Timestamp
	turn := len(history) + 1
	s.mu.Unlock()
	o.opts.Metrics.Message(string(User), false)

	return append([]Message{user}, o.exchange(ctx, s, text, history, turn)...)
}

// Retry resends the latest user message verbatim without appending it again.
func (o *Orchestrator) Retry(ctx context.Context, s *Session) ([]Message, error) {
	s.mu.Lock()
	idx := -1
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Sender == User {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return nil, ErrNothingToRetry
	}
	text := s.messages[idx].Text
	history := userTexts(s.messages[:idx])
	s.pending = true
	s.mu.Unlock()

	return o.exchange(ctx, s, text, history, len(history)+1), nil
}

func (o *Orchestrator) exchange(ctx context.Context, s *Session, text string, history []string, turn int) []Message {
	resp, err := o.backend.Chat(ctx, assistant.ChatRequest{
		Message:             text,
		EntityID:            s.carID(),
		ConversationHistory: history,
	})
	if err == nil && resp == nil {
		err = fmt.Errorf("chat: empty backend reply: %w", domain.ErrMalformedResponse)
	}
	if err != nil {
		return o.fail(ctx, s, text, err)
	}
	return o.succeed(ctx, s, text, resp, turn)
}

func (o *Orchestrator) succeed(ctx context.Context, s *Session, text string, resp *assistant.ChatResponse, turn int) []Message {
	car := s.Car
	if car == nil {
		car = resp.EntityData
	}

	msg := o.message(AI, resp.Response)
	msg.Components = components(resp, turn)
	msg.Visualization = o.visualize(ctx, text, car)

	s.mu.Lock()
	topic := resp.PrimaryIntent()
	if topic == "" {
		topic = s.lastIntent
	}
	msg.Suggestions = suggest.Generate(car, topic, turn)
	s.messages = append(s.messages, msg)
	s.pending = false
	s.retryCount = 0
	s.lastIntent = topic
	s.touched = msg.Timestamp
	s.mu.Unlock()

	o.opts.Metrics.Message(string(AI), false)
	o.publish(ctx, TurnEvent{SessionID: s.ID, CarID: s.carID(), Query: text, Intent: topic})
	return []Message{msg}
}

func (o *Orchestrator) fail(ctx context.Context, s *Session, text string, err error) []Message {
	now := o.opts.Now().UTC()

	s.mu.Lock()
	s.retryCount++
	n := s.retryCount
	notice := o.message(AI, TierMessage(n))
	notice.Error = true
	notice.Retryable = n < MaxRetryTier
	out := []Message{notice}
	if n >= MaxRetryTier {
		fb := o.message(AI, fallbackIntro)
		fb.Suggestions = suggest.Fallback(s.Car)
		out = append(out, fb)
	}
	s.messages = append(s.messages, out...)
	s.pending = false
	s.touched = now
	s.mu.Unlock()

	o.log.Warn("chat: backend call failed", "session_id", s.ID, "tier", tierName(n), "retry_count", n, "err", err)
	o.opts.Metrics.Message(string(AI), true)
	o.publish(ctx, TurnEvent{SessionID: s.ID, CarID: s.carID(), Query: text, Failed: true, RetryCount: n})
	return out
}

// components picks cards by which fields the backend filled in. The car
// details card only appears in the first turns.
func components(resp *assistant.ChatResponse, turn int) []Component {
	var out []Component
	if resp.EntityData != nil && turn <= suggest.EarlyTurns {
		out = append(out, Component{Kind: SpecCard, Data: resp.EntityData})
	}
	a := resp.Analysis
	if a == nil {
		return out
	}
	if len(a.CategoryScores) > 0 {
		out = append(out, Component{Kind: ScoresCard, Data: a.CategoryScores})
	}
	if len(a.CommonPros) > 0 || len(a.CommonCons) > 0 {
		out = append(out, Component{Kind: ProsConsCard, Data: ProsCons{Pros: a.CommonPros, Cons: a.CommonCons}})
	}
	if a.Sentiment != nil {
		out = append(out, Component{Kind: SentimentCard, Data: a.Sentiment})
	}
	if a.AverageRating != nil {
		out = append(out, Component{Kind: RatingCard, Data: *a.AverageRating})
	}
	return out
}

func (o *Orchestrator) visualize(ctx context.Context, text string, car *domain.Car) *viz.Visualization {
	if o.opts.Shaper == nil || car == nil {
		return nil
	}
	category := o.classify.Classify(text)
	if !category.Valid() {
		return nil
	}
	v, err := o.opts.Shaper.Shape(ctx, category, car.ID, *car)
	if err != nil {
		o.log.Warn("chat: visualization failed", "car_id", car.ID, "category", category, "err", err)
		return nil
	}
	return &v
}

func (o *Orchestrator) publish(ctx context.Context, ev TurnEvent) {
	if o.opts.Events == nil {
		return
	}
	ev.At = o.opts.Now().UTC()
	if err := o.opts.Events.Publish(ctx, natsutil.SubjectChatMessage, ev); err != nil {
		o.log.Warn("chat: publish turn failed", "session_id", ev.SessionID, "err", err)
	}
}

func (o *Orchestrator) message(sender Sender, text string) Message {
	return Message{ID: uuid.NewString(), Sender: sender, Text: text, Timestamp: o.opts.Now().UTC()}
}

func userTexts(msgs []Message) []string {
	out := []string{}
	for _, m := range msgs {
		if m.Sender == User {
			out = append(out, m.Text)
		}
	}
	return out
}

// Reveal yields text in chunks of size runes for a typing effect. The
// sequence can be ranged over any number of times.
func Reveal(text string, size int) iter.Seq[string] {
	if size <= 0 {
		size = 1
	}
	return func(yield func(string) bool) {
		r := []rune(text)
		for i := 0; i < len(r); i += size {
			if !yield(string(r[i:min(i+size, len(r))])) {
				return
			}
		}
	}
}

// tierName labels a failure count for logs.
func tierName(n int) string { return fmt.Sprintf("tier-%d", min(max(n, 1), MaxRetryTier)) }
