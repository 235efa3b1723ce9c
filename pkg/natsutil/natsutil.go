// Package natsutil publishes and consumes JSON domain events over NATS,
// carrying OpenTelemetry trace context in message headers.
package natsutil

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// Subjects used by the assistant.
const (
	SubjectReviewCreated = "astra.reviews.created"
	SubjectChatMessage   = "astra.chat.messages"
)

// headerCarrier adapts nats.Msg headers for the OTel TextMapCarrier.
type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// MsgPublisher is satisfied by *nats.Conn.
type MsgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// Bus publishes JSON events. A nil *Bus drops everything, so callers
// can hold one unconditionally.
type Bus struct {
	conn MsgPublisher
}

// NewBus wraps a NATS connection (or any MsgPublisher).
func NewBus(conn MsgPublisher) *Bus {
	return &Bus{conn: conn}
}

// Publish serializes v as JSON and publishes it on subject.
func (b *Bus) Publish(ctx context.Context, subject string, v any) error {
	if b == nil || b.conn == nil {
		return nil
	}
	msg, err := Encode(ctx, subject, v)
	if err != nil {
		return err
	}
	if err := b.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("natsutil: publish %s: %w", subject, err)
	}
	return nil
}

// Encode builds the NATS message for v, injecting trace context from ctx.
func Encode(ctx context.Context, subject string, v any) (*nats.Msg, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("natsutil: encode %s: %w", subject, err)
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))
	return msg, nil
}

// Decode unmarshals msg into T and returns the propagated trace context.
func Decode[T any](msg *nats.Msg) (context.Context, T, error) {
	var v T
	if err := json.Unmarshal(msg.Data, &v); err != nil {
		return nil, v, fmt.Errorf("natsutil: decode %s: %w", msg.Subject, err)
	}
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*headerCarrier)(msg))
	return ctx, v, nil
}

// Subscribe registers handler for JSON messages of type T. Malformed
// messages are passed to onErr, if set, and otherwise dropped.
func Subscribe[T any](nc *nats.Conn, subject string, handler func(context.Context, T), onErr func(error)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		ctx, v, err := Decode[T](msg)
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			return
		}
		handler(ctx, v)
	})
}
