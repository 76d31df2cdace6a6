// Package outbound optionally mirrors the OutboundEvents an ingest call
// returns onto a NATS subject, for callers that want push delivery in
// addition to the synchronous return value from ingest. It is purely
// additive: nothing in the pipeline depends on a Publisher being present,
// and raw GraphEvents never cross this boundary — only OutboundEvents,
// matching spec §9's adapter/outbound-event separation.
//
// Grounded on WessleyAI-wessley-mvp's pkg/natsutil — a typed JSON
// publish/subscribe helper with OTel trace propagation — adapted here to a
// single fire-and-forget publish path scoped to one subject family.
package outbound

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"

	"github.com/nrgforge/plexus/pkg/emission"
	"github.com/nrgforge/plexus/pkg/graph"
)

// DefaultSubjectPrefix is used when Publisher is constructed without an
// explicit prefix.
const DefaultSubjectPrefix = "plexus.outbound"

// natsHeaderCarrier adapts nats.Msg headers to OTel's TextMapCarrier,
// mirroring the teacher pattern so trace context survives the hop to any
// subscriber instrumented the same way.
type natsHeaderCarrier nats.Msg

func (c *natsHeaderCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *natsHeaderCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *natsHeaderCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// envelope is the JSON payload published for one ingest call's outbound
// events.
type envelope struct {
	ContextID graph.ContextId          `json:"context_id"`
	Events    []emission.OutboundEvent `json:"events"`
}

// Publisher mirrors OutboundEvents onto "<prefix>.<context>" NATS subjects.
type Publisher struct {
	conn          *nats.Conn
	subjectPrefix string
	logger        *slog.Logger
}

// Option configures a [Publisher].
type Option func(*Publisher)

// WithSubjectPrefix overrides [DefaultSubjectPrefix].
func WithSubjectPrefix(prefix string) Option {
	return func(p *Publisher) {
		if prefix != "" {
			p.subjectPrefix = prefix
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

// Connect dials the NATS server at url and returns a ready Publisher.
func Connect(url string, opts ...Option) (*Publisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("outbound: connect %q: %w", url, err)
	}
	p := &Publisher{
		conn:          conn,
		subjectPrefix: DefaultSubjectPrefix,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Publish mirrors events for ctxID onto its subject. A nil Publisher or an
// empty events slice is a silent no-op, so callers can wire a Publisher
// unconditionally and let configuration decide whether it's nil.
func (p *Publisher) Publish(ctx context.Context, ctxID graph.ContextId, events []emission.OutboundEvent) error {
	if p == nil || len(events) == 0 {
		return nil
	}

	data, err := json.Marshal(envelope{ContextID: ctxID, Events: events})
	if err != nil {
		return fmt.Errorf("outbound: marshal envelope: %w", err)
	}

	subject := p.Subject(ctxID)
	msg := &nats.Msg{Subject: subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*natsHeaderCarrier)(msg))

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("outbound: publish %q: %w", subject, err)
	}
	p.logger.Debug("outbound: published events", "subject", subject, "count", len(events))
	return nil
}

// Subject returns the NATS subject a given context's events publish to.
func (p *Publisher) Subject(ctxID graph.ContextId) string {
	return fmt.Sprintf("%s.%s", p.subjectPrefix, ctxID)
}

// Close drains and closes the underlying NATS connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
