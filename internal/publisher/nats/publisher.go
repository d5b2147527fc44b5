// Package nats publishes pipeline events on NATS subjects.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"

	"github.com/JakeFAU/yacht-qa-crawler/internal/id/uuid"
	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
)

// HeaderMsgID carries the message id; JetStream uses it for deduplication.
const HeaderMsgID = "Nats-Msg-Id"

// Publisher sends each event as JSON to "<prefix>.<topic>".
type Publisher struct {
	conn   *nats.Conn
	prefix string
	ids    pipeline.IDGenerator
}

// New wraps an existing connection.
func New(conn *nats.Conn, subjectPrefix string) *Publisher {
	return &Publisher{conn: conn, prefix: strings.Trim(subjectPrefix, "."), ids: uuid.New()}
}

// Connect dials url and returns a Publisher owning the connection.
func Connect(url, subjectPrefix string) (*Publisher, error) {
	conn, err := nats.Connect(url, nats.Name("qacrawler"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return New(conn, subjectPrefix), nil
}

// Subject maps an event topic to its NATS subject.
func (p *Publisher) Subject(topic string) string {
	if p.prefix == "" {
		return topic
	}
	return p.prefix + "." + topic
}

// Publish implements pipeline.EventPublisher.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	id, err := p.ids.NewID()
	if err != nil {
		return "", err
	}
	msg := &nats.Msg{Subject: p.Subject(topic), Data: data, Header: nats.Header{}}
	msg.Header.Set(HeaderMsgID, id)
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))
	if err := p.conn.PublishMsg(msg); err != nil {
		return "", fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	return id, nil
}

// Close drains the connection.
func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}

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
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}
