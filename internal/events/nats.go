package events

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/nats-io/nats.go"
)

const DefaultSubjectPrefix = "qms.queue"

type NATSOptions struct {
	URL           string
	Token         string
	SubjectPrefix string
	Name          string
}

// NATSPublisher publishes each event as JSON on <prefix>.<event type>.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

func ConnectNATS(opts NATSOptions) (*NATSPublisher, error) {
	name := opts.Name
	if name == "" {
		name = "ticket-queue"
	}
	natsOpts := []nats.Option{nats.Name(name)}
	if opts.Token != "" {
		natsOpts = append(natsOpts, nats.Token(opts.Token))
	}
	conn, err := nats.Connect(opts.URL, natsOpts...)
	if err != nil {
		return nil, err
	}
	return NewNATSPublisher(conn, opts.SubjectPrefix), nil
}

func NewNATSPublisher(conn *nats.Conn, prefix string) *NATSPublisher {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{conn: conn, prefix: prefix}
}

func (p *NATSPublisher) Subject(eventType string) string {
	return p.prefix + "." + eventType
}

func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.conn.Publish(p.Subject(event.Type), payload)
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	return nil
}
