package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"nestcore/internal/logfields"
	"nestcore/pkg/domain"
)

const (
	// DefaultSubject prefixes every published record; the action is appended.
	DefaultSubject = "nestcore.audit"
	// DefaultStream is the JetStream stream capturing the audit subjects.
	DefaultStream  = "NESTCORE_AUDIT"
	publishTimeout = 5 * time.Second
)

// NATSConfig configures the JetStream audit publisher.
type NATSConfig struct {
	URL     string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
	Stream  string `yaml:"stream"`
}

type publisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATSSink publishes records to JetStream as JSON on <subject>.<action>.
// The record ID doubles as the message ID so redeliveries deduplicate.
type NATSSink struct {
	conn    *nats.Conn
	js      publisher
	subject string
	logger  *slog.Logger
}

// NewNATSSink connects, ensures the stream exists and returns the sink.
func NewNATSSink(ctx context.Context, cfg NATSConfig, logger *slog.Logger) (*NATSSink, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("nats audit sink requires a url")
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.Stream == "" {
		cfg.Stream = DefaultStream
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(cfg.URL, nats.Name("nestcore-audit"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        cfg.Stream,
		Description: "Nest box deposit, collect and hatch records",
		Subjects:    []string{cfg.Subject + ".>"},
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ensure audit stream: %w", err)
	}

	logger.Info("NATS audit sink initialized", slog.String("url", cfg.URL), logfields.Subject(cfg.Subject), slog.String("stream", cfg.Stream))
	sink := newNATSSink(js, cfg.Subject, logger)
	sink.conn = conn
	return sink, nil
}

func newNATSSink(js publisher, subject string, logger *slog.Logger) *NATSSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSSink{js: js, subject: subject, logger: logger}
}

// Audit implements nest.AuditSink.
func (s *NATSSink) Audit(ctx context.Context, rec domain.AuditRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	subject := s.subject + "." + rec.Action
	var opts []jetstream.PublishOpt
	if rec.ID != "" {
		opts = append(opts, jetstream.WithMsgID(rec.ID))
	}
	if _, err := s.js.Publish(ctx, subject, data, opts...); err != nil {
		return fmt.Errorf("failed to publish audit record: %w", err)
	}
	s.logger.Debug("Published audit record", logfields.Subject(subject), logfields.NestID(rec.NestID))
	return nil
}

// Close drains the connection.
func (s *NATSSink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}
