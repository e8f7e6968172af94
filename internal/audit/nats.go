package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type NATSConfig struct {
	Logger *slog.Logger
	// Conn is used when set; otherwise URL is dialled.
	Conn    *nats.Conn
	URL     string
	Stream  string
	Subject string
	MaxAge  time.Duration
	Timeout time.Duration
}

func (cfg *NATSConfig) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.Conn == nil && cfg.URL == "" {
		return fmt.Errorf("nats connection or url is required")
	}
	if cfg.Stream == "" {
		cfg.Stream = "RSMCP_AUDIT"
	}
	if cfg.Subject == "" {
		cfg.Subject = "rsmcp.audit"
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 7 * 24 * time.Hour
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	return nil
}

// NATSSink appends events to a JetStream stream.
type NATSSink struct {
	log     *slog.Logger
	nc      *nats.Conn
	ownConn bool
	js      jetstream.JetStream
	subject string
	timeout time.Duration
}

func NewNATSSink(ctx context.Context, cfg NATSConfig) (*NATSSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate nats config: %w", err)
	}
	log := cfg.Logger

	nc, ownConn := cfg.Conn, false
	if nc == nil {
		var err error
		nc, err = nats.Connect(cfg.URL,
			nats.Name("rsmcp-audit"),
			nats.ReconnectHandler(func(c *nats.Conn) {
				log.Info("audit: reconnected to NATS server", "url", c.ConnectedUrl())
			}),
			nats.DisconnectErrHandler(func(c *nats.Conn, err error) {
				log.Warn("audit: disconnected from NATS server", "url", c.ConnectedUrl(), "error", err)
			}),
			nats.ClosedHandler(func(c *nats.Conn) {
				log.Info("audit: NATS connection closed")
			}))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to nats: %w", err)
		}
		ownConn = true
	}
	js, err := jetstream.New(nc)
	if err != nil {
		if ownConn {
			nc.Close()
		}
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.Subject},
		Storage:   jetstream.FileStorage,
		MaxAge:    cfg.MaxAge,
		Discard:   jetstream.DiscardOld,
		Retention: jetstream.LimitsPolicy,
	})
	if err != nil {
		if nc.ConnectedClusterName() == "" {
			if ownConn {
				nc.Close()
			}
			return nil, fmt.Errorf("failed to create audit stream: %w", err)
		}
		log.Warn("audit: failed to create or update stream", "stream", cfg.Stream, "error", err)
	}

	return &NATSSink{
		log:     log,
		nc:      nc,
		ownConn: ownConn,
		js:      js,
		subject: cfg.Subject,
		timeout: cfg.Timeout,
	}, nil
}

func (s *NATSSink) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ack, err := s.js.Publish(ctx, s.subject, data)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", s.subject, err)
	}
	s.log.Debug("audit: published event", "stream", ack.Stream, "seq", ack.Sequence)
	return nil
}

// Close drains the connection if the sink dialled it.
func (s *NATSSink) Close() error {
	if !s.ownConn {
		return nil
	}
	return s.nc.Drain()
}
