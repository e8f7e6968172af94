// Package audit publishes one event per served request. Events carry what
// was asked for and how it ended, never the SQL text or any result rows.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

type Kind string

const (
	KindTool         Kind = "tool"
	KindResourceRead Kind = "resource_read"
	KindResourceList Kind = "resource_list"
)

type Event struct {
	Time       time.Time `json:"time"`
	Kind       Kind      `json:"kind"`
	Transport  string    `json:"transport"`
	Name       string    `json:"name,omitempty"`
	URI        string    `json:"uri,omitempty"`
	IsError    bool      `json:"is_error"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
}

// Sink delivers events somewhere durable.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Multi fans an event out to every sink. All sinks are tried; their errors
// are joined.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder stamps and publishes events. A failed publish is logged and never
// reaches the caller.
type Recorder struct {
	log  *slog.Logger
	sink Sink
	now  func() time.Time
}

func NewRecorder(log *slog.Logger, sink Sink) *Recorder {
	if sink == nil {
		sink = Nop{}
	}
	return &Recorder{log: log, sink: sink, now: time.Now}
}

// Record publishes ev for a request that started at start.
func (r *Recorder) Record(ctx context.Context, start time.Time, ev Event) {
	ev.Time = start.UTC()
	ev.DurationMS = r.now().Sub(start).Milliseconds()
	// The request may already be cancelled; the event is still worth sending.
	if err := r.sink.Publish(context.WithoutCancel(ctx), ev); err != nil {
		r.log.Warn("audit: publish failed", "kind", ev.Kind, "name", ev.Name, "error", err)
	}
}

func (r *Recorder) Close() error {
	return r.sink.Close()
}
