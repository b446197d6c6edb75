// Package events publishes build lifecycle notifications over NATS.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/winterholm/staticpress/internal/logfields"
)

// Envelope is the JSON payload carried by every build event.
type Envelope struct {
	Event      string    `json:"event"` // started | completed
	BuildID    string    `json:"build_id"`
	Timestamp  time.Time `json:"timestamp"`
	Outcome    string    `json:"outcome,omitempty"`
	Pages      int       `json:"pages,omitempty"`
	Rendered   int       `json:"rendered,omitempty"`
	Failed     int       `json:"failed,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	OutputDir  string    `json:"output_dir,omitempty"`
}

// Publisher emits build lifecycle events.
type Publisher interface {
	BuildStarted(buildID string) error
	BuildCompleted(env Envelope) error
	Close()
}

// NoopPublisher discards all events.
type NoopPublisher struct{}

func (NoopPublisher) BuildStarted(string) error { return nil }

func (NoopPublisher) BuildCompleted(Envelope) error { return nil }

func (NoopPublisher) Close() {}

// Open connects to NATS when url is set. An empty url or a failed
// connection yields a NoopPublisher; builds never fail over eventing.
func Open(url, subject string) Publisher {
	if url == "" {
		return NoopPublisher{}
	}
	p, err := Connect(url, subject)
	if err != nil {
		slog.Warn("Event publishing disabled", logfields.Error(err))
		return NoopPublisher{}
	}
	return p
}

// NATSPublisher publishes envelopes under a base subject, one suffix per
// lifecycle phase: <subject>.started, <subject>.completed.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// Connect dials the NATS server.
func Connect(url, subject string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	slog.Info("Event publisher connected", logfields.URL(url), slog.String("subject", subject))
	return &NATSPublisher{conn: conn, subject: subject}, nil
}

// BuildStarted announces that a build began.
func (p *NATSPublisher) BuildStarted(buildID string) error {
	return p.publish("started", Envelope{Event: "started", BuildID: buildID})
}

// BuildCompleted announces a finished build with its outcome and counts.
func (p *NATSPublisher) BuildCompleted(env Envelope) error {
	env.Event = "completed"
	return p.publish("completed", env)
}

func (p *NATSPublisher) publish(suffix string, env Envelope) error {
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now()
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subj := p.subject + "." + suffix
	if err := p.conn.Publish(subj, data); err != nil {
		return fmt.Errorf("publish %s: %w", subj, err)
	}
	slog.Debug("Published build event", slog.String("subject", subj), logfields.BuildID(env.BuildID))
	return nil
}

// Close flushes and closes the connection. The flush matters: the
// completed event is usually still in the client buffer at exit.
func (p *NATSPublisher) Close() {
	_ = p.conn.Flush()
	p.conn.Close()
}
