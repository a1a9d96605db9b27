package catalog

import (
	"context"
	"time"
)

// Event types announced on the bus.
const (
	EventRegistered = "registered"
	EventStatus     = "status"
	EventEvicted    = "evicted"
)

// Event is a catalog change announcement.
type Event struct {
	Event     string `json:"event"`
	Kind      Kind   `json:"kind"`
	ID        int    `json:"id"`
	Created   bool   `json:"created,omitempty"`
	Status    string `json:"status,omitempty"`
	Timestamp string `json:"timestamp"`

	// MainTopic is the namespace the event is published under.
	MainTopic string `json:"-"`
}

// Announcer publishes catalog events. Delivery is best-effort.
type Announcer interface {
	Announce(ctx context.Context, ev Event) error
}

// Observer receives operational measurements.
type Observer interface {
	ObserveUpsert(kind, outcome string)
	ObserveSweep(outcome string, duration time.Duration, evicted map[string]int)
}

// Upsert outcomes reported to the Observer.
const (
	OutcomeCreated  = "created"
	OutcomeUpdated  = "updated"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Sweep outcomes reported to the Observer.
const (
	SweepCompleted      = "completed"
	SweepSkippedOverlap = "skipped_overlap"
	SweepFailed         = "failed"
)

// StatsWriter records sweep statistics in a time-series store.
type StatsWriter interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]interface{})
}

type noopAnnouncer struct{}

func (noopAnnouncer) Announce(context.Context, Event) error { return nil }

type noopObserver struct{}

func (noopObserver) ObserveUpsert(string, string)                       {}
func (noopObserver) ObserveSweep(string, time.Duration, map[string]int) {}

// announce publishes ev and logs, never returns, a failure.
func (r *Registry) announce(ctx context.Context, ev Event) {
	ev.Timestamp = FormatTimestamp(r.now())
	if ev.MainTopic == "" {
		ev.MainTopic = r.cachedMainTopic()
	}
	if err := r.announcer.Announce(ctx, ev); err != nil {
		r.logger.Warn("announcing catalog event failed",
			"event", ev.Event,
			"kind", string(ev.Kind),
			"id", ev.ID,
			"error", err,
		)
	}
}
