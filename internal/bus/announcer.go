package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/d-khalang/SMM/internal/catalog"
	"github.com/d-khalang/SMM/internal/infrastructure/mqtt"
)

// ErrNoMainTopic is returned when an event carries no topic namespace.
var ErrNoMainTopic = errors.New("bus: main topic unknown")

// Publisher is the publishing side of an MQTT client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Announcer publishes catalog events. It satisfies catalog.Announcer.
type Announcer struct {
	pub Publisher
	qos byte
}

// NewAnnouncer creates an announcer publishing at qos, never retained.
func NewAnnouncer(pub Publisher, qos byte) *Announcer {
	return &Announcer{pub: pub, qos: qos}
}

// Announce publishes ev on its entity topic.
func (a *Announcer) Announce(_ context.Context, ev catalog.Event) error {
	if ev.MainTopic == "" {
		return ErrNoMainTopic
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	topic := mqtt.Topics{Root: ev.MainTopic}.Entity(string(ev.Kind), ev.ID)
	return a.pub.Publish(topic, payload, a.qos, false)
}
