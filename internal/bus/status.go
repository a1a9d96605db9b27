package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/d-khalang/SMM/internal/catalog"
	"github.com/d-khalang/SMM/internal/infrastructure/mqtt"
)

// handleTimeout bounds one status message's store round trip.
const handleTimeout = 10 * time.Second

// Subscriber is the subscribing side of an MQTT client.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// StatusPatcher applies a device status update.
type StatusPatcher interface {
	EnsureOrPatchDeviceStatus(ctx context.Context, deviceID int, status string) (catalog.Result, error)
}

// Logger is the logging used by the status listener.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// ListenDeviceStatus subscribes to the device status topic under topics.
// Malformed messages are rejected with an error the client logs.
func ListenDeviceStatus(sub Subscriber, topics mqtt.Topics, qos byte, patcher StatusPatcher, logger Logger) error {
	topic := topics.DeviceStatus()
	if err := sub.Subscribe(topic, qos, StatusHandler(patcher, logger)); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	return nil
}

// StatusHandler returns the message handler behind ListenDeviceStatus.
func StatusHandler(patcher StatusPatcher, logger Logger) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		id, status, err := catalog.DecodeStatus(payload)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()

		res, err := patcher.EnsureOrPatchDeviceStatus(ctx, id, status)
		if err != nil {
			if errors.Is(err, catalog.ErrInvalidStatus) {
				logger.Warn("device status rejected", "topic", topic, "device_id", id, "status", status)
			}
			return err
		}
		logger.Debug("device status applied from bus", "device_id", id, "status", status, "created", res.Created)
		return nil
	}
}
