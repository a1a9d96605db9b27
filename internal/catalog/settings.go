package catalog

import (
	"context"
	"errors"
	"fmt"
)

// SeedSettings writes the broker and main topic documents that are missing
// and primes the cache from the store.
func (r *Registry) SeedSettings(ctx context.Context, s Settings) error {
	if err := r.repo.SeedSettings(ctx, s); err != nil {
		return fmt.Errorf("seeding settings: %w", err)
	}
	if _, err := r.Broker(ctx); err != nil {
		return err
	}
	if _, err := r.MainTopic(ctx); err != nil {
		return err
	}
	return nil
}

// Broker re-reads the broker address. When the store fails, the last value
// read successfully is served instead.
func (r *Registry) Broker(ctx context.Context) (Broker, error) {
	b, err := r.repo.Broker(ctx)
	if err == nil {
		r.settingsMu.Lock()
		r.broker = &b
		r.settingsMu.Unlock()
		return b, nil
	}

	if !errors.Is(err, ErrNotFound) {
		r.settingsMu.RLock()
		cached := r.broker
		r.settingsMu.RUnlock()
		if cached != nil {
			r.logger.Warn("serving cached broker", "error", err)
			return *cached, nil
		}
	}
	return Broker{}, fmt.Errorf("reading broker: %w", err)
}

// MainTopic re-reads the main topic, falling back like Broker.
func (r *Registry) MainTopic(ctx context.Context) (string, error) {
	topic, err := r.repo.MainTopic(ctx)
	if err == nil {
		r.settingsMu.Lock()
		r.mainTopic = topic
		r.settingsMu.Unlock()
		return topic, nil
	}

	if !errors.Is(err, ErrNotFound) {
		if cached := r.cachedMainTopic(); cached != "" {
			r.logger.Warn("serving cached main topic", "error", err)
			return cached, nil
		}
	}
	return "", fmt.Errorf("reading main topic: %w", err)
}

func (r *Registry) cachedMainTopic() string {
	r.settingsMu.RLock()
	defer r.settingsMu.RUnlock()
	return r.mainTopic
}
