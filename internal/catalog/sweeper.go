package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// SweepReport summarises one sweep.
type SweepReport struct {
	StartedAt      time.Time
	Cutoff         time.Time
	PlantsScanned  int
	DevicesScanned int
	PlantsEvicted  int
	DevicesEvicted int

	// Skipped counts records whose lastUpdated did not parse or whose
	// deletion failed.
	Skipped int

	Reconciled ReconcileReport
	Duration   time.Duration
}

// Sweeper evicts plants and devices that have not been refreshed within
// the staleness threshold.
//
// A sweep is single-flight: a trigger while one runs is skipped and
// reported, never queued. Plants and devices are judged independently.
type Sweeper struct {
	registry  *Registry
	threshold time.Duration
	interval  time.Duration
	stats     StatsWriter
	running   atomic.Bool
}

// NewSweeper creates a sweeper evicting records older than threshold every interval.
func NewSweeper(registry *Registry, threshold, interval time.Duration) *Sweeper {
	return &Sweeper{
		registry:  registry,
		threshold: threshold,
		interval:  interval,
	}
}

// SetStatsWriter enables writing sweep statistics points.
func (s *Sweeper) SetStatsWriter(w StatsWriter) {
	s.stats = w
}

// Run sweeps once immediately and then on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	if _, err := s.SweepOnce(ctx); err != nil && !errors.Is(err, ErrSweepInProgress) {
		s.registry.logger.Error("sweep failed", "error", err)
	}
}

// SweepOnce runs one sweep. It returns ErrSweepInProgress without doing
// anything when another sweep is running.
func (s *Sweeper) SweepOnce(ctx context.Context) (SweepReport, error) {
	r := s.registry
	if !s.running.CompareAndSwap(false, true) {
		r.observer.ObserveSweep(SweepSkippedOverlap, 0, nil)
		r.logger.Warn("sweep skipped, previous sweep still running")
		return SweepReport{}, ErrSweepInProgress
	}
	defer s.running.Store(false)

	start := r.now()
	report := SweepReport{StartedAt: start, Cutoff: start.Add(-s.threshold)}
	r.logger.Debug("sweep started", "cutoff", FormatTimestamp(report.Cutoff))

	err := s.sweep(ctx, &report)
	report.Duration = r.now().Sub(start)

	if err != nil {
		r.observer.ObserveSweep(SweepFailed, report.Duration, s.evictions(report))
		return report, err
	}
	r.observer.ObserveSweep(SweepCompleted, report.Duration, s.evictions(report))
	r.logger.Info("sweep completed",
		"plants_evicted", report.PlantsEvicted,
		"devices_evicted", report.DevicesEvicted,
		"skipped", report.Skipped,
		"duration", report.Duration,
	)
	s.writeStats(ctx, report)
	return report, nil
}

func (s *Sweeper) sweep(ctx context.Context, report *SweepReport) error {
	r := s.registry

	plants, err := r.repo.ListPlants(ctx)
	if err != nil {
		return fmt.Errorf("listing plants: %w", err)
	}
	report.PlantsScanned = len(plants)
	for _, p := range plants {
		if s.evict(ctx, KindPlant, p.PlantID, p.LastUpdated, report.Cutoff, &report.Skipped) {
			report.PlantsEvicted++
		}
	}

	devices, err := r.repo.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("listing devices: %w", err)
	}
	report.DevicesScanned = len(devices)
	for _, d := range devices {
		if s.evict(ctx, KindDevice, d.DeviceID, d.LastUpdated, report.Cutoff, &report.Skipped) {
			report.DevicesEvicted++
		}
	}

	rec, err := r.Reconcile(ctx)
	report.Reconciled = rec
	if err != nil {
		return fmt.Errorf("reconciling inventories: %w", err)
	}
	return nil
}

// evict deletes one record if it is older than cutoff. Failures are
// logged, counted in skipped and never abort the sweep.
func (s *Sweeper) evict(ctx context.Context, kind Kind, id int, lastUpdated string, cutoff time.Time, skipped *int) bool {
	r := s.registry

	ts, err := ParseTimestamp(lastUpdated)
	if err != nil {
		*skipped++
		r.logger.Warn("unparseable lastUpdated, skipping",
			"kind", string(kind), "id", id, "last_updated", lastUpdated)
		return false
	}
	if !ts.Before(cutoff) {
		return false
	}

	deleted, err := r.delete(ctx, kind, id)
	if err != nil {
		*skipped++
		r.logger.Error("eviction failed", "kind", string(kind), "id", id, "error", err)
		return false
	}
	if !deleted {
		return false
	}

	r.logger.Info("stale document evicted", "kind", string(kind), "id", id, "last_updated", lastUpdated)
	r.announce(ctx, Event{Event: EventEvicted, Kind: kind, ID: id})
	return true
}

func (s *Sweeper) evictions(report SweepReport) map[string]int {
	return map[string]int{
		string(KindPlant):  report.PlantsEvicted,
		string(KindDevice): report.DevicesEvicted,
	}
}

// writeStats records the sweep and the post-sweep inventory sizes.
func (s *Sweeper) writeStats(ctx context.Context, report SweepReport) {
	if s.stats == nil {
		return
	}
	s.stats.WritePoint("catalog_sweep", nil, map[string]interface{}{
		"plants_scanned":  report.PlantsScanned,
		"devices_scanned": report.DevicesScanned,
		"plants_evicted":  report.PlantsEvicted,
		"devices_evicted": report.DevicesEvicted,
		"skipped":         report.Skipped,
		"duration_ms":     report.Duration.Milliseconds(),
	})

	users, err := s.registry.repo.ListUsers(ctx)
	if err != nil {
		s.registry.logger.Warn("counting users for stats failed", "error", err)
		return
	}
	s.stats.WritePoint("catalog_inventory", nil, map[string]interface{}{
		"plants":  report.PlantsScanned - report.PlantsEvicted,
		"devices": report.DevicesScanned - report.DevicesEvicted,
		"users":   len(users),
	})
}
