package catalog

import (
	"context"
	"fmt"
	"slices"
)

// ReconcileReport counts the inventory corrections made by Reconcile.
type ReconcileReport struct {
	Added   int
	Removed int
}

// Reconcile repairs drift between devices and plant inventories.
//
// Every device located at an existing plant is added to that plant's
// inventory; inventory ids whose device is gone, or now located elsewhere,
// are removed. Timestamps are not refreshed so a reconciled plant can still
// go stale. Plants are listed before devices: an id seen in an inventory
// whose device is missing from the later device listing was deleted.
//
// Corrections are judged against those two snapshots. A device that
// registers back into a plant after the device listing can have its id
// pulled again by this pass; the next pass adds it back, so inventories
// converge within one reconcile interval rather than immediately.
func (r *Registry) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	plants, err := r.repo.ListPlants(ctx)
	if err != nil {
		return report, fmt.Errorf("listing plants: %w", err)
	}
	devices, err := r.repo.ListDevices(ctx)
	if err != nil {
		return report, fmt.Errorf("listing devices: %w", err)
	}

	want := make(map[int][]int, len(plants))
	for i := range devices {
		if plantID, ok := devices[i].PlantID(); ok {
			want[plantID] = append(want[plantID], devices[i].DeviceID)
		}
	}

	for _, plant := range plants {
		expected := want[plant.PlantID]
		var missing, dangling []int
		for _, id := range expected {
			if !slices.Contains(plant.DeviceInventory, id) {
				missing = append(missing, id)
			}
		}
		for _, id := range plant.DeviceInventory {
			if !slices.Contains(expected, id) {
				dangling = append(dangling, id)
			}
		}

		if len(missing) > 0 {
			if err := r.repo.AddToInventory(ctx, plant.PlantID, missing); err != nil {
				return report, fmt.Errorf("adding to plant %d: %w", plant.PlantID, err)
			}
			report.Added += len(missing)
			r.logger.Info("inventory repaired", "plant_id", plant.PlantID, "added", missing)
		}
		if len(dangling) > 0 {
			if err := r.repo.PullFromInventory(ctx, plant.PlantID, dangling); err != nil {
				return report, fmt.Errorf("pulling from plant %d: %w", plant.PlantID, err)
			}
			report.Removed += len(dangling)
			r.logger.Info("inventory repaired", "plant_id", plant.PlantID, "removed", dangling)
		}
	}

	return report, nil
}

// unionIDs appends the ids not already in set. The result is never nil.
func unionIDs(set []int, ids ...int) []int {
	out := slices.Clone(set)
	if out == nil {
		out = []int{}
	}
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// withoutIDs returns set minus ids. The result is never nil.
func withoutIDs(set []int, ids ...int) []int {
	out := make([]int, 0, len(set))
	for _, id := range set {
		if !slices.Contains(ids, id) {
			out = append(out, id)
		}
	}
	return out
}

// sameIDs reports whether a and b hold the same ids in the same order.
func sameIDs(a, b []int) bool {
	return slices.Equal(a, b)
}
