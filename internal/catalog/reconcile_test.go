package catalog

import (
	"context"
	"slices"
	"testing"
)

func TestRegistry_Reconcile(t *testing.T) {
	ctx := context.Background()
	reg, repo, _ := newTestRegistry(t)

	seedPlant(t, repo, 101, "2024-05-01 10:00:00")
	seedPlant(t, repo, 102, "2024-05-01 10:00:00")
	seedDevice(t, repo, 1, 101, "2024-05-01 10:00:00")
	seedDevice(t, repo, 2, 102, "2024-05-01 10:00:00")

	// Drift: device 1 missing from its plant, dangling id 9 in plant 102.
	if err := repo.PullFromInventory(ctx, 101, []int{1}); err != nil {
		t.Fatalf("PullFromInventory() error = %v", err)
	}
	if err := repo.AddToInventory(ctx, 102, []int{9}); err != nil {
		t.Fatalf("AddToInventory() error = %v", err)
	}

	report, err := reg.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if report.Added != 1 || report.Removed != 1 {
		t.Errorf("report = %+v, want 1 added, 1 removed", report)
	}

	p101, _ := repo.GetPlant(ctx, 101)
	p102, _ := repo.GetPlant(ctx, 102)
	if !slices.Equal(p101.DeviceInventory, []int{1}) || !slices.Equal(p102.DeviceInventory, []int{2}) {
		t.Errorf("inventories = %v / %v, want [1] / [2]", p101.DeviceInventory, p102.DeviceInventory)
	}
	if p101.LastUpdated != "2024-05-01 10:00:00" {
		t.Errorf("lastUpdated = %q, want untouched", p101.LastUpdated)
	}

	report, err = reg.Reconcile(ctx)
	if err != nil || report != (ReconcileReport{}) {
		t.Errorf("second Reconcile() = %+v, %v, want no changes", report, err)
	}
}

func TestIDSetHelpers(t *testing.T) {
	if got := unionIDs(nil, 1, 2, 1); !slices.Equal(got, []int{1, 2}) {
		t.Errorf("unionIDs() = %v", got)
	}
	if got := unionIDs(nil); got == nil {
		t.Error("unionIDs() = nil, want empty")
	}
	if got := withoutIDs([]int{1, 2, 3}, 2, 7); !slices.Equal(got, []int{1, 3}) {
		t.Errorf("withoutIDs() = %v", got)
	}
	if got := withoutIDs(nil, 1); got == nil {
		t.Error("withoutIDs() = nil, want empty")
	}
}
