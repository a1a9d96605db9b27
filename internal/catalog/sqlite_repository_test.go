package catalog

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func seedPlant(t *testing.T, repo Repository, id int, lastUpdated string) {
	t.Helper()
	p := Plant{PlantID: id, PlantDate: "2024-03-01", LastUpdated: lastUpdated}
	if _, err := repo.UpsertPlant(context.Background(), &p); err != nil {
		t.Fatalf("UpsertPlant(%d) error = %v", id, err)
	}
}

func seedDevice(t *testing.T, repo Repository, id, plantID int, lastUpdated string) {
	t.Helper()
	d := testDevice(id, plantID)
	d.LastUpdated = lastUpdated
	if _, err := repo.UpsertDevice(context.Background(), &d); err != nil {
		t.Fatalf("UpsertDevice(%d) error = %v", id, err)
	}
}

func TestSQLiteRepository_UpsertPlant(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	p := Plant{PlantID: 101, PlantDate: "2024-03-01", DeviceInventory: []int{9}, LastUpdated: "2024-05-01 10:00:00"}
	created, err := repo.UpsertPlant(ctx, &p)
	if err != nil {
		t.Fatalf("UpsertPlant() error = %v", err)
	}
	if !created {
		t.Error("first UpsertPlant() created = false")
	}

	got, err := repo.GetPlant(ctx, 101)
	if err != nil {
		t.Fatalf("GetPlant() error = %v", err)
	}
	if got.DeviceInventory == nil || len(got.DeviceInventory) != 0 {
		t.Errorf("new plant inventory = %v, want []", got.DeviceInventory)
	}

	if err := repo.AddToInventory(ctx, 101, []int{1, 2}); err != nil {
		t.Fatalf("AddToInventory() error = %v", err)
	}

	again := Plant{PlantID: 101, PlantDate: "2024-04-01", LastUpdated: "2024-05-01 11:00:00"}
	created, err = repo.UpsertPlant(ctx, &again)
	if err != nil {
		t.Fatalf("second UpsertPlant() error = %v", err)
	}
	if created {
		t.Error("second UpsertPlant() created = true")
	}

	got, _ = repo.GetPlant(ctx, 101)
	if got.PlantDate != "2024-04-01" || got.LastUpdated != "2024-05-01 11:00:00" {
		t.Errorf("plant = %+v, want replaced date and timestamp", got)
	}
	if !slices.Equal(got.DeviceInventory, []int{1, 2}) {
		t.Errorf("inventory = %v, want preserved [1 2]", got.DeviceInventory)
	}

	plants, _ := repo.ListPlants(ctx)
	if len(plants) != 1 {
		t.Errorf("ListPlants() len = %d, want 1", len(plants))
	}
}

func TestSQLiteRepository_UpsertDevice(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown plant writes nothing", func(t *testing.T) {
		repo := setupTestRepo(t)
		d := testDevice(1, 404)
		_, err := repo.UpsertDevice(ctx, &d)
		if !errors.Is(err, ErrUnknownPlant) {
			t.Fatalf("UpsertDevice() error = %v, want ErrUnknownPlant", err)
		}
		if _, err := repo.GetDevice(ctx, 1); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetDevice() error = %v, want ErrNotFound", err)
		}
		if _, err := repo.GetPlant(ctx, 404); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetPlant() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("inventory accumulates without duplicates", func(t *testing.T) {
		repo := setupTestRepo(t)
		seedPlant(t, repo, 101, "2024-05-01 10:00:00")
		seedDevice(t, repo, 1, 101, "2024-05-01 10:01:00")
		seedDevice(t, repo, 2, 101, "2024-05-01 10:02:00")
		seedDevice(t, repo, 1, 101, "2024-05-01 10:03:00")

		plant, _ := repo.GetPlant(ctx, 101)
		if !slices.Equal(plant.DeviceInventory, []int{1, 2}) {
			t.Errorf("inventory = %v, want [1 2]", plant.DeviceInventory)
		}
		if plant.LastUpdated != "2024-05-01 10:03:00" {
			t.Errorf("plant lastUpdated = %q, want device timestamp", plant.LastUpdated)
		}

		devices, _ := repo.ListDevices(ctx)
		if len(devices) != 2 {
			t.Errorf("ListDevices() len = %d, want 2", len(devices))
		}
	})

	t.Run("created flag", func(t *testing.T) {
		repo := setupTestRepo(t)
		seedPlant(t, repo, 101, "2024-05-01 10:00:00")
		d := testDevice(1, 101)
		created, _ := repo.UpsertDevice(ctx, &d)
		if !created {
			t.Error("first UpsertDevice() created = false")
		}
		created, _ = repo.UpsertDevice(ctx, &d)
		if created {
			t.Error("second UpsertDevice() created = true")
		}
	})

	t.Run("moving device leaves old plant", func(t *testing.T) {
		repo := setupTestRepo(t)
		seedPlant(t, repo, 101, "2024-05-01 10:00:00")
		seedPlant(t, repo, 102, "2024-05-01 10:00:00")
		seedDevice(t, repo, 1, 101, "2024-05-01 10:01:00")
		seedDevice(t, repo, 1, 102, "2024-05-01 10:02:00")

		old, _ := repo.GetPlant(ctx, 101)
		if len(old.DeviceInventory) != 0 {
			t.Errorf("old plant inventory = %v, want []", old.DeviceInventory)
		}
		if old.LastUpdated != "2024-05-01 10:01:00" {
			t.Errorf("old plant lastUpdated = %q, want unchanged by the pull", old.LastUpdated)
		}
		moved, _ := repo.GetPlant(ctx, 102)
		if !slices.Equal(moved.DeviceInventory, []int{1}) {
			t.Errorf("new plant inventory = %v, want [1]", moved.DeviceInventory)
		}
	})
}

func TestSQLiteRepository_PatchDeviceStatus(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	created, err := repo.PatchDeviceStatus(ctx, 5, "ON", "2024-05-01 10:00:00")
	if err != nil {
		t.Fatalf("PatchDeviceStatus() error = %v", err)
	}
	if !created {
		t.Error("PatchDeviceStatus() on missing device created = false")
	}
	d, err := repo.GetDevice(ctx, 5)
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	if d.DeviceStatus != "ON" || d.DeviceLocation != nil || d.DeviceType != "" {
		t.Errorf("implicit device = %+v, want only id, status and timestamp", d)
	}

	seedPlant(t, repo, 101, "2024-05-01 10:00:00")
	seedDevice(t, repo, 6, 101, "2024-05-01 10:00:00")
	created, err = repo.PatchDeviceStatus(ctx, 6, "OFF", "2024-05-01 10:05:00")
	if err != nil || created {
		t.Fatalf("PatchDeviceStatus() = %v, %v, want false, nil", created, err)
	}
	d, _ = repo.GetDevice(ctx, 6)
	if d.DeviceStatus != "OFF" || d.LastUpdated != "2024-05-01 10:05:00" || d.DeviceName != "DHT22" {
		t.Errorf("patched device = %+v", d)
	}
	plant, _ := repo.GetPlant(ctx, 101)
	if plant.LastUpdated != "2024-05-01 10:00:00" {
		t.Errorf("plant lastUpdated = %q, want untouched by a status patch", plant.LastUpdated)
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)
	seedPlant(t, repo, 101, "2024-05-01 10:00:00")
	seedDevice(t, repo, 1, 101, "2024-05-01 10:01:00")
	seedDevice(t, repo, 2, 101, "2024-05-01 10:02:00")

	deleted, err := repo.DeleteDevice(ctx, 1)
	if err != nil || !deleted {
		t.Fatalf("DeleteDevice() = %v, %v, want true, nil", deleted, err)
	}
	plant, _ := repo.GetPlant(ctx, 101)
	if !slices.Equal(plant.DeviceInventory, []int{2}) {
		t.Errorf("inventory = %v, want [2]", plant.DeviceInventory)
	}
	if plant.LastUpdated != "2024-05-01 10:02:00" {
		t.Errorf("plant lastUpdated = %q, want unchanged", plant.LastUpdated)
	}

	deleted, err = repo.DeleteDevice(ctx, 1)
	if err != nil || deleted {
		t.Errorf("second DeleteDevice() = %v, %v, want false, nil", deleted, err)
	}

	deleted, err = repo.DeletePlant(ctx, 101)
	if err != nil || !deleted {
		t.Fatalf("DeletePlant() = %v, %v, want true, nil", deleted, err)
	}
	if _, err := repo.GetDevice(ctx, 2); err != nil {
		t.Errorf("device survives plant delete, GetDevice() error = %v", err)
	}

	u := User{UserID: 1, UserName: "ada", TelegramID: "1", DeviceInventory: []int{}}
	if _, err := repo.UpsertUser(ctx, &u); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	if deleted, _ := repo.DeleteUser(ctx, 1); !deleted {
		t.Error("DeleteUser() deleted = false")
	}
}

func TestSQLiteRepository_Inventory(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)
	seedPlant(t, repo, 101, "2024-05-01 10:00:00")

	if err := repo.AddToInventory(ctx, 101, []int{3, 1, 3}); err != nil {
		t.Fatalf("AddToInventory() error = %v", err)
	}
	if err := repo.PullFromInventory(ctx, 101, []int{3, 8}); err != nil {
		t.Fatalf("PullFromInventory() error = %v", err)
	}
	plant, _ := repo.GetPlant(ctx, 101)
	if !slices.Equal(plant.DeviceInventory, []int{1}) {
		t.Errorf("inventory = %v, want [1]", plant.DeviceInventory)
	}
	if plant.LastUpdated != "2024-05-01 10:00:00" {
		t.Errorf("lastUpdated = %q, want unchanged", plant.LastUpdated)
	}

	if err := repo.AddToInventory(ctx, 999, []int{1}); err != nil {
		t.Errorf("AddToInventory() on missing plant error = %v", err)
	}
}

func TestSQLiteRepository_UsersAndLists(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	for _, list := range []func() (int, error){
		func() (int, error) { p, err := repo.ListPlants(ctx); return len(p), err },
		func() (int, error) { d, err := repo.ListDevices(ctx); return len(d), err },
		func() (int, error) { u, err := repo.ListUsers(ctx); return len(u), err },
	} {
		if n, err := list(); err != nil || n != 0 {
			t.Errorf("empty list = %d, %v", n, err)
		}
	}

	u := User{UserID: 2, UserName: "bob", TelegramID: "7", DeviceInventory: []int{}}
	created, err := repo.UpsertUser(ctx, &u)
	if err != nil || !created {
		t.Fatalf("UpsertUser() = %v, %v", created, err)
	}
	u.UserName = "robert"
	created, _ = repo.UpsertUser(ctx, &u)
	if created {
		t.Error("second UpsertUser() created = true")
	}
	got, err := repo.GetUser(ctx, 2)
	if err != nil || got.UserName != "robert" {
		t.Errorf("GetUser() = %+v, %v", got, err)
	}
	if _, err := repo.GetUser(ctx, 3); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUser(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_Settings(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	if _, err := repo.Broker(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("Broker() before seed error = %v, want ErrNotFound", err)
	}

	seed := Settings{Broker: Broker{IP: "broker.local", Port: 1883}, MainTopic: "SMM"}
	if err := repo.SeedSettings(ctx, seed); err != nil {
		t.Fatalf("SeedSettings() error = %v", err)
	}
	// Existing documents are never overwritten.
	if err := repo.SeedSettings(ctx, Settings{Broker: Broker{IP: "other", Port: 1}, MainTopic: "X"}); err != nil {
		t.Fatalf("second SeedSettings() error = %v", err)
	}

	b, err := repo.Broker(ctx)
	if err != nil || b != seed.Broker {
		t.Errorf("Broker() = %+v, %v, want %+v", b, err, seed.Broker)
	}
	topic, err := repo.MainTopic(ctx)
	if err != nil || topic != "SMM" {
		t.Errorf("MainTopic() = %q, %v, want SMM", topic, err)
	}

	if err := repo.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestSQLiteRepository_CollectionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	a := NewSQLiteRepository(db.DB, testCollections)
	b := NewSQLiteRepository(db.DB, Collections{Plants: "plants_b", Devices: "devices_b", Users: "users_b", General: "general_b"})

	seedPlant(t, a, 1, "2024-05-01 10:00:00")
	if _, err := b.GetPlant(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPlant() across collections error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_PatchDeviceStatusChecksOptions(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)
	seedPlant(t, repo, 101, "2024-05-01 10:00:00")
	seedDevice(t, repo, 1, 101, "2024-05-01 10:00:00")

	if _, err := repo.PatchDeviceStatus(ctx, 1, "EXPLODED", "2024-05-01 11:00:00"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("PatchDeviceStatus() error = %v, want ErrInvalidStatus", err)
	}
	d, _ := repo.GetDevice(ctx, 1)
	if d.DeviceStatus != "ON" || d.LastUpdated != "2024-05-01 10:00:00" {
		t.Errorf("device = %+v, want untouched", d)
	}

	if _, err := repo.PatchDeviceStatus(ctx, 1, "OFF", "2024-05-01 11:00:00"); err != nil {
		t.Fatalf("PatchDeviceStatus(OFF) error = %v", err)
	}
}
