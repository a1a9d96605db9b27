package catalog

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/d-khalang/SMM/internal/infrastructure/database"
	_ "github.com/d-khalang/SMM/migrations"
)

var testCollections = Collections{
	Plants:  "plants",
	Devices: "devices",
	Users:   "users",
	General: "general",
}

// setupTestDB opens a migrated in-memory database.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func setupTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	return NewSQLiteRepository(setupTestDB(t).DB, testCollections)
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// newTestRegistry builds a registry over a fresh SQLite repository driven
// by a fake clock.
func newTestRegistry(t *testing.T) (*Registry, *SQLiteRepository, *fakeClock) {
	t.Helper()
	repo := setupTestRepo(t)
	clock := newFakeClock()
	reg := NewRegistry(repo)
	reg.now = clock.Now
	return reg, repo, clock
}

func testPlantBody(id int) []byte {
	return []byte(`{"plantId": ` + strconv.Itoa(id) + `, "plantDate": "2024-03-01"}`)
}

func testDeviceBody(id, plantID int) []byte {
	return []byte(`{
		"deviceId": ` + strconv.Itoa(id) + `,
		"deviceType": "sensor",
		"deviceName": "DHT22",
		"deviceLocation": {"plantId": ` + strconv.Itoa(plantID) + `},
		"deviceStatus": "ON",
		"statusOptions": ["ON", "OFF", "DISABLE"],
		"measureTypes": ["temperature", "humidity"],
		"availableServices": ["MQTT"],
		"servicesDetails": [{"serviceType": "MQTT", "topics": ["SMM/101/sensors/temp"]}]
	}`)
}

func testDevice(id, plantID int) Device {
	return Device{
		DeviceID:          id,
		DeviceType:        "sensor",
		DeviceName:        "DHT22",
		DeviceLocation:    &DeviceLocation{PlantID: plantID},
		DeviceStatus:      "ON",
		StatusOptions:     []string{"ON", "OFF", "DISABLE"},
		MeasureTypes:      []string{"temperature"},
		AvailableServices: []string{"MQTT"},
		ServicesDetails:   []ServiceDetail{{ServiceType: "MQTT", Topics: []string{"SMM/101/sensors/temp"}}},
	}
}

// recordingAnnouncer captures announced events.
type recordingAnnouncer struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (a *recordingAnnouncer) Announce(_ context.Context, ev Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
	return a.err
}

func (a *recordingAnnouncer) Events() []Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.events)
}

// recordingObserver captures observed measurements.
type recordingObserver struct {
	mu      sync.Mutex
	upserts []string
	sweeps  []string
	evicted map[string]int
}

func (o *recordingObserver) ObserveUpsert(kind, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.upserts = append(o.upserts, kind+"/"+outcome)
}

func (o *recordingObserver) ObserveSweep(outcome string, _ time.Duration, evicted map[string]int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sweeps = append(o.sweeps, outcome)
	if o.evicted == nil {
		o.evicted = make(map[string]int)
	}
	for k, n := range evicted {
		o.evicted[k] += n
	}
}

// recordingStats captures written points by measurement.
type recordingStats struct {
	mu     sync.Mutex
	points map[string]map[string]interface{}
}

func (s *recordingStats) WritePoint(measurement string, _ map[string]string, fields map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.points == nil {
		s.points = make(map[string]map[string]interface{})
	}
	s.points[measurement] = fields
}
