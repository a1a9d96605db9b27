package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry and Sweeper.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry implements the catalog's upsert protocol on top of a Repository.
//
// It holds no entity state. The only cached values are the last broker and
// main topic successfully read from the store.
//
// All public methods are thread-safe.
type Registry struct {
	repo      Repository
	logger    Logger
	announcer Announcer
	observer  Observer
	now       func() time.Time

	settingsMu sync.RWMutex
	broker     *Broker
	mainTopic  string
}

// NewRegistry creates a registry over repo.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:      repo,
		logger:    noopLogger{},
		announcer: noopAnnouncer{},
		observer:  noopObserver{},
		now:       time.Now,
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetAnnouncer sets where change events are published.
func (r *Registry) SetAnnouncer(a Announcer) {
	r.announcer = a
}

// SetObserver sets the receiver of operational measurements.
func (r *Registry) SetObserver(o Observer) {
	r.observer = o
}

// Ping checks the underlying store.
func (r *Registry) Ping(ctx context.Context) error {
	return r.repo.Ping(ctx)
}

// Register decodes a payload of the given kind and upserts it.
func (r *Registry) Register(ctx context.Context, kind Kind, body []byte) (Result, error) {
	switch kind {
	case KindPlant:
		p, err := DecodePlant(body)
		if err != nil {
			return r.settle(ctx, kind, 0, false, err)
		}
		return r.UpsertPlant(ctx, p)
	case KindDevice:
		d, err := DecodeDevice(body)
		if err != nil {
			return r.settle(ctx, kind, 0, false, err)
		}
		return r.UpsertDevice(ctx, d)
	case KindUser:
		u, err := DecodeUser(body)
		if err != nil {
			return r.settle(ctx, kind, 0, false, err)
		}
		return r.UpsertUser(ctx, u)
	}
	return Result{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidRecord, kind)
}

// UpsertPlant replaces or inserts a plant. A stored inventory is preserved;
// a new plant starts with an empty one.
func (r *Registry) UpsertPlant(ctx context.Context, p Plant) (Result, error) {
	if err := ValidatePlant(p); err != nil {
		return r.settle(ctx, KindPlant, p.PlantID, false, err)
	}
	p.DeviceInventory = nil
	p.LastUpdated = FormatTimestamp(r.now())

	created, err := r.repo.UpsertPlant(ctx, &p)
	return r.settle(ctx, KindPlant, p.PlantID, created, err)
}

// UpsertDevice replaces or inserts a device and adds it to its plant's
// inventory, refreshing the plant's lastUpdated.
func (r *Registry) UpsertDevice(ctx context.Context, d Device) (Result, error) {
	if err := ValidateDevice(d); err != nil {
		return r.settle(ctx, KindDevice, d.DeviceID, false, err)
	}
	d.LastUpdated = FormatTimestamp(r.now())

	created, err := r.repo.UpsertDevice(ctx, &d)
	return r.settle(ctx, KindDevice, d.DeviceID, created, err)
}

// UpsertUser replaces or inserts a user.
func (r *Registry) UpsertUser(ctx context.Context, u User) (Result, error) {
	if u.DeviceInventory == nil {
		u.DeviceInventory = []int{}
	}
	u.LastUpdated = FormatTimestamp(r.now())

	created, err := r.repo.UpsertUser(ctx, &u)
	return r.settle(ctx, KindUser, u.UserID, created, err)
}

// EnsureOrPatchDeviceStatus sets a device's status and refreshes its
// lastUpdated without a full registration.
//
// An unknown device is created holding only deviceId, deviceStatus and
// lastUpdated, and no plant inventory is touched. A known device that
// declares statusOptions must receive one of them; the repository checks
// this in the same write that stores the status.
func (r *Registry) EnsureOrPatchDeviceStatus(ctx context.Context, deviceID int, status string) (Result, error) {
	created, err := r.repo.PatchDeviceStatus(ctx, deviceID, status, FormatTimestamp(r.now()))
	return r.settleStatus(ctx, deviceID, status, created, err)
}

// List returns every document of a kind as []Plant, []Device or []User.
func (r *Registry) List(ctx context.Context, kind Kind) (any, error) {
	switch kind {
	case KindPlant:
		return r.repo.ListPlants(ctx)
	case KindDevice:
		return r.repo.ListDevices(ctx)
	case KindUser:
		return r.repo.ListUsers(ctx)
	}
	return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidRecord, kind)
}

// Get returns one document by business id, or ErrNotFound.
func (r *Registry) Get(ctx context.Context, kind Kind, id int) (any, error) {
	var (
		doc any
		err error
	)
	switch kind {
	case KindPlant:
		doc, err = r.repo.GetPlant(ctx, id)
	case KindDevice:
		doc, err = r.repo.GetDevice(ctx, id)
	case KindUser:
		doc, err = r.repo.GetUser(ctx, id)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidRecord, kind)
	}
	if errors.Is(err, ErrNotFound) {
		r.logger.Debug("lookup missed", "kind", string(kind), "id", id)
		return nil, fmt.Errorf("%w: %s %d", ErrNotFound, kind.Singular(), id)
	}
	return doc, err
}

// delete removes one document by business id. Deleting a device pulls it
// from its plant's inventory.
func (r *Registry) delete(ctx context.Context, kind Kind, id int) (bool, error) {
	switch kind {
	case KindPlant:
		return r.repo.DeletePlant(ctx, id)
	case KindDevice:
		return r.repo.DeleteDevice(ctx, id)
	case KindUser:
		return r.repo.DeleteUser(ctx, id)
	}
	return false, fmt.Errorf("%w: unknown kind %q", ErrInvalidRecord, kind)
}

// settle turns a write outcome into a Result, logging, observing and
// announcing it.
func (r *Registry) settle(ctx context.Context, kind Kind, id int, created bool, err error) (Result, error) {
	if err != nil {
		r.fail(string(kind), kind, id, err)
		return Result{}, err
	}

	r.observer.ObserveUpsert(string(kind), outcome(created))
	r.logger.Info("document registered", "kind", string(kind), "id", id, "created", created)
	r.announce(ctx, Event{Event: EventRegistered, Kind: kind, ID: id, Created: created})

	return Result{
		Kind:    kind,
		ID:      id,
		Created: created,
		Message: fmt.Sprintf("%s registered successfully", capitalize(kind.Singular())),
	}, nil
}

func (r *Registry) settleStatus(ctx context.Context, id int, status string, created bool, err error) (Result, error) {
	const label = "device_status"
	if err != nil {
		r.fail(label, KindDevice, id, err)
		return Result{}, err
	}

	r.observer.ObserveUpsert(label, outcome(created))
	r.logger.Info("device status updated", "id", id, "status", status, "created", created)
	r.announce(ctx, Event{Event: EventStatus, Kind: KindDevice, ID: id, Created: created, Status: status})

	return Result{
		Kind:    KindDevice,
		ID:      id,
		Created: created,
		Message: "Device status updated successfully",
	}, nil
}

func (r *Registry) fail(label string, kind Kind, id int, err error) {
	if IsValidationError(err) {
		r.observer.ObserveUpsert(label, OutcomeRejected)
		r.logger.Debug("write rejected", "kind", string(kind), "id", id, "error", err)
		return
	}
	r.observer.ObserveUpsert(label, OutcomeFailed)
	r.logger.Error("write failed", "kind", string(kind), "id", id, "error", err)
}

func outcome(created bool) string {
	if created {
		return OutcomeCreated
	}
	return OutcomeUpdated
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
