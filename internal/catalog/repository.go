package catalog

import "context"

// Repository defines the persistence operations of the catalog.
//
// Implementations own durable state; the registry holds none. Timestamps are
// assigned by the registry before a write reaches the repository. Store
// failures are wrapped with ErrStorage.
type Repository interface {
	// ListPlants returns every plant.
	ListPlants(ctx context.Context) ([]Plant, error)

	// ListDevices returns every device.
	ListDevices(ctx context.Context) ([]Device, error)

	// ListUsers returns every user.
	ListUsers(ctx context.Context) ([]User, error)

	// GetPlant returns ErrNotFound when the plant does not exist.
	GetPlant(ctx context.Context, id int) (*Plant, error)

	// GetDevice returns ErrNotFound when the device does not exist.
	GetDevice(ctx context.Context, id int) (*Device, error)

	// GetUser returns ErrNotFound when the user does not exist.
	GetUser(ctx context.Context, id int) (*User, error)

	// UpsertPlant replaces or inserts a plant by plantId. A new plant gets an
	// empty inventory; an existing plant keeps its stored inventory.
	UpsertPlant(ctx context.Context, p *Plant) (created bool, err error)

	// UpsertDevice replaces or inserts a device by deviceId, adds the id to
	// its plant's inventory and sets the plant's lastUpdated to the device's.
	// If the device moved from another plant, the old plant's inventory
	// drops the id without a timestamp refresh. Returns ErrUnknownPlant,
	// writing nothing, when the referenced plant does not exist.
	UpsertDevice(ctx context.Context, d *Device) (created bool, err error)

	// UpsertUser replaces or inserts a user by userId.
	UpsertUser(ctx context.Context, u *User) (created bool, err error)

	// PatchDeviceStatus sets deviceStatus and lastUpdated on a device,
	// creating a device holding only those fields when none exists. If the
	// stored device declares statusOptions without status it returns
	// ErrInvalidStatus and writes nothing; the check and the write are one
	// atomic step.
	PatchDeviceStatus(ctx context.Context, id int, status, lastUpdated string) (created bool, err error)

	// DeletePlant removes a plant. Its devices are left alone.
	DeletePlant(ctx context.Context, id int) (deleted bool, err error)

	// DeleteDevice removes a device and pulls its id from its plant's
	// inventory without refreshing the plant's timestamp.
	DeleteDevice(ctx context.Context, id int) (deleted bool, err error)

	// DeleteUser removes a user.
	DeleteUser(ctx context.Context, id int) (deleted bool, err error)

	// AddToInventory adds device ids to a plant's inventory (set union)
	// without touching lastUpdated. A missing plant is not an error.
	AddToInventory(ctx context.Context, plantID int, deviceIDs []int) error

	// PullFromInventory removes device ids from a plant's inventory without
	// touching lastUpdated. A missing plant is not an error.
	PullFromInventory(ctx context.Context, plantID int, deviceIDs []int) error

	// Broker returns the broker settings document, or ErrNotFound.
	Broker(ctx context.Context) (Broker, error)

	// MainTopic returns the main topic settings document, or ErrNotFound.
	MainTopic(ctx context.Context) (string, error)

	// SeedSettings writes each settings document that does not exist yet.
	// Existing documents are never overwritten.
	SeedSettings(ctx context.Context, s Settings) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}
