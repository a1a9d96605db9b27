package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// Collections names the collection holding each entity kind.
// The same names are used by both document stores.
type Collections struct {
	Plants  string
	Devices string
	Users   string
	General string
}

// Settings document keys in the general collection.
const (
	settingBroker    = "broker"
	settingMainTopic = "mainTopic"
)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteRepository implements Repository as JSON documents in SQLite.
//
// Each entity is one row of the documents table keyed by (collection,
// business_id). Multi-document writes run in a single transaction.
type SQLiteRepository struct {
	db   *sql.DB
	cols Collections
}

// NewSQLiteRepository creates a repository over a migrated database.
func NewSQLiteRepository(db *sql.DB, cols Collections) *SQLiteRepository {
	return &SQLiteRepository{db: db, cols: cols}
}

// ListPlants returns every plant ordered by plantId.
func (r *SQLiteRepository) ListPlants(ctx context.Context) ([]Plant, error) {
	return listDocuments[Plant](ctx, r.db, r.cols.Plants)
}

// ListDevices returns every device ordered by deviceId.
func (r *SQLiteRepository) ListDevices(ctx context.Context) ([]Device, error) {
	return listDocuments[Device](ctx, r.db, r.cols.Devices)
}

// ListUsers returns every user ordered by userId.
func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]User, error) {
	return listDocuments[User](ctx, r.db, r.cols.Users)
}

// GetPlant retrieves a plant by plantId.
func (r *SQLiteRepository) GetPlant(ctx context.Context, id int) (*Plant, error) {
	var p Plant
	if err := getDocument(ctx, r.db, r.cols.Plants, id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetDevice retrieves a device by deviceId.
func (r *SQLiteRepository) GetDevice(ctx context.Context, id int) (*Device, error) {
	var d Device
	if err := getDocument(ctx, r.db, r.cols.Devices, id, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetUser retrieves a user by userId.
func (r *SQLiteRepository) GetUser(ctx context.Context, id int) (*User, error) {
	var u User
	if err := getDocument(ctx, r.db, r.cols.Users, id, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpsertPlant replaces or inserts a plant, preserving a stored inventory.
func (r *SQLiteRepository) UpsertPlant(ctx context.Context, p *Plant) (bool, error) {
	var created bool
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var existing Plant
		err := getDocument(ctx, tx, r.cols.Plants, p.PlantID, &existing)
		switch {
		case errors.Is(err, ErrNotFound):
			created = true
			p.DeviceInventory = []int{}
		case err != nil:
			return err
		default:
			p.DeviceInventory = existing.DeviceInventory
			if p.DeviceInventory == nil {
				p.DeviceInventory = []int{}
			}
		}
		return putDocument(ctx, tx, r.cols.Plants, p.PlantID, p, p.LastUpdated)
	})
	return created, err
}

// UpsertDevice writes the device and its plant's inventory in one transaction.
func (r *SQLiteRepository) UpsertDevice(ctx context.Context, d *Device) (bool, error) {
	plantID, ok := d.PlantID()
	if !ok {
		return false, fmt.Errorf("%w: deviceLocation is required", ErrInvalidRecord)
	}

	var created bool
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var plant Plant
		if err := getDocument(ctx, tx, r.cols.Plants, plantID, &plant); err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: plant %d does not exist", ErrUnknownPlant, plantID)
			}
			return err
		}

		var previous Device
		err := getDocument(ctx, tx, r.cols.Devices, d.DeviceID, &previous)
		switch {
		case errors.Is(err, ErrNotFound):
			created = true
		case err != nil:
			return err
		}

		if err := putDocument(ctx, tx, r.cols.Devices, d.DeviceID, d, d.LastUpdated); err != nil {
			return err
		}

		plant.DeviceInventory = unionIDs(plant.DeviceInventory, d.DeviceID)
		plant.LastUpdated = d.LastUpdated
		if err := putDocument(ctx, tx, r.cols.Plants, plant.PlantID, &plant, plant.LastUpdated); err != nil {
			return err
		}

		if oldPlantID, had := previous.PlantID(); !created && had && oldPlantID != plantID {
			return r.pullInTx(ctx, tx, oldPlantID, []int{d.DeviceID})
		}
		return nil
	})
	return created, err
}

// UpsertUser replaces or inserts a user.
func (r *SQLiteRepository) UpsertUser(ctx context.Context, u *User) (bool, error) {
	var created bool
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		exists, err := documentExists(ctx, tx, r.cols.Users, u.UserID)
		if err != nil {
			return err
		}
		created = !exists
		return putDocument(ctx, tx, r.cols.Users, u.UserID, u, u.LastUpdated)
	})
	return created, err
}

// PatchDeviceStatus sets deviceStatus and lastUpdated, creating the device if needed.
func (r *SQLiteRepository) PatchDeviceStatus(ctx context.Context, id int, status, lastUpdated string) (bool, error) {
	var created bool
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var d Device
		err := getDocument(ctx, tx, r.cols.Devices, id, &d)
		switch {
		case errors.Is(err, ErrNotFound):
			created = true
			d = Device{DeviceID: id}
		case err != nil:
			return err
		case len(d.StatusOptions) > 0 && !slices.Contains(d.StatusOptions, status):
			return fmt.Errorf("%w: %q must be one of %v", ErrInvalidStatus, status, d.StatusOptions)
		}
		d.DeviceStatus = status
		d.LastUpdated = lastUpdated
		return putDocument(ctx, tx, r.cols.Devices, id, &d, lastUpdated)
	})
	return created, err
}

// DeletePlant removes a plant.
func (r *SQLiteRepository) DeletePlant(ctx context.Context, id int) (bool, error) {
	return deleteDocument(ctx, r.db, r.cols.Plants, id)
}

// DeleteDevice removes a device and pulls it from its plant's inventory.
func (r *SQLiteRepository) DeleteDevice(ctx context.Context, id int) (bool, error) {
	var deleted bool
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var d Device
		if err := getDocument(ctx, tx, r.cols.Devices, id, &d); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}
		var err error
		if deleted, err = deleteDocument(ctx, tx, r.cols.Devices, id); err != nil {
			return err
		}
		if plantID, ok := d.PlantID(); ok {
			return r.pullInTx(ctx, tx, plantID, []int{id})
		}
		return nil
	})
	return deleted, err
}

// DeleteUser removes a user.
func (r *SQLiteRepository) DeleteUser(ctx context.Context, id int) (bool, error) {
	return deleteDocument(ctx, r.db, r.cols.Users, id)
}

// AddToInventory adds device ids to a plant's inventory.
func (r *SQLiteRepository) AddToInventory(ctx context.Context, plantID int, deviceIDs []int) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		return r.modifyInventory(ctx, tx, plantID, func(inv []int) []int {
			return unionIDs(inv, deviceIDs...)
		})
	})
}

// PullFromInventory removes device ids from a plant's inventory.
func (r *SQLiteRepository) PullFromInventory(ctx context.Context, plantID int, deviceIDs []int) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		return r.pullInTx(ctx, tx, plantID, deviceIDs)
	})
}

// Broker returns the broker settings document.
func (r *SQLiteRepository) Broker(ctx context.Context) (Broker, error) {
	var b Broker
	err := r.getSetting(ctx, settingBroker, &b)
	return b, err
}

// MainTopic returns the main topic settings document.
func (r *SQLiteRepository) MainTopic(ctx context.Context) (string, error) {
	var topic string
	err := r.getSetting(ctx, settingMainTopic, &topic)
	return topic, err
}

// SeedSettings inserts the settings documents that are missing.
func (r *SQLiteRepository) SeedSettings(ctx context.Context, s Settings) error {
	values := []struct {
		key   string
		value any
	}{
		{settingBroker, s.Broker},
		{settingMainTopic, s.MainTopic},
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		for _, v := range values {
			body, err := json.Marshal(v.value)
			if err != nil {
				return fmt.Errorf("encoding setting %s: %w", v.key, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO settings (collection, key, value) VALUES (?, ?, ?)
				 ON CONFLICT (collection, key) DO NOTHING`,
				r.cols.General, v.key, string(body),
			); err != nil {
				return fmt.Errorf("%w: seeding setting %s: %w", ErrStorage, v.key, err)
			}
		}
		return nil
	})
}

// Ping verifies the database answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

func (r *SQLiteRepository) getSetting(ctx context.Context, key string, dst any) error {
	var value string
	err := r.db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE collection = ? AND key = ?",
		r.cols.General, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: setting %s", ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("%w: reading setting %s: %w", ErrStorage, key, err)
	}
	if err := json.Unmarshal([]byte(value), dst); err != nil {
		return fmt.Errorf("%w: decoding setting %s: %w", ErrStorage, key, err)
	}
	return nil
}

func (r *SQLiteRepository) pullInTx(ctx context.Context, tx *sql.Tx, plantID int, deviceIDs []int) error {
	return r.modifyInventory(ctx, tx, plantID, func(inv []int) []int {
		return withoutIDs(inv, deviceIDs...)
	})
}

// modifyInventory rewrites a plant's inventory, keeping its lastUpdated.
func (r *SQLiteRepository) modifyInventory(ctx context.Context, tx *sql.Tx, plantID int, change func([]int) []int) error {
	var plant Plant
	if err := getDocument(ctx, tx, r.cols.Plants, plantID, &plant); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	updated := change(plant.DeviceInventory)
	if sameIDs(updated, plant.DeviceInventory) {
		return nil
	}
	plant.DeviceInventory = updated
	return putDocument(ctx, tx, r.cols.Plants, plantID, &plant, plant.LastUpdated)
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: starting transaction: %w", ErrStorage, err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing transaction: %w", ErrStorage, err)
	}
	return nil
}

func getDocument(ctx context.Context, q queryer, collection string, id int, dst any) error {
	var body string
	err := q.QueryRowContext(ctx,
		"SELECT body FROM documents WHERE collection = ? AND business_id = ?",
		collection, id,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: reading %s %d: %w", ErrStorage, collection, id, err)
	}
	if err := json.Unmarshal([]byte(body), dst); err != nil {
		return fmt.Errorf("%w: decoding %s %d: %w", ErrStorage, collection, id, err)
	}
	return nil
}

func documentExists(ctx context.Context, q queryer, collection string, id int) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE collection = ? AND business_id = ?",
		collection, id,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("%w: checking %s %d: %w", ErrStorage, collection, id, err)
	}
	return n > 0, nil
}

func putDocument(ctx context.Context, q queryer, collection string, id int, doc any, lastUpdated string) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding %s %d: %w", collection, id, err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO documents (collection, business_id, body, last_updated)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (collection, business_id)
		DO UPDATE SET body = excluded.body, last_updated = excluded.last_updated`,
		collection, id, string(body), lastUpdated,
	)
	if err != nil {
		return fmt.Errorf("%w: writing %s %d: %w", ErrStorage, collection, id, err)
	}
	return nil
}

func deleteDocument(ctx context.Context, q queryer, collection string, id int) (bool, error) {
	res, err := q.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = ? AND business_id = ?",
		collection, id,
	)
	if err != nil {
		return false, fmt.Errorf("%w: deleting %s %d: %w", ErrStorage, collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: deleting %s %d: %w", ErrStorage, collection, id, err)
	}
	return n > 0, nil
}

func listDocuments[T any](ctx context.Context, q queryer, collection string) ([]T, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT body FROM documents WHERE collection = ? ORDER BY business_id",
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %w", ErrStorage, collection, err)
	}
	defer rows.Close()

	docs := []T{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("%w: scanning %s: %w", ErrStorage, collection, err)
		}
		var doc T
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			return nil, fmt.Errorf("%w: decoding %s: %w", ErrStorage, collection, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating %s: %w", ErrStorage, collection, err)
	}
	return docs, nil
}
