package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Business id field names, shared by documents and filters.
const (
	fieldPlantID         = "plantId"
	fieldDeviceID        = "deviceId"
	fieldUserID          = "userId"
	fieldDeviceInventory = "deviceInventory"
	fieldLastUpdated     = "lastUpdated"
	fieldDeviceStatus    = "deviceStatus"
	fieldStatusOptions   = "statusOptions"
)

// MongoRepository implements Repository on MongoDB collections.
//
// Every write is a single-document operation. A device registration is two
// writes (device first, then plant inventory); a crash in between leaves a
// device missing from its plant's inventory until Reconcile runs.
type MongoRepository struct {
	db      *mongo.Database
	plants  *mongo.Collection
	devices *mongo.Collection
	users   *mongo.Collection
	general *mongo.Collection
}

// NewMongoRepository creates a repository over the given database.
func NewMongoRepository(db *mongo.Database, cols Collections) *MongoRepository {
	return &MongoRepository{
		db:      db,
		plants:  db.Collection(cols.Plants),
		devices: db.Collection(cols.Devices),
		users:   db.Collection(cols.Users),
		general: db.Collection(cols.General),
	}
}

// EnsureIndexes creates a unique index on each collection's business id.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	for coll, field := range map[*mongo.Collection]string{
		r.plants:  fieldPlantID,
		r.devices: fieldDeviceID,
		r.users:   fieldUserID,
	} {
		_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: field, Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			return fmt.Errorf("%w: indexing %s.%s: %w", ErrStorage, coll.Name(), field, err)
		}
	}
	return nil
}

// ListPlants returns every plant ordered by plantId.
func (r *MongoRepository) ListPlants(ctx context.Context) ([]Plant, error) {
	return findAll[Plant](ctx, r.plants, fieldPlantID)
}

// ListDevices returns every device ordered by deviceId.
func (r *MongoRepository) ListDevices(ctx context.Context) ([]Device, error) {
	return findAll[Device](ctx, r.devices, fieldDeviceID)
}

// ListUsers returns every user ordered by userId.
func (r *MongoRepository) ListUsers(ctx context.Context) ([]User, error) {
	return findAll[User](ctx, r.users, fieldUserID)
}

// GetPlant retrieves a plant by plantId.
func (r *MongoRepository) GetPlant(ctx context.Context, id int) (*Plant, error) {
	var p Plant
	if err := findOne(ctx, r.plants, byID(fieldPlantID, id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetDevice retrieves a device by deviceId.
func (r *MongoRepository) GetDevice(ctx context.Context, id int) (*Device, error) {
	var d Device
	if err := findOne(ctx, r.devices, byID(fieldDeviceID, id), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetUser retrieves a user by userId.
func (r *MongoRepository) GetUser(ctx context.Context, id int) (*User, error) {
	var u User
	if err := findOne(ctx, r.users, byID(fieldUserID, id), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpsertPlant sets the plant's fields; the inventory is only written on insert.
func (r *MongoRepository) UpsertPlant(ctx context.Context, p *Plant) (bool, error) {
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: fieldPlantID, Value: p.PlantID},
			{Key: "plantDate", Value: p.PlantDate},
			{Key: fieldLastUpdated, Value: p.LastUpdated},
		}},
		{Key: "$setOnInsert", Value: bson.D{
			{Key: fieldDeviceInventory, Value: []int{}},
		}},
	}
	res, err := r.plants.UpdateOne(ctx, byID(fieldPlantID, p.PlantID), update, options.Update().SetUpsert(true))
	if err != nil {
		return false, fmt.Errorf("%w: upserting plant %d: %w", ErrStorage, p.PlantID, err)
	}
	return res.UpsertedCount > 0, nil
}

// UpsertDevice writes the device, then adds it to its plant's inventory.
func (r *MongoRepository) UpsertDevice(ctx context.Context, d *Device) (bool, error) {
	plantID, ok := d.PlantID()
	if !ok {
		return false, fmt.Errorf("%w: deviceLocation is required", ErrInvalidRecord)
	}

	n, err := r.plants.CountDocuments(ctx, byID(fieldPlantID, plantID), options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("%w: checking plant %d: %w", ErrStorage, plantID, err)
	}
	if n == 0 {
		return false, fmt.Errorf("%w: plant %d does not exist", ErrUnknownPlant, plantID)
	}

	// The stored document is replaced whole; fields absent from d (omitempty)
	// must not survive from the previous registration.
	var previous Device
	created := false
	err = r.devices.FindOneAndReplace(ctx, byID(fieldDeviceID, d.DeviceID), d, replaceDeviceOptions()).Decode(&previous)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		created = true
	case err != nil:
		return false, fmt.Errorf("%w: upserting device %d: %w", ErrStorage, d.DeviceID, err)
	}

	_, err = r.plants.UpdateOne(ctx, byID(fieldPlantID, plantID), bson.D{
		{Key: "$addToSet", Value: bson.D{{Key: fieldDeviceInventory, Value: d.DeviceID}}},
		{Key: "$set", Value: bson.D{{Key: fieldLastUpdated, Value: d.LastUpdated}}},
	})
	if err != nil {
		return created, fmt.Errorf("%w: adding device %d to plant %d: %w", ErrStorage, d.DeviceID, plantID, err)
	}

	if oldPlantID, had := previous.PlantID(); !created && had && oldPlantID != plantID {
		if err := r.PullFromInventory(ctx, oldPlantID, []int{d.DeviceID}); err != nil {
			return created, err
		}
	}
	return created, nil
}

// UpsertUser replaces or inserts a user.
func (r *MongoRepository) UpsertUser(ctx context.Context, u *User) (bool, error) {
	res, err := r.users.UpdateOne(ctx,
		byID(fieldUserID, u.UserID),
		bson.D{{Key: "$set", Value: u}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("%w: upserting user %d: %w", ErrStorage, u.UserID, err)
	}
	return res.UpsertedCount > 0, nil
}

// PatchDeviceStatus sets deviceStatus and lastUpdated, creating the device
// if needed. The statusOptions check is part of the update filter, so a
// registration racing the patch cannot slip a disallowed status in.
func (r *MongoRepository) PatchDeviceStatus(ctx context.Context, id int, status, lastUpdated string) (bool, error) {
	res, err := r.devices.UpdateOne(ctx,
		statusPatchFilter(id, status),
		bson.D{{Key: "$set", Value: bson.D{
			{Key: fieldDeviceStatus, Value: status},
			{Key: fieldLastUpdated, Value: lastUpdated},
		}}},
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		// The device exists but the filter rejected status, so the upsert
		// tried to insert a second document with the same deviceId.
		return false, fmt.Errorf("%w: %q is not one of device %d's statusOptions", ErrInvalidStatus, status, id)
	}
	if err != nil {
		return false, fmt.Errorf("%w: patching device %d status: %w", ErrStorage, id, err)
	}
	return res.UpsertedCount > 0, nil
}

// DeletePlant removes a plant.
func (r *MongoRepository) DeletePlant(ctx context.Context, id int) (bool, error) {
	return deleteOne(ctx, r.plants, fieldPlantID, id)
}

// DeleteDevice removes a device and pulls it from its plant's inventory.
func (r *MongoRepository) DeleteDevice(ctx context.Context, id int) (bool, error) {
	var d Device
	err := r.devices.FindOneAndDelete(ctx, byID(fieldDeviceID, id)).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: deleting device %d: %w", ErrStorage, id, err)
	}
	if plantID, ok := d.PlantID(); ok {
		if err := r.PullFromInventory(ctx, plantID, []int{id}); err != nil {
			return true, err
		}
	}
	return true, nil
}

// DeleteUser removes a user.
func (r *MongoRepository) DeleteUser(ctx context.Context, id int) (bool, error) {
	return deleteOne(ctx, r.users, fieldUserID, id)
}

// AddToInventory adds device ids to a plant's inventory.
func (r *MongoRepository) AddToInventory(ctx context.Context, plantID int, deviceIDs []int) error {
	if len(deviceIDs) == 0 {
		return nil
	}
	_, err := r.plants.UpdateOne(ctx, byID(fieldPlantID, plantID), bson.D{
		{Key: "$addToSet", Value: bson.D{{Key: fieldDeviceInventory, Value: bson.D{{Key: "$each", Value: deviceIDs}}}}},
	})
	if err != nil {
		return fmt.Errorf("%w: adding to plant %d inventory: %w", ErrStorage, plantID, err)
	}
	return nil
}

// PullFromInventory removes device ids from a plant's inventory.
func (r *MongoRepository) PullFromInventory(ctx context.Context, plantID int, deviceIDs []int) error {
	if len(deviceIDs) == 0 {
		return nil
	}
	_, err := r.plants.UpdateOne(ctx, byID(fieldPlantID, plantID), bson.D{
		{Key: "$pull", Value: bson.D{{Key: fieldDeviceInventory, Value: bson.D{{Key: "$in", Value: deviceIDs}}}}},
	})
	if err != nil {
		return fmt.Errorf("%w: pulling from plant %d inventory: %w", ErrStorage, plantID, err)
	}
	return nil
}

// Broker returns the document of the general collection holding "broker".
func (r *MongoRepository) Broker(ctx context.Context) (Broker, error) {
	var doc struct {
		Broker Broker `bson:"broker"`
	}
	if err := findOne(ctx, r.general, hasField(settingBroker), &doc); err != nil {
		return Broker{}, err
	}
	return doc.Broker, nil
}

// MainTopic returns the document of the general collection holding "mainTopic".
func (r *MongoRepository) MainTopic(ctx context.Context) (string, error) {
	var doc struct {
		MainTopic string `bson:"mainTopic"`
	}
	if err := findOne(ctx, r.general, hasField(settingMainTopic), &doc); err != nil {
		return "", err
	}
	return doc.MainTopic, nil
}

// SeedSettings inserts the settings documents that are missing.
func (r *MongoRepository) SeedSettings(ctx context.Context, s Settings) error {
	for key, value := range map[string]any{
		settingBroker:    s.Broker,
		settingMainTopic: s.MainTopic,
	} {
		_, err := r.general.UpdateOne(ctx,
			hasField(key),
			bson.D{{Key: "$setOnInsert", Value: bson.D{{Key: key, Value: value}}}},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("%w: seeding setting %s: %w", ErrStorage, key, err)
		}
	}
	return nil
}

// Ping verifies the primary is reachable.
func (r *MongoRepository) Ping(ctx context.Context) error {
	if err := r.db.Client().Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

// byID builds a business id filter.
func byID(field string, id int) bson.D {
	return bson.D{{Key: field, Value: id}}
}

// statusPatchFilter matches the device only when it declares no
// statusOptions (absent or empty) or status is among them.
func statusPatchFilter(id int, status string) bson.D {
	return bson.D{
		{Key: fieldDeviceID, Value: id},
		{Key: "$or", Value: bson.A{
			bson.D{{Key: fieldStatusOptions, Value: bson.D{{Key: "$exists", Value: false}}}},
			bson.D{{Key: fieldStatusOptions, Value: bson.D{{Key: "$size", Value: 0}}}},
			bson.D{{Key: fieldStatusOptions, Value: status}},
		}},
	}
}

func replaceDeviceOptions() *options.FindOneAndReplaceOptions {
	return options.FindOneAndReplace().SetUpsert(true).SetReturnDocument(options.Before)
}

// hasField matches the settings document that carries key.
func hasField(key string) bson.D {
	return bson.D{{Key: key, Value: bson.D{{Key: "$exists", Value: true}}}}
}

func findOne(ctx context.Context, coll *mongo.Collection, filter bson.D, dst any) error {
	err := coll.FindOne(ctx, filter, options.FindOne().SetProjection(bson.D{{Key: "_id", Value: 0}})).Decode(dst)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: reading %s: %w", ErrStorage, coll.Name(), err)
	}
	return nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, sortField string) ([]T, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: sortField, Value: 1}}).
		SetProjection(bson.D{{Key: "_id", Value: 0}})

	cur, err := coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %w", ErrStorage, coll.Name(), err)
	}
	docs := []T{}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", ErrStorage, coll.Name(), err)
	}
	return docs, nil
}

func deleteOne(ctx context.Context, coll *mongo.Collection, field string, id int) (bool, error) {
	res, err := coll.DeleteOne(ctx, byID(field, id))
	if err != nil {
		return false, fmt.Errorf("%w: deleting %s %d: %w", ErrStorage, coll.Name(), id, err)
	}
	return res.DeletedCount > 0, nil
}
