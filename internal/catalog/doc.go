// Package catalog is the authoritative registry of plants, devices and users.
//
// Field agents register themselves with replace-or-insert semantics keyed by
// business id (plantId, deviceId, userId). A device registration also adds the
// device to its plant's inventory and refreshes the plant's timestamp, so an
// active device keeps its plant alive. A Sweeper evicts plants and devices whose
// lastUpdated is older than the staleness threshold.
//
// Two document stores implement Repository: SQLiteRepository (default, device
// writes are transactional) and MongoRepository (two single-document writes,
// drift repaired by Reconcile).
//
// Key concepts:
//   - Kind: plants, devices or users, used both as the REST segment and the event topic level
//   - Payload decoding: camelCase or snake_case keys, normalised by an explicit table
//   - Settings: broker address and main topic handed out to field agents
//
// Thread Safety:
//   - Registry and Sweeper are safe for concurrent use.
package catalog
