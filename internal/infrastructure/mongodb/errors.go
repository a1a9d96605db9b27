package mongodb

import "errors"

// Sentinel errors for MongoDB operations.
var (
	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("mongodb: connection failed")

	// ErrNotConnected indicates the client has been closed.
	ErrNotConnected = errors.New("mongodb: not connected")

	// ErrInvalidConfig indicates the database section cannot be used for MongoDB.
	ErrInvalidConfig = errors.New("mongodb: invalid configuration")
)
