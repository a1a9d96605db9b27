package catalog

import "errors"

// Domain errors for the catalog package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, catalog.ErrNotFound) {
//	    // answer 404
//	}
var (
	// ErrNotFound is returned when a business id does not exist.
	ErrNotFound = errors.New("catalog: not found")

	// ErrInvalidRecord is returned when a payload is missing fields or has ill-typed values.
	ErrInvalidRecord = errors.New("catalog: invalid record")

	// ErrInvalidDate is returned when plantDate is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("catalog: invalid date")

	// ErrInvalidStatus is returned when deviceStatus is not one of statusOptions.
	ErrInvalidStatus = errors.New("catalog: invalid status")

	// ErrUnknownPlant is returned when a device references a plant that does not exist.
	ErrUnknownPlant = errors.New("catalog: unknown plant")

	// ErrStorage wraps failures of the underlying document store.
	ErrStorage = errors.New("catalog: storage failure")

	// ErrSweepInProgress is returned when a sweep is triggered while one is running.
	ErrSweepInProgress = errors.New("catalog: sweep already in progress")
)

// IsValidationError reports whether err is a client-side validation failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRecord) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrUnknownPlant)
}
