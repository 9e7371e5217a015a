package domain

import "errors"

var (
	// ErrMatchConflict is returned when an active match already exists for
	// the (local, external, source) pair. The caller must remove or
	// supersede the existing match first.
	ErrMatchConflict = errors.New("active match already exists for pair")

	// ErrMatchNotFound is returned when no active match exists for a pair.
	ErrMatchNotFound = errors.New("match not found")

	// ErrProductNotFound is returned when a catalog record cannot be found.
	ErrProductNotFound = errors.New("product not found")

	// ErrSourceNotFound is returned when an external source is unknown.
	ErrSourceNotFound = errors.New("source not found")

	// ErrInvalidRequest is returned when request parameters are invalid.
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrInvalidStatus is returned when a match status value is unknown.
	ErrInvalidStatus = errors.New("invalid match status")

	// ErrRateLimited is returned when rate limit is exceeded.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrCacheMiss is returned when data is not found in cache.
	ErrCacheMiss = errors.New("cache miss")
)
