package contracts

import "errors"

var (
	// ErrNotFound is returned when a record does not exist or every
	// required field is stale
	ErrNotFound = errors.New("record not found")

	// ErrRejected is returned when a candidate record fails hard validation
	ErrRejected = errors.New("record rejected by validation")

	// ErrAlreadyRunning is returned when a second background refresh is
	// requested while one is in flight
	ErrAlreadyRunning = errors.New("refresh already running")

	// ErrAllProvidersFailed is returned when every provider in the
	// selected strategy produced nothing
	ErrAllProvidersFailed = errors.New("all providers failed")

	// ErrRateLimited is returned when a provider answered with an explicit
	// rate-limit signal. The adaptive limiter backs off on it.
	ErrRateLimited = errors.New("provider rate limited")
)
