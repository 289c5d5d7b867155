// Package sentinel holds infrastructure facts shared across packages.
//
// Provider clients and stores wrap these so callers can test the fact with
// errors.Is without knowing which backend produced it.
package sentinel

import "errors"

var (
	// ErrNotFound: the dependency has no data for the request.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable: the dependency cannot be reached or has been cut off.
	ErrUnavailable = errors.New("unavailable")
)
