// Package sentinel holds infrastructure facts that stores report and services
// translate. Input validation failures belong in pkg/domain-errors instead.
package sentinel

import "errors"

var (
	// ErrNotFound means the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable means the backing store could not be reached.
	ErrUnavailable = errors.New("unavailable")
)
