package model

import "errors"

var (
	// ErrNameRequired is returned when a bridge creation request is missing the name.
	ErrNameRequired = errors.New("name is required")

	// ErrBridgeNotFound is returned when a bridge is not found.
	ErrBridgeNotFound = errors.New("bridge not found")

	// ErrUnauthorized is returned when a user is not authorized.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when access to a resource is forbidden.
	ErrForbidden = errors.New("forbidden")

	// ErrConcurrencyLimit is returned when the maximum number of concurrent bridges is reached.
	ErrConcurrencyLimit = errors.New("concurrent bridge limit exceeded")
)
