package repository

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry is returned when an insert violates a unique key.
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
	// ErrOverlap is returned when a write would leave two overlapping
	// reservations for the same room.
	ErrOverlap = errors.New("repository: overlapping reservation")
)
