package booking

import (
	"context"
	"errors"
	"fmt"

	"roombooking/internal/models"
	"roombooking/internal/repository"
)

// ConflictDetector answers whether a room is free for a window.
type ConflictDetector struct {
	reservations repository.ReservationRepository
	validator    *Validator
}

// NewConflictDetector creates a detector backed by the reservation repository.
func NewConflictDetector(reservations repository.ReservationRepository, validator *Validator) *ConflictDetector {
	return &ConflictDetector{reservations: reservations, validator: validator}
}

// IsBooked reports whether roomCode cannot take window. Invalid windows are
// always booked. The reservation with id excludeID is ignored so an edit
// does not collide with itself; pass 0 for new reservations.
func (d *ConflictDetector) IsBooked(ctx context.Context, roomCode string, window models.TimeWindow, excludeID int64) (bool, error) {
	if !d.validator.Validate(window) {
		return true, nil
	}
	existing, err := d.FindConflict(ctx, roomCode, window, excludeID)
	if err != nil {
		return true, err
	}
	return existing != nil, nil
}

// FindConflict returns the first reservation of roomCode overlapping window,
// or nil. It does not validate window.
func (d *ConflictDetector) FindConflict(ctx context.Context, roomCode string, window models.TimeWindow, excludeID int64) (*models.Reservation, error) {
	candidates, err := d.reservations.ReservationsForRoomOnDate(ctx, roomCode, window.Start)
	if err != nil {
		return nil, storageError("loading reservations for room", err)
	}
	for i := range candidates {
		if excludeID != 0 && candidates[i].ID == excludeID {
			continue
		}
		if window.Overlaps(candidates[i].Window) {
			return &candidates[i], nil
		}
	}
	return nil, nil
}

// storageError classifies a repository failure into the engine taxonomy.
func storageError(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, repository.ErrOverlap):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
