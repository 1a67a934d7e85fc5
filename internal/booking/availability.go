package booking

import (
	"context"
	"sort"
	"time"

	"roombooking/internal/metrics"
	"roombooking/internal/models"
	"roombooking/internal/repository"
)

// AvailabilityResolver lists the rooms that are free for a window.
type AvailabilityResolver struct {
	rooms        repository.RoomRepository
	reservations repository.ReservationRepository
	validator    *Validator
}

// NewAvailabilityResolver creates a resolver.
func NewAvailabilityResolver(
	rooms repository.RoomRepository,
	reservations repository.ReservationRepository,
	validator *Validator,
) *AvailabilityResolver {
	return &AvailabilityResolver{rooms: rooms, reservations: reservations, validator: validator}
}

// FindAvailable returns the rooms visible under scope that have no
// reservation overlapping window, sorted by code. An invalid window yields
// an empty result and no error.
func (a *AvailabilityResolver) FindAvailable(ctx context.Context, window models.TimeWindow, scope models.VisibilityScope) ([]models.Room, error) {
	return a.FindAvailableAt(ctx, window, scope, a.validator.Now())
}

// FindAvailableAt is FindAvailable with the window judged against now.
func (a *AvailabilityResolver) FindAvailableAt(ctx context.Context, window models.TimeWindow, scope models.VisibilityScope, now time.Time) ([]models.Room, error) {
	if rule := a.validator.Explain(window, now); rule != ruleNone {
		metrics.IncWindowRejected(rule)
		return []models.Room{}, nil
	}

	started := time.Now()
	defer func() { metrics.ObserveAvailability(time.Since(started)) }()

	rooms, err := a.rooms.Rooms(ctx, scope)
	if err != nil {
		return nil, storageError("loading rooms", err)
	}
	// One query for the whole day rather than one per room.
	booked, err := a.reservations.ReservationsOnDate(ctx, window.Start)
	if err != nil {
		return nil, storageError("loading reservations for date", err)
	}

	taken := make(map[string]struct{})
	for i := range booked {
		if window.Overlaps(booked[i].Window) {
			taken[booked[i].RoomCode] = struct{}{}
		}
	}

	free := make([]models.Room, 0, len(rooms))
	for _, room := range rooms {
		if !scope.Allows(room) {
			continue
		}
		if _, ok := taken[room.Code]; ok {
			continue
		}
		free = append(free, room)
	}
	sort.Slice(free, func(i, j int) bool { return free[i].Code < free[j].Code })
	return free, nil
}
