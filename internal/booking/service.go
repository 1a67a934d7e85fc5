// Package booking holds the reservation engine: window validation, conflict
// detection, availability and the reservation lifecycle built on them.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"roombooking/internal/access"
	"roombooking/internal/events"
	"roombooking/internal/metrics"
	"roombooking/internal/models"
	"roombooking/internal/repository"
)

// EventPublisher receives reservation lifecycle events.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Authorizer decides room visibility and reservation authority.
type Authorizer interface {
	ScopeFor(user *models.User) models.VisibilityScope
	CanManageReservation(ctx context.Context, user *models.User, r *models.Reservation) error
}

// CreateRequest carries the fields of a new reservation.
type CreateRequest struct {
	Window     models.TimeWindow
	RoomCode   string
	GroupID    int64
	LeaderCode string
	Purpose    string
}

// Service runs the reservation lifecycle.
type Service struct {
	reservations repository.ReservationRepository
	rooms        repository.RoomRepository
	groups       repository.GroupRepository
	auth         Authorizer
	validator    *Validator
	detector     *ConflictDetector
	resolver     *AvailabilityResolver
	eventBus     EventPublisher
	logger       *zerolog.Logger
}

// NewService wires the engine around its repositories.
func NewService(
	reservations repository.ReservationRepository,
	rooms repository.RoomRepository,
	groups repository.GroupRepository,
	auth Authorizer,
	validator *Validator,
	logger *zerolog.Logger,
) *Service {
	l := logger.With().Str("component", "booking").Logger()
	return &Service{
		reservations: reservations,
		rooms:        rooms,
		groups:       groups,
		auth:         auth,
		validator:    validator,
		detector:     NewConflictDetector(reservations, validator),
		resolver:     NewAvailabilityResolver(rooms, reservations, validator),
		logger:       &l,
	}
}

// UseEvents makes the service publish lifecycle events to pub.
func (s *Service) UseEvents(pub EventPublisher) {
	s.eventBus = pub
}

// Validator exposes the window rules used by the service.
func (s *Service) Validator() *Validator {
	return s.validator
}

// Validate reports whether window is bookable now.
func (s *Service) Validate(window models.TimeWindow) bool {
	return s.validator.Validate(window)
}

// IsBooked reports whether roomCode is taken for window, ignoring excludeID.
func (s *Service) IsBooked(ctx context.Context, roomCode string, window models.TimeWindow, excludeID int64) (bool, error) {
	return s.detector.IsBooked(ctx, roomCode, window, excludeID)
}

// FindAvailable lists rooms free for window under scope.
func (s *Service) FindAvailable(ctx context.Context, window models.TimeWindow, scope models.VisibilityScope) ([]models.Room, error) {
	return s.resolver.FindAvailable(ctx, window, scope)
}

// Availability is the answer to an availability query. Rule is the window
// rule that failed, if any; Rooms is then empty.
type Availability struct {
	Rule  string
	Rooms []models.Room
}

// Valid reports whether the window passed validation.
func (a *Availability) Valid() bool {
	return a.Rule == ruleNone
}

// AvailableFor lists the rooms actor may book for window, optionally on one
// campus. The rule and the room list come from the same clock reading.
func (s *Service) AvailableFor(ctx context.Context, actor *models.User, window models.TimeWindow, campusID string) (*Availability, error) {
	scope := s.auth.ScopeFor(actor)
	scope.CampusID = campusID

	now := s.validator.Now()
	rooms, err := s.resolver.FindAvailableAt(ctx, window, scope, now)
	if err != nil {
		return nil, err
	}
	return &Availability{Rule: s.validator.Explain(window, now), Rooms: rooms}, nil
}

// Create validates req and stores a new reservation.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Reservation, error) {
	res, err := s.create(ctx, req, nil)
	s.record("create", err)
	return res, err
}

// CreateFor creates a reservation led by actor, restricted to rooms in the
// actor's visibility scope.
func (s *Service) CreateFor(ctx context.Context, actor *models.User, req CreateRequest) (*models.Reservation, error) {
	if actor == nil {
		return nil, fmt.Errorf("%w: not logged in", ErrForbidden)
	}
	req.LeaderCode = actor.Code
	scope := s.auth.ScopeFor(actor)
	res, err := s.create(ctx, req, &scope)
	s.record("create", err)
	return res, err
}

func (s *Service) create(ctx context.Context, req CreateRequest, scope *models.VisibilityScope) (*models.Reservation, error) {
	purpose := strings.TrimSpace(req.Purpose)
	if purpose == "" {
		return nil, fmt.Errorf("%w: purpose is required", ErrInvalidRequest)
	}
	if req.LeaderCode == "" {
		return nil, fmt.Errorf("%w: leader is required", ErrInvalidRequest)
	}
	if err := s.checkWindow(req.Window); err != nil {
		return nil, err
	}

	room, err := s.bookableRoom(ctx, req.RoomCode, scope)
	if err != nil {
		return nil, err
	}

	group, err := s.groups.GetGroup(ctx, req.GroupID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown group %d", ErrInvalidRequest, req.GroupID)
	}
	if err != nil {
		return nil, storageError("loading group", err)
	}
	if !group.HasMember(req.LeaderCode) {
		return nil, fmt.Errorf("%w: %s is not a member of group %d", ErrForbidden, req.LeaderCode, group.ID)
	}

	booked, err := s.detector.IsBooked(ctx, room.Code, req.Window, 0)
	if err != nil {
		return nil, err
	}
	if booked {
		metrics.IncConflict("create")
		return nil, fmt.Errorf("room %s: %w", room.Code, ErrConflict)
	}

	r := &models.Reservation{
		Window:     req.Window,
		RoomCode:   room.Code,
		GroupID:    group.ID,
		LeaderCode: req.LeaderCode,
		Purpose:    purpose,
	}
	id, err := s.reservations.InsertReservation(ctx, r)
	if err != nil {
		if errors.Is(err, repository.ErrOverlap) {
			metrics.IncConflict("create")
		}
		return nil, storageError("inserting reservation", err)
	}
	r.ID = id

	s.logger.Info().
		Int64("reservation_id", r.ID).
		Str("room", r.RoomCode).
		Int64("group_id", r.GroupID).
		Time("start", r.Window.Start).
		Time("end", r.Window.End).
		Msg("reservation created")
	s.publish(events.ReservationCreated, r)
	return r, nil
}

// Edit moves reservation id to window and roomCode. An empty roomCode keeps
// the current room. Only members of the owning group or administrators may
// edit.
func (s *Service) Edit(ctx context.Context, actor *models.User, id int64, window models.TimeWindow, roomCode string) (*models.Reservation, error) {
	res, err := s.edit(ctx, actor, id, window, roomCode)
	s.record("edit", err)
	return res, err
}

func (s *Service) edit(ctx context.Context, actor *models.User, id int64, window models.TimeWindow, roomCode string) (*models.Reservation, error) {
	r, err := s.authorized(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if roomCode == "" {
		roomCode = r.RoomCode
	}
	if err := s.checkWindow(window); err != nil {
		return nil, err
	}

	scope := s.auth.ScopeFor(actor)
	room, err := s.bookableRoom(ctx, roomCode, &scope)
	if err != nil {
		return nil, err
	}

	booked, err := s.detector.IsBooked(ctx, room.Code, window, r.ID)
	if err != nil {
		return nil, err
	}
	if booked {
		metrics.IncConflict("edit")
		return nil, fmt.Errorf("room %s: %w", room.Code, ErrConflict)
	}

	if err := s.reservations.UpdateReservation(ctx, r.ID, window, room.Code); err != nil {
		if errors.Is(err, repository.ErrOverlap) {
			metrics.IncConflict("edit")
		}
		return nil, storageError("updating reservation", err)
	}

	r.Window = window
	r.RoomCode = room.Code
	s.logger.Info().
		Int64("reservation_id", r.ID).
		Str("room", r.RoomCode).
		Str("actor", actor.Code).
		Msg("reservation updated")
	s.publish(events.ReservationUpdated, r)
	return r, nil
}

// Delete removes reservation id under the same authority rule as Edit.
func (s *Service) Delete(ctx context.Context, actor *models.User, id int64) error {
	err := s.delete(ctx, actor, id)
	s.record("delete", err)
	return err
}

func (s *Service) delete(ctx context.Context, actor *models.User, id int64) error {
	r, err := s.authorized(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.reservations.DeleteReservation(ctx, r.ID); err != nil {
		return storageError("deleting reservation", err)
	}
	s.logger.Info().Int64("reservation_id", r.ID).Str("actor", actor.Code).Msg("reservation deleted")
	s.publish(events.ReservationDeleted, r)
	return nil
}

// UpcomingForGroup lists the group's reservations from today on.
func (s *Service) UpcomingForGroup(ctx context.Context, groupID int64) ([]models.Reservation, error) {
	from := models.StartOfDay(s.validator.Now().In(s.validator.Rules().Location))
	list, err := s.reservations.ReservationsForGroupFrom(ctx, groupID, from)
	if err != nil {
		return nil, storageError("loading group reservations", err)
	}
	return list, nil
}

// UpcomingForRoom lists the room's reservations from today on.
func (s *Service) UpcomingForRoom(ctx context.Context, roomCode string) ([]models.Reservation, error) {
	from := models.StartOfDay(s.validator.Now().In(s.validator.Rules().Location))
	list, err := s.reservations.ReservationsForRoomFrom(ctx, roomCode, from)
	if err != nil {
		return nil, storageError("loading room reservations", err)
	}
	return list, nil
}

func (s *Service) checkWindow(window models.TimeWindow) error {
	if rule := s.validator.Explain(window, s.validator.Now()); rule != ruleNone {
		metrics.IncWindowRejected(rule)
		return fmt.Errorf("%w: %s", ErrInvalidWindow, rule)
	}
	return nil
}

// bookableRoom loads an active room, optionally checking it against scope.
func (s *Service) bookableRoom(ctx context.Context, code string, scope *models.VisibilityScope) (*models.Room, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: room is required", ErrInvalidRequest)
	}
	room, err := s.rooms.GetRoom(ctx, code)
	if err != nil {
		return nil, storageError("loading room "+code, err)
	}
	if !room.Active {
		return nil, fmt.Errorf("%w: room %s is not active", ErrInvalidRequest, code)
	}
	if scope != nil && !scope.Allows(*room) {
		return nil, fmt.Errorf("%w: room %s is outside the caller's scope", ErrForbidden, code)
	}
	return room, nil
}

// authorized loads reservation id and checks that actor may change it.
func (s *Service) authorized(ctx context.Context, actor *models.User, id int64) (*models.Reservation, error) {
	if actor == nil {
		return nil, fmt.Errorf("%w: not logged in", ErrForbidden)
	}
	r, err := s.reservations.GetReservation(ctx, id)
	if err != nil {
		return nil, storageError(fmt.Sprintf("loading reservation %d", id), err)
	}
	if err := s.auth.CanManageReservation(ctx, actor, r); err != nil {
		if access.IsAccessDenied(err) {
			return nil, fmt.Errorf("%w: %w", ErrForbidden, err)
		}
		return nil, storageError("checking authority", err)
	}
	return r, nil
}

func (s *Service) publish(eventType string, r *models.Reservation) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, r); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Int64("reservation_id", r.ID).Msg("failed to publish event")
	}
}

func (s *Service) record(operation string, err error) {
	result := "ok"
	if err != nil {
		result = ErrorKind(err)
		s.logger.Debug().Err(err).Str("operation", operation).Str("kind", result).Msg("reservation request refused")
	}
	metrics.IncReservation(operation, result)
}
