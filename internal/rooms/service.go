// Package rooms administers the room inventory and keeps it in sync with
// the rooms.yaml seed file.
package rooms

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"roombooking/internal/config"
	"roombooking/internal/models"
	"roombooking/internal/repository"
)

// ErrInvalidRoom is returned for rooms missing required attributes.
var ErrInvalidRoom = errors.New("rooms: invalid room")

// Authorizer is the part of the access service the inventory needs.
type Authorizer interface {
	RequireAdmin(user *models.User) error
	ScopeFor(user *models.User) models.VisibilityScope
}

// Service manages rooms and their equipment.
type Service struct {
	rooms     repository.RoomAdminRepository
	equipment repository.EquipmentRepository
	auth      Authorizer
	logger    *zerolog.Logger
}

func NewService(rooms repository.RoomAdminRepository, equipment repository.EquipmentRepository, auth Authorizer, logger *zerolog.Logger) *Service {
	l := logger.With().Str("component", "rooms").Logger()
	return &Service{rooms: rooms, equipment: equipment, auth: auth, logger: &l}
}

// List returns the rooms visible to actor, optionally on one campus.
func (s *Service) List(ctx context.Context, actor *models.User, campusID string) ([]models.Room, error) {
	scope := s.auth.ScopeFor(actor)
	scope.CampusID = campusID
	return s.rooms.Rooms(ctx, scope)
}

// Equipment lists the equipment of a room.
func (s *Service) Equipment(ctx context.Context, code string) ([]models.Equipment, error) {
	return s.equipment.RoomEquipment(ctx, code)
}

// Create adds a room. Administrators only.
func (s *Service) Create(ctx context.Context, actor *models.User, room *models.Room) error {
	if err := s.auth.RequireAdmin(actor); err != nil {
		return err
	}
	if err := validate(room); err != nil {
		return err
	}
	if err := s.rooms.CreateRoom(ctx, room); err != nil {
		return fmt.Errorf("create room %s: %w", room.Code, err)
	}
	s.logger.Info().Str("room", room.Code).Str("actor", actor.Code).Msg("Room created")
	return nil
}

// Update overwrites a room. Administrators only.
func (s *Service) Update(ctx context.Context, actor *models.User, room *models.Room) error {
	if err := s.auth.RequireAdmin(actor); err != nil {
		return err
	}
	if err := validate(room); err != nil {
		return err
	}
	if err := s.rooms.UpdateRoom(ctx, room); err != nil {
		return fmt.Errorf("update room %s: %w", room.Code, err)
	}
	s.logger.Info().Str("room", room.Code).Str("actor", actor.Code).Msg("Room updated")
	return nil
}

// Delete removes a room and everything that references it. Administrators only.
func (s *Service) Delete(ctx context.Context, actor *models.User, code string) error {
	if err := s.auth.RequireAdmin(actor); err != nil {
		return err
	}
	if err := s.rooms.DeleteRoom(ctx, code); err != nil {
		return fmt.Errorf("delete room %s: %w", code, err)
	}
	s.logger.Warn().Str("room", code).Str("actor", actor.Code).Msg("Room deleted with its reservations")
	return nil
}

// Sync upserts the seed inventory and its equipment links. Rooms that exist
// only in the database are left untouched.
func (s *Service) Sync(ctx context.Context, cfg *config.RoomsConfig) error {
	items := make([]models.Equipment, 0, len(cfg.Equipment))
	for code, name := range cfg.Equipment {
		items = append(items, models.Equipment{Code: code, Name: name})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Code < items[j].Code })

	if err := s.equipment.UpsertEquipment(ctx, items); err != nil {
		return fmt.Errorf("sync equipment: %w", err)
	}
	if err := s.rooms.UpsertRooms(ctx, cfg.ToModels()); err != nil {
		return fmt.Errorf("sync rooms: %w", err)
	}
	for _, r := range cfg.Rooms {
		if err := s.equipment.SetRoomEquipment(ctx, r.Code, r.Equipment); err != nil {
			return fmt.Errorf("sync equipment of room %s: %w", r.Code, err)
		}
	}

	s.logger.Info().Str("inventory", cfg.String()).Msg("Room inventory synced")
	return nil
}

func validate(room *models.Room) error {
	if room == nil {
		return fmt.Errorf("%w: missing room", ErrInvalidRoom)
	}
	room.Code = strings.TrimSpace(room.Code)
	switch {
	case room.Code == "":
		return fmt.Errorf("%w: code is required", ErrInvalidRoom)
	case room.TypeCode == "":
		return fmt.Errorf("%w: type_code is required", ErrInvalidRoom)
	case room.CapacityExam < 0 || room.CapacityLecture < 0:
		return fmt.Errorf("%w: capacity cannot be negative", ErrInvalidRoom)
	}
	return nil
}
