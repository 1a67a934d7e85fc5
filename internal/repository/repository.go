// Package repository declares the storage contracts consumed by the
// reservation engine. internal/database provides the sqlite implementation.
package repository

import (
	"context"
	"time"

	"roombooking/internal/models"
)

// ReservationRepository persists and retrieves reservations.
type ReservationRepository interface {
	// ReservationsForRoomOnDate returns reservations of roomCode starting on the calendar day of date.
	ReservationsForRoomOnDate(ctx context.Context, roomCode string, date time.Time) ([]models.Reservation, error)
	// ReservationsOnDate returns reservations of all rooms starting on the calendar day of date.
	ReservationsOnDate(ctx context.Context, date time.Time) ([]models.Reservation, error)
	// GetReservation returns ErrNotFound for unknown ids.
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	// InsertReservation stores r and returns the assigned id.
	// Implementations return ErrOverlap if the room is taken at write time.
	InsertReservation(ctx context.Context, r *models.Reservation) (int64, error)
	// UpdateReservation moves reservation id to a new window and room.
	UpdateReservation(ctx context.Context, id int64, window models.TimeWindow, roomCode string) error
	DeleteReservation(ctx context.Context, id int64) error

	ReservationsForGroupFrom(ctx context.Context, groupID int64, from time.Time) ([]models.Reservation, error)
	ReservationsForRoomFrom(ctx context.Context, roomCode string, from time.Time) ([]models.Reservation, error)
	ReservationsBetween(ctx context.Context, from, to time.Time) ([]models.Reservation, error)
}

// RoomRepository reads the room inventory.
type RoomRepository interface {
	// Rooms returns the active rooms visible under scope.
	Rooms(ctx context.Context, scope models.VisibilityScope) ([]models.Room, error)
	GetRoom(ctx context.Context, code string) (*models.Room, error)
}

// RoomAdminRepository mutates the room inventory.
type RoomAdminRepository interface {
	RoomRepository
	CreateRoom(ctx context.Context, room *models.Room) error
	UpdateRoom(ctx context.Context, room *models.Room) error
	// DeleteRoom removes the room together with its reservations,
	// equipment links and last-reserved entries.
	DeleteRoom(ctx context.Context, code string) error
	UpsertRooms(ctx context.Context, rooms []models.Room) error
}

// GroupRepository reads and writes groups.
type GroupRepository interface {
	GetGroup(ctx context.Context, id int64) (*models.Group, error)
	GroupsForUser(ctx context.Context, userCode string) ([]models.Group, error)
	CreateGroup(ctx context.Context, name, founderCode string) (*models.Group, error)
	AddGroupMember(ctx context.Context, groupID int64, userCode string) error
}

// UserRepository reads users.
type UserRepository interface {
	GetUser(ctx context.Context, code string) (*models.User, error)
}

// HistoryRepository tracks the rooms each user has reserved.
type HistoryRepository interface {
	SetLastReserved(ctx context.Context, userCode, roomCode string) error
	LastReserved(ctx context.Context, userCode string) ([]models.Room, error)
}

// EquipmentRepository manages equipment and its attachment to rooms.
type EquipmentRepository interface {
	UpsertEquipment(ctx context.Context, items []models.Equipment) error
	SetRoomEquipment(ctx context.Context, roomCode string, equipmentCodes []string) error
	RoomEquipment(ctx context.Context, roomCode string) ([]models.Equipment, error)
}
