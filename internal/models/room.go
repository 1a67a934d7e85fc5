package models

import (
	"fmt"
	"time"
)

// Room is a bookable university room, identified by its code.
type Room struct {
	Code            string    `json:"code" yaml:"code"`
	Name            string    `json:"name" yaml:"name"`
	TypeCode        string    `json:"type_code" yaml:"type_code"`
	CapacityExam    int       `json:"capacity_exam" yaml:"capacity_exam"`
	CapacityLecture int       `json:"capacity_lecture" yaml:"capacity_lecture"`
	CampusID        string    `json:"campus_id" yaml:"campus_id"`
	Active          bool      `json:"active" yaml:"active"`
	UpdatedAt       time.Time `json:"updated_at" yaml:"-"`
}

// Equipment is a piece of inventory that can be attached to rooms.
type Equipment struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// VisibilityScope is the subset of rooms a caller may see and book.
type VisibilityScope struct {
	// All disables the room type restriction.
	All bool `json:"all"`
	// RoomType restricts non-privileged callers to one room category.
	RoomType string `json:"room_type,omitempty"`
	// CampusID optionally narrows the result to one campus.
	CampusID string `json:"campus_id,omitempty"`
}

// Allows reports whether room is visible under the scope.
func (s VisibilityScope) Allows(room Room) bool {
	if !room.Active {
		return false
	}
	if !s.All && room.TypeCode != s.RoomType {
		return false
	}
	if s.CampusID != "" && room.CampusID != s.CampusID {
		return false
	}
	return true
}

// Key renders the scope as a stable cache key fragment.
func (s VisibilityScope) Key() string {
	if s.All {
		return fmt.Sprintf("all:%s", s.CampusID)
	}
	return fmt.Sprintf("type=%s:%s", s.RoomType, s.CampusID)
}
