package models

import "time"

// Reservation is a room booked by a group for a time window.
type Reservation struct {
	ID         int64      `json:"id"`
	Window     TimeWindow `json:"window"`
	RoomCode   string     `json:"room_code"`
	GroupID    int64      `json:"group_id"`
	LeaderCode string     `json:"leader_code"`
	Purpose    string     `json:"purpose"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// IsPersisted reports whether the repository has assigned an id.
func (r *Reservation) IsPersisted() bool {
	return r != nil && r.ID > 0
}

// CollidesWith reports whether r and other would double-book the same room.
// A reservation never collides with itself.
func (r *Reservation) CollidesWith(other *Reservation) bool {
	if r == nil || other == nil {
		return false
	}
	if r.RoomCode != other.RoomCode {
		return false
	}
	if r.IsPersisted() && r.ID == other.ID {
		return false
	}
	return r.Window.Overlaps(other.Window)
}

// IsUpcoming reports whether the reservation starts on or after the day of now.
func (r *Reservation) IsUpcoming(now time.Time) bool {
	return !r.Window.Start.Before(StartOfDay(now))
}
