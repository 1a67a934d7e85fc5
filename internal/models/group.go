package models

import (
	"errors"
	"time"
)

var (
	ErrGroupFull     = errors.New("group is full")
	ErrAlreadyMember = errors.New("user is already a member")
)

// DefaultGroupCapacity is used when no capacity is configured.
const DefaultGroupCapacity = 5

// Group is a set of users that book rooms together.
type Group struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"created_at"`
}

// HasMember reports whether userCode belongs to the group.
func (g *Group) HasMember(userCode string) bool {
	if g == nil {
		return false
	}
	for _, m := range g.Members {
		if m == userCode {
			return true
		}
	}
	return false
}

// AddMember appends userCode unless the group already holds capacity members.
// A non-positive capacity falls back to DefaultGroupCapacity.
func (g *Group) AddMember(userCode string, capacity int) error {
	if capacity <= 0 {
		capacity = DefaultGroupCapacity
	}
	if g.HasMember(userCode) {
		return ErrAlreadyMember
	}
	if len(g.Members) >= capacity {
		return ErrGroupFull
	}
	g.Members = append(g.Members, userCode)
	return nil
}

// User is an account that can lead groups and make reservations.
type User struct {
	Code      string `json:"code"`
	TypeID    int    `json:"type_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// IsPrivileged reports whether the user type reaches the admin threshold.
func (u *User) IsPrivileged(threshold int) bool {
	return u != nil && u.TypeID >= threshold
}
