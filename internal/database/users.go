package database

import (
	"context"
	"time"

	"roombooking/internal/models"
)

// GetUser returns a user by code.
func (db *DB) GetUser(ctx context.Context, code string) (*models.User, error) {
	var u models.User
	err := db.QueryRowContext(ctx, `
		SELECT code, type_id, first_name, last_name, email FROM users WHERE code = ?`, code).
		Scan(&u.Code, &u.TypeID, &u.FirstName, &u.LastName, &u.Email)
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// UpsertUser creates or updates a user.
func (db *DB) UpsertUser(ctx context.Context, u *models.User) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (code, type_id, first_name, last_name, email) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			type_id = excluded.type_id,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			email = excluded.email`,
		u.Code, u.TypeID, u.FirstName, u.LastName, u.Email)
	return translate(err)
}

// SetLastReserved records that userCode reserved roomCode now.
func (db *DB) SetLastReserved(ctx context.Context, userCode, roomCode string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO last_reserved (user_code, room_code, reserved_at) VALUES (?, ?, ?)
		ON CONFLICT(user_code, room_code) DO UPDATE SET reserved_at = excluded.reserved_at`,
		userCode, roomCode, time.Now().UnixNano())
	return translate(err)
}

// LastReserved lists the rooms userCode reserved, most recent first.
func (db *DB) LastReserved(ctx context.Context, userCode string) ([]models.Room, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT r.code, r.name, r.type_code, r.capacity_exam, r.capacity_lecture, r.campus_id, r.active, r.updated_at
		FROM last_reserved l
		JOIN rooms r ON r.code = l.room_code
		WHERE l.user_code = ?
		ORDER BY l.reserved_at DESC`, userCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := make([]models.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, *room)
	}
	return rooms, rows.Err()
}
