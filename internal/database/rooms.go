package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"roombooking/internal/models"
)

const roomColumns = `code, name, type_code, capacity_exam, capacity_lecture, campus_id, active, updated_at`

// Rooms returns the active rooms visible under scope, ordered by code.
func (db *DB) Rooms(ctx context.Context, scope models.VisibilityScope) ([]models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms
		WHERE active = 1
		AND (? OR type_code = ?)
		AND (? = '' OR campus_id = ?)
		ORDER BY code`
	rows, err := db.QueryContext(ctx, query, scope.All, scope.RoomType, scope.CampusID, scope.CampusID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]models.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, *room)
	}
	return rooms, rows.Err()
}

// GetRoom returns a room by code, active or not.
func (db *DB) GetRoom(ctx context.Context, code string) (*models.Room, error) {
	room, err := scanRoom(db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE code = ?`, code))
	if err != nil {
		return nil, translate(err)
	}
	return room, nil
}

// CreateRoom inserts a new room.
func (db *DB) CreateRoom(ctx context.Context, room *models.Room) error {
	room.UpdatedAt = time.Now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO rooms (code, name, type_code, capacity_exam, capacity_lecture, campus_id, active, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		room.Code, room.Name, room.TypeCode, room.CapacityExam, room.CapacityLecture, room.CampusID, room.Active, room.UpdatedAt)
	return translate(err)
}

// UpdateRoom overwrites every attribute of an existing room.
func (db *DB) UpdateRoom(ctx context.Context, room *models.Room) error {
	room.UpdatedAt = time.Now()
	res, err := db.ExecContext(ctx, `
		UPDATE rooms
		SET name = ?, type_code = ?, capacity_exam = ?, capacity_lecture = ?, campus_id = ?, active = ?, updated_at = ?
		WHERE code = ?`,
		room.Name, room.TypeCode, room.CapacityExam, room.CapacityLecture, room.CampusID, room.Active, room.UpdatedAt, room.Code)
	if err != nil {
		return translate(err)
	}
	return expectAffected(res)
}

// DeleteRoom removes a room with its reservations, equipment links and
// last-reserved entries.
func (db *DB) DeleteRoom(ctx context.Context, code string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for _, query := range []string{
			`DELETE FROM reservations WHERE room_code = ?`,
			`DELETE FROM room_equipment WHERE room_code = ?`,
			`DELETE FROM last_reserved WHERE room_code = ?`,
		} {
			if _, err := tx.ExecContext(ctx, query, code); err != nil {
				return fmt.Errorf("failed to delete room dependents: %w", err)
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE code = ?`, code)
		if err != nil {
			return translate(err)
		}
		return expectAffected(res)
	})
}

// UpsertRooms inserts or updates rooms in one transaction.
func (db *DB) UpsertRooms(ctx context.Context, rooms []models.Room) error {
	now := time.Now()
	return db.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO rooms (code, name, type_code, capacity_exam, capacity_lecture, campus_id, active, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(code) DO UPDATE SET
				name = excluded.name,
				type_code = excluded.type_code,
				capacity_exam = excluded.capacity_exam,
				capacity_lecture = excluded.capacity_lecture,
				campus_id = excluded.campus_id,
				active = excluded.active,
				updated_at = excluded.updated_at`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range rooms {
			if _, err := stmt.ExecContext(ctx, r.Code, r.Name, r.TypeCode, r.CapacityExam, r.CapacityLecture, r.CampusID, r.Active, now); err != nil {
				return fmt.Errorf("failed to upsert room %s: %w", r.Code, translate(err))
			}
		}
		return nil
	})
}

// UpsertEquipment inserts or renames equipment items.
func (db *DB) UpsertEquipment(ctx context.Context, items []models.Equipment) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for _, e := range items {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO equipment (code, name) VALUES (?, ?)
				ON CONFLICT(code) DO UPDATE SET name = excluded.name`, e.Code, e.Name); err != nil {
				return fmt.Errorf("failed to upsert equipment %s: %w", e.Code, err)
			}
		}
		return nil
	})
}

// SetRoomEquipment replaces the equipment attached to roomCode.
func (db *DB) SetRoomEquipment(ctx context.Context, roomCode string, equipmentCodes []string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM room_equipment WHERE room_code = ?`, roomCode); err != nil {
			return err
		}
		for _, code := range equipmentCodes {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO room_equipment (room_code, equipment_code) VALUES (?, ?)`, roomCode, code); err != nil {
				return fmt.Errorf("failed to link equipment %s: %w", code, translate(err))
			}
		}
		return nil
	})
}

// RoomEquipment lists the equipment attached to roomCode.
func (db *DB) RoomEquipment(ctx context.Context, roomCode string) ([]models.Equipment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT e.code, e.name FROM equipment e
		JOIN room_equipment re ON re.equipment_code = e.code
		WHERE re.room_code = ?
		ORDER BY e.code`, roomCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]models.Equipment, 0)
	for rows.Next() {
		var e models.Equipment
		if err := rows.Scan(&e.Code, &e.Name); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func scanRoom(row rowScanner) (*models.Room, error) {
	var (
		room    models.Room
		updated sql.NullTime
	)
	if err := row.Scan(&room.Code, &room.Name, &room.TypeCode, &room.CapacityExam, &room.CapacityLecture,
		&room.CampusID, &room.Active, &updated); err != nil {
		return nil, err
	}
	room.UpdatedAt = updated.Time
	return &room, nil
}
