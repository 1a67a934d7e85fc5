package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"roombooking/internal/models"
	"roombooking/internal/repository"
)

const reservationColumns = `id, room_code, group_id, leader_code, purpose, start_at, end_at, created_at, updated_at`

// ReservationsForRoomOnDate returns the reservations of roomCode on the calendar day of date.
func (db *DB) ReservationsForRoomOnDate(ctx context.Context, roomCode string, date time.Time) ([]models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE room_code = ? AND day = ?
		ORDER BY start_at`
	return db.queryReservations(ctx, query, roomCode, db.dayKey(date))
}

// ReservationsOnDate returns the reservations of all rooms on the calendar day of date.
func (db *DB) ReservationsOnDate(ctx context.Context, date time.Time) ([]models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE day = ?
		ORDER BY room_code, start_at`
	return db.queryReservations(ctx, query, db.dayKey(date))
}

// ReservationsForGroupFrom returns the group's reservations starting at or after from.
func (db *DB) ReservationsForGroupFrom(ctx context.Context, groupID int64, from time.Time) ([]models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE group_id = ? AND start_at >= ?
		ORDER BY start_at`
	return db.queryReservations(ctx, query, groupID, from.Unix())
}

// ReservationsForRoomFrom returns the room's reservations starting at or after from.
func (db *DB) ReservationsForRoomFrom(ctx context.Context, roomCode string, from time.Time) ([]models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE room_code = ? AND start_at >= ?
		ORDER BY start_at`
	return db.queryReservations(ctx, query, roomCode, from.Unix())
}

// ReservationsBetween returns reservations starting in [from, to).
func (db *DB) ReservationsBetween(ctx context.Context, from, to time.Time) ([]models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE start_at >= ? AND start_at < ?
		ORDER BY start_at, room_code`
	return db.queryReservations(ctx, query, from.Unix(), to.Unix())
}

// GetReservation returns a reservation by id.
func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	r, err := db.scanReservation(db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translate(err)
	}
	return r, nil
}

// InsertReservation stores r. The overlap check runs in the same immediate
// transaction as the insert.
func (db *DB) InsertReservation(ctx context.Context, r *models.Reservation) (int64, error) {
	var id int64
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := db.checkOverlap(ctx, tx, r.RoomCode, r.Window, 0); err != nil {
			return err
		}

		now := time.Now()
		res, err := tx.ExecContext(ctx, `
			INSERT INTO reservations (room_code, group_id, leader_code, purpose, day, start_at, end_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.RoomCode, r.GroupID, r.LeaderCode, r.Purpose,
			db.dayKey(r.Window.Start), r.Window.Start.Unix(), r.Window.End.Unix(), now, now)
		if err != nil {
			return translate(err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return err
		}
		r.CreatedAt = now
		r.UpdatedAt = now
		return nil
	})
	if err != nil {
		return 0, err
	}

	db.logger.Debug().Int64("reservation_id", id).Str("room", r.RoomCode).Msg("Reservation inserted")
	return id, nil
}

// UpdateReservation moves reservation id to window and roomCode.
func (db *DB) UpdateReservation(ctx context.Context, id int64, window models.TimeWindow, roomCode string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := db.checkOverlap(ctx, tx, roomCode, window, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE reservations
			SET room_code = ?, day = ?, start_at = ?, end_at = ?, updated_at = ?
			WHERE id = ?`,
			roomCode, db.dayKey(window.Start), window.Start.Unix(), window.End.Unix(), time.Now(), id)
		if err != nil {
			return translate(err)
		}
		return expectAffected(res)
	})
}

// DeleteReservation removes reservation id.
func (db *DB) DeleteReservation(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return translate(err)
	}
	return expectAffected(res)
}

// checkOverlap fails with ErrOverlap if roomCode has a reservation other
// than excludeID overlapping window. For positive-length windows this is
// the same relation as models.TimeWindow.Overlaps.
func (db *DB) checkOverlap(ctx context.Context, tx *sql.Tx, roomCode string, window models.TimeWindow, excludeID int64) error {
	var clash int64
	err := tx.QueryRowContext(ctx, `
		SELECT id FROM reservations
		WHERE room_code = ? AND id != ? AND start_at < ? AND end_at > ?
		LIMIT 1`,
		roomCode, excludeID, window.End.Unix(), window.Start.Unix()).Scan(&clash)
	switch {
	case err == sql.ErrNoRows:
		return nil
	case err != nil:
		return fmt.Errorf("failed to check overlap: %w", err)
	}
	db.logger.Warn().
		Str("room", roomCode).
		Int64("existing_id", clash).
		Msg("Rejected overlapping reservation write")
	return fmt.Errorf("%w: room %s collides with reservation %d", repository.ErrOverlap, roomCode, clash)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (db *DB) scanReservation(row rowScanner) (*models.Reservation, error) {
	var (
		r          models.Reservation
		start, end int64
		created    sql.NullTime
		updated    sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.RoomCode, &r.GroupID, &r.LeaderCode, &r.Purpose, &start, &end, &created, &updated); err != nil {
		return nil, err
	}
	r.Window = models.TimeWindow{Start: db.fromUnix(start), End: db.fromUnix(end)}
	r.CreatedAt = created.Time
	r.UpdatedAt = updated.Time
	return &r, nil
}

func (db *DB) queryReservations(ctx context.Context, query string, args ...interface{}) ([]models.Reservation, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer rows.Close()

	list := make([]models.Reservation, 0)
	for rows.Next() {
		r, err := db.scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		list = append(list, *r)
	}
	return list, rows.Err()
}
