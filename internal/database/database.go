package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"roombooking/internal/repository"
)

// dayLayout is the format of the reservations.day column.
const dayLayout = "2006-01-02"

// DB is the sqlite implementation of the repository contracts.
type DB struct {
	*sql.DB
	path   string
	loc    *time.Location
	logger *zerolog.Logger
}

// NewDB opens the database at path and creates tables if they don't exist.
// Calendar days of reservations are computed in loc.
func NewDB(path string, loc *time.Location, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}

	// Immediate transactions take the write lock on BEGIN, so the overlap
	// check and the write of a reservation are serialized.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{DB: db, path: path, loc: loc, logger: logger}
	if err := instance.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Str("timezone", loc.String()).Msg("Database initialized")
	return instance, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			code TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			type_code TEXT NOT NULL,
			capacity_exam INTEGER NOT NULL DEFAULT 0,
			capacity_lecture INTEGER NOT NULL DEFAULT 0,
			campus_id TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT 1,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			code TEXT PRIMARY KEY,
			type_id INTEGER NOT NULL DEFAULT 1,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS study_groups (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS group_members (
			group_id INTEGER NOT NULL,
			user_code TEXT NOT NULL,
			joined_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (group_id, user_code),
			FOREIGN KEY (group_id) REFERENCES study_groups(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS reservations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_code TEXT NOT NULL,
			group_id INTEGER NOT NULL,
			leader_code TEXT NOT NULL,
			purpose TEXT NOT NULL,
			day TEXT NOT NULL,
			start_at INTEGER NOT NULL,
			end_at INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (room_code) REFERENCES rooms(code) ON DELETE CASCADE,
			CHECK (end_at > start_at)
		)`,
		`CREATE TABLE IF NOT EXISTS equipment (
			code TEXT PRIMARY KEY,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS room_equipment (
			room_code TEXT NOT NULL,
			equipment_code TEXT NOT NULL,
			PRIMARY KEY (room_code, equipment_code),
			FOREIGN KEY (room_code) REFERENCES rooms(code) ON DELETE CASCADE,
			FOREIGN KEY (equipment_code) REFERENCES equipment(code) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS last_reserved (
			user_code TEXT NOT NULL,
			room_code TEXT NOT NULL,
			reserved_at INTEGER NOT NULL,
			PRIMARY KEY (user_code, room_code),
			FOREIGN KEY (room_code) REFERENCES rooms(code) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_room_day ON reservations(room_code, day)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_day ON reservations(day)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_group_start ON reservations(group_id, start_at)`,
		`CREATE INDEX IF NOT EXISTS idx_group_members_user ON group_members(user_code)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query %s: %w", query, err)
		}
	}
	return nil
}

// dayKey renders the calendar day of t in the booking location.
func (db *DB) dayKey(t time.Time) string {
	return t.In(db.loc).Format(dayLayout)
}

func (db *DB) fromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).In(db.loc)
}

// withTx runs fn in a transaction and commits if it returns nil.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error().Err(rbErr).Msg("Failed to rollback transaction")
		}
		return err
	}
	return tx.Commit()
}

// translate maps driver errors onto repository sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %v", repository.ErrDuplicateEntry, err)
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %v", repository.ErrNotFound, err)
		}
	}
	return err
}

// expectAffected returns ErrNotFound when res touched no rows.
func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var (
	_ repository.ReservationRepository = (*DB)(nil)
	_ repository.RoomAdminRepository   = (*DB)(nil)
	_ repository.GroupRepository       = (*DB)(nil)
	_ repository.UserRepository        = (*DB)(nil)
	_ repository.HistoryRepository     = (*DB)(nil)
	_ repository.EquipmentRepository   = (*DB)(nil)
)
