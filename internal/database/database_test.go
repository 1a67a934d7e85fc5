package database

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roombooking/internal/config"
	"roombooking/internal/models"
	"roombooking/internal/repository"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), time.UTC, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seed(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.UpsertRooms(ctx, []models.Room{
		{Code: "101", Name: "Seminar 101", TypeCode: "KOL", CampusID: "north", Active: true},
		{Code: "102", Name: "Seminar 102", TypeCode: "KOL", CampusID: "south", Active: true},
		{Code: "A200", Name: "Auditorium", TypeCode: "AUD", CampusID: "north", Active: true},
		{Code: "X900", Name: "Closed", TypeCode: "KOL", Active: false},
	}))
}

func window(day, h1, m1, h2, m2 int) models.TimeWindow {
	return models.TimeWindow{
		Start: time.Date(2024, 1, day, h1, m1, 0, 0, time.UTC),
		End:   time.Date(2024, 1, day, h2, m2, 0, 0, time.UTC),
	}
}

func reservation(room string, w models.TimeWindow) *models.Reservation {
	return &models.Reservation{RoomCode: room, GroupID: 1, LeaderCode: "alice", Purpose: "study", Window: w}
}

func TestRooms(t *testing.T) {
	db := newTestDB(t)
	seed(t, db)
	ctx := context.Background()

	codes := func(rooms []models.Room) []string {
		out := make([]string, 0, len(rooms))
		for _, r := range rooms {
			out = append(out, r.Code)
		}
		return out
	}

	all, err := db.Rooms(ctx, models.VisibilityScope{All: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"101", "102", "A200"}, codes(all))

	restricted, err := db.Rooms(ctx, models.VisibilityScope{RoomType: "KOL"})
	require.NoError(t, err)
	assert.Equal(t, []string{"101", "102"}, codes(restricted))

	north, err := db.Rooms(ctx, models.VisibilityScope{All: true, CampusID: "north"})
	require.NoError(t, err)
	assert.Equal(t, []string{"101", "A200"}, codes(north))

	closed, err := db.GetRoom(ctx, "X900")
	require.NoError(t, err)
	assert.False(t, closed.Active)

	_, err = db.GetRoom(ctx, "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRoomAdmin(t *testing.T) {
	db := newTestDB(t)
	seed(t, db)
	ctx := context.Background()

	room := &models.Room{Code: "B1", Name: "Lab", TypeCode: "LAB", Active: true}
	require.NoError(t, db.CreateRoom(ctx, room))
	assert.ErrorIs(t, db.CreateRoom(ctx, room), repository.ErrDuplicateEntry)

	room.Name = "Physics lab"
	require.NoError(t, db.UpdateRoom(ctx, room))
	got, err := db.GetRoom(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, "Physics lab", got.Name)

	assert.ErrorIs(t, db.UpdateRoom(ctx, &models.Room{Code: "ghost"}), repository.ErrNotFound)

	t.Run("DeleteCascades", func(t *testing.T) {
		require.NoError(t, db.UpsertEquipment(ctx, []models.Equipment{{Code: "PROJ", Name: "Projector"}}))
		require.NoError(t, db.SetRoomEquipment(ctx, "101", []string{"PROJ"}))
		_, err := db.InsertReservation(ctx, reservation("101", window(1, 9, 0, 9, 30)))
		require.NoError(t, err)
		require.NoError(t, db.SetLastReserved(ctx, "alice", "101"))

		require.NoError(t, db.DeleteRoom(ctx, "101"))

		list, err := db.ReservationsForRoomOnDate(ctx, "101", window(1, 0, 0, 0, 0).Start)
		require.NoError(t, err)
		assert.Empty(t, list)
		eq, err := db.RoomEquipment(ctx, "101")
		require.NoError(t, err)
		assert.Empty(t, eq)
		last, err := db.LastReserved(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, last)

		assert.ErrorIs(t, db.DeleteRoom(ctx, "101"), repository.ErrNotFound)
	})
}

func TestReservations(t *testing.T) {
	db := newTestDB(t)
	seed(t, db)
	ctx := context.Background()

	id, err := db.InsertReservation(ctx, reservation("101", window(1, 9, 0, 9, 30)))
	require.NoError(t, err)
	assert.Positive(t, id)

	_, err = db.InsertReservation(ctx, reservation("102", window(1, 10, 0, 10, 30)))
	require.NoError(t, err)
	_, err = db.InsertReservation(ctx, reservation("101", window(2, 9, 0, 9, 30)))
	require.NoError(t, err)

	t.Run("ByRoomAndDay", func(t *testing.T) {
		list, err := db.ReservationsForRoomOnDate(ctx, "101", time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, id, list[0].ID)
		assert.True(t, list[0].Window.Start.Equal(window(1, 9, 0, 9, 30).Start))
		assert.Equal(t, "study", list[0].Purpose)
	})

	t.Run("ByDay", func(t *testing.T) {
		list, err := db.ReservationsOnDate(ctx, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("Ranges", func(t *testing.T) {
		from := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
		list, err := db.ReservationsForRoomFrom(ctx, "101", from)
		require.NoError(t, err)
		assert.Len(t, list, 1)

		list, err = db.ReservationsForGroupFrom(ctx, 1, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Len(t, list, 3)

		list, err = db.ReservationsBetween(ctx, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), from)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("OverlapRejectedAtWrite", func(t *testing.T) {
		_, err := db.InsertReservation(ctx, reservation("101", window(1, 9, 15, 9, 45)))
		assert.ErrorIs(t, err, repository.ErrOverlap)

		_, err = db.InsertReservation(ctx, reservation("101", window(1, 9, 30, 10, 0)))
		assert.NoError(t, err, "back-to-back reservations are allowed")
	})

	t.Run("UpdateExcludesItself", func(t *testing.T) {
		require.NoError(t, db.UpdateReservation(ctx, id, window(1, 8, 45, 9, 15), "101"))
		got, err := db.GetReservation(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, window(1, 8, 45, 9, 15).Start.Unix(), got.Window.Start.Unix())

		err = db.UpdateReservation(ctx, id, window(1, 10, 0, 10, 30), "102")
		assert.ErrorIs(t, err, repository.ErrOverlap)

		assert.ErrorIs(t, db.UpdateReservation(ctx, 9999, window(3, 8, 0, 9, 0), "101"), repository.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, db.DeleteReservation(ctx, id))
		_, err := db.GetReservation(ctx, id)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.ErrorIs(t, db.DeleteReservation(ctx, id), repository.ErrNotFound)
	})

	t.Run("UnknownRoom", func(t *testing.T) {
		_, err := db.InsertReservation(ctx, reservation("nope", window(5, 9, 0, 9, 30)))
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestConcurrentInsertsCannotDoubleBook(t *testing.T) {
	db := newTestDB(t)
	seed(t, db)
	ctx := context.Background()

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := db.InsertReservation(ctx, reservation("102", window(3, 12, 0, 13, 0))); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	list, err := db.ReservationsForRoomOnDate(ctx, "102", window(3, 0, 0, 0, 0).Start)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDayUsesBookingLocation(t *testing.T) {
	oslo, err := time.LoadLocation("Europe/Oslo")
	require.NoError(t, err)
	logger := zerolog.New(io.Discard)
	db, err := NewDB(filepath.Join(t.TempDir(), "oslo.db"), oslo, &logger)
	require.NoError(t, err)
	defer db.Close()
	seed(t, db)
	ctx := context.Background()

	// 00:30 on Jan 2 in Oslo is still Jan 1 in UTC.
	start := time.Date(2024, 1, 2, 0, 30, 0, 0, oslo)
	_, err = db.InsertReservation(ctx, reservation("101", models.TimeWindow{Start: start, End: start.Add(time.Hour)}))
	require.NoError(t, err)

	list, err := db.ReservationsForRoomOnDate(ctx, "101", time.Date(2024, 1, 2, 12, 0, 0, 0, oslo))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, oslo, list[0].Window.Start.Location())
}

func TestGroupsAndUsers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertUser(ctx, &models.User{Code: "alice", TypeID: 1, FirstName: "Alice"}))
	u, err := db.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.FullName())
	_, err = db.GetUser(ctx, "ghost")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	g, err := db.CreateGroup(ctx, "thesis", "alice")
	require.NoError(t, err)
	require.NoError(t, db.AddGroupMember(ctx, g.ID, "bob"))
	assert.ErrorIs(t, db.AddGroupMember(ctx, g.ID, "bob"), repository.ErrDuplicateEntry)

	got, err := db.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "thesis", got.Name)
	assert.ElementsMatch(t, []string{"alice", "bob"}, got.Members)

	groups, err := db.GroupsForUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.True(t, groups[0].HasMember("alice"))

	_, err = db.GetGroup(ctx, 404)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestLastReserved(t *testing.T) {
	db := newTestDB(t)
	seed(t, db)
	ctx := context.Background()

	require.NoError(t, db.SetLastReserved(ctx, "alice", "101"))
	require.NoError(t, db.SetLastReserved(ctx, "alice", "A200"))
	require.NoError(t, db.SetLastReserved(ctx, "alice", "101"))

	rooms, err := db.LastReserved(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "101", rooms[0].Code)
	assert.Equal(t, "A200", rooms[1].Code)
}

func TestBackupService(t *testing.T) {
	db := newTestDB(t)
	seed(t, db)
	logger := zerolog.New(io.Discard)
	dir := t.TempDir()

	svc := NewBackupService(db, config.BackupConfig{Enabled: true, Path: dir, RetentionDays: 7}, &logger)
	path, err := svc.PerformBackup(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, path)

	old := filepath.Join(dir, backupPrefix+"20000101_000000.db")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))
	stale := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(old, stale, stale))
	unrelated := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(unrelated, []byte("keep"), 0o644))
	require.NoError(t, os.Chtimes(unrelated, stale, stale))

	svc.CleanupOldBackups()
	assert.NoFileExists(t, old)
	assert.FileExists(t, unrelated)
	assert.FileExists(t, path)

	t.Run("Disabled", func(t *testing.T) {
		disabled := NewBackupService(db, config.BackupConfig{}, &logger)
		assert.NoError(t, disabled.Start(context.Background()))
	})

	t.Run("InvalidSchedule", func(t *testing.T) {
		bad := NewBackupService(db, config.BackupConfig{Enabled: true, Path: dir, Schedule: "every tuesday"}, &logger)
		assert.Error(t, bad.Start(context.Background()))
	})
}
