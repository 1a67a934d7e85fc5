package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roombooking/internal/access"
	"roombooking/internal/booking"
	"roombooking/internal/database"
	"roombooking/internal/events"
	"roombooking/internal/groups"
	"roombooking/internal/models"
	"roombooking/internal/report"
	"roombooking/internal/rooms"
)

const testAPIKey = "valid-key"

type ErrorResponse struct {
	Error string `json:"error"`
}

type testEnv struct {
	handler http.Handler
	db      *database.DB
	groupID int64
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)
	ctx := context.Background()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"), time.UTC, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.UpsertRooms(ctx, []models.Room{
		{Code: "101", TypeCode: "KOL", Active: true},
		{Code: "102", TypeCode: "KOL", Active: true},
		{Code: "A200", TypeCode: "AUD", Active: true},
	}))
	for _, u := range []*models.User{
		{Code: "alice", TypeID: 1},
		{Code: "bob", TypeID: 1},
		{Code: "root", TypeID: 4},
	} {
		require.NoError(t, db.UpsertUser(ctx, u))
	}
	g, err := db.CreateGroup(ctx, "thesis", "alice")
	require.NoError(t, err)

	now := time.Date(2023, 12, 31, 12, 0, 0, 0, time.UTC)
	validator := booking.NewValidator(booking.DefaultRules(), func() time.Time { return now })
	auth := access.NewService(db, db, 4, "KOL", logger)
	bookings := booking.NewService(db, db, db, auth, validator, &logger)
	bus := events.NewEventBus()
	bus.Subscribe(events.ReservationCreated, booking.RecordLastReserved(db))
	bookings.UseEvents(bus)

	server := NewHTTPServer(Options{APIKeys: []string{testAPIKey}, RateLimit: 1000, RateBurst: 1000}, Deps{
		Bookings: bookings,
		Rooms:    rooms.NewService(db, db, auth, &logger),
		Groups:   groups.NewService(db, db, 5, &logger),
		Access:   auth,
		Reports:  report.NewService(db, db, nil, time.UTC, &logger),
		History:  db,
	}, &logger)

	return &testEnv{handler: server.Handler(), db: db, groupID: g.ID}
}

func (e *testEnv) do(t *testing.T, method, path, user string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(headerAPIKey, testAPIKey)
	if user != "" {
		req.Header.Set(headerUserCode, user)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestAuthentication(t *testing.T) {
	env := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms", http.NoBody)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))

	rec = env.do(t, http.MethodGet, "/api/v1/rooms", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/rooms", "ghost", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, access.ReasonUnknownUser, decode[ErrorResponse](t, rec).Error)
}

func TestListRoomsIsScoped(t *testing.T) {
	env := setupTestServer(t)

	type roomsResponse struct {
		Rooms []models.Room `json:"rooms"`
	}
	rec := env.do(t, http.MethodGet, "/api/v1/rooms", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[roomsResponse](t, rec).Rooms, 2)

	rec = env.do(t, http.MethodGet, "/api/v1/rooms", "root", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[roomsResponse](t, rec).Rooms, 3)
}

func TestReservationFlow(t *testing.T) {
	env := setupTestServer(t)

	create := CreateReservationRequest{
		WindowRequest: WindowRequest{Start: "2024-01-01 09:00:00", End: "2024-01-01 09:30:00"},
		RoomCode:      "101",
		GroupID:       env.groupID,
		Purpose:       "exam prep",
	}
	rec := env.do(t, http.MethodPost, "/api/v1/reservations", "alice", create)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[ReservationResponse](t, rec)
	assert.Equal(t, "alice", created.LeaderCode)
	assert.Equal(t, "2024-01-01 09:00:00", created.Start)

	t.Run("OverlapConflicts", func(t *testing.T) {
		req := create
		req.WindowRequest = WindowRequest{Start: "2024-01-01 09:15:00", End: "2024-01-01 09:45:00"}
		rec := env.do(t, http.MethodPost, "/api/v1/reservations", "alice", req)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("BackToBackAllowed", func(t *testing.T) {
		req := create
		req.WindowRequest = WindowRequest{Start: "2024-01-01 09:30:00", End: "2024-01-01 10:00:00"}
		rec := env.do(t, http.MethodPost, "/api/v1/reservations", "alice", req)
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("InvalidWindow", func(t *testing.T) {
		req := create
		req.WindowRequest = WindowRequest{Start: "2024-01-01 11:02:30", End: "2024-01-01 11:32:30"}
		rec := env.do(t, http.MethodPost, "/api/v1/reservations", "alice", req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decode[ErrorResponse](t, rec).Error, booking.RuleOffGrid)
	})

	t.Run("OutsideScope", func(t *testing.T) {
		req := create
		req.RoomCode = "A200"
		rec := env.do(t, http.MethodPost, "/api/v1/reservations", "alice", req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("Availability", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/availability", "root", AvailabilityRequest{
			WindowRequest: WindowRequest{Start: "2024-01-01 09:00:00", End: "2024-01-01 09:30:00"},
		})
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[AvailabilityResponse](t, rec)
		assert.True(t, resp.Valid)
		require.Len(t, resp.Rooms, 2)
		assert.Equal(t, "102", resp.Rooms[0].Code)
		assert.Equal(t, "A200", resp.Rooms[1].Code)

		rec = env.do(t, http.MethodPost, "/api/v1/availability", "root", AvailabilityRequest{
			WindowRequest: WindowRequest{Start: "2024-01-01 09:02:30", End: "2024-01-01 09:32:30"},
		})
		require.Equal(t, http.StatusOK, rec.Code)
		resp = decode[AvailabilityResponse](t, rec)
		assert.False(t, resp.Valid)
		assert.Equal(t, booking.RuleOffGrid, resp.Rule)
		assert.Empty(t, resp.Rooms)
	})

	t.Run("EditByStrangerForbidden", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, "/api/v1/reservations/1", "bob", EditReservationRequest{
			WindowRequest: WindowRequest{Start: "2024-01-01 12:00:00", End: "2024-01-01 12:30:00"},
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("EditMovesWindow", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, "/api/v1/reservations/1", "alice", EditReservationRequest{
			WindowRequest: WindowRequest{Start: "2024-01-01 08:45:00", End: "2024-01-01 09:15:00"},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "2024-01-01 08:45:00", decode[ReservationResponse](t, rec).Start)
	})

	t.Run("LastRooms", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/users/alice/last-rooms", "alice", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"code":"101"`)

		rec = env.do(t, http.MethodGet, "/api/v1/users/alice/last-rooms", "bob", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("GroupReservations", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/groups/1/reservations", "alice", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		rec = env.do(t, http.MethodGet, "/api/v1/groups/1/reservations", "bob", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("Report", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/reports/reservations?month=2024-01", "alice", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = env.do(t, http.MethodGet, "/api/v1/reports/reservations?month=01-2024", "root", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = env.do(t, http.MethodGet, "/api/v1/reports/reservations?month=2024-01", "root", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "reservations_2024-01.xlsx")
		assert.NotZero(t, rec.Body.Len())
	})

	t.Run("Delete", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, "/api/v1/reservations/1", "root", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = env.do(t, http.MethodDelete, "/api/v1/reservations/1", "root", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestGroupsEndpoints(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, http.MethodPost, "/api/v1/groups", "bob", CreateGroupRequest{Name: "lab"})
	require.Equal(t, http.StatusCreated, rec.Code)
	g := decode[models.Group](t, rec)

	rec = env.do(t, http.MethodPost, "/api/v1/groups/"+strconv.FormatInt(g.ID, 10)+"/members", "bob", AddMemberRequest{UserCode: "alice"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/groups/"+strconv.FormatInt(g.ID, 10)+"/members", "bob", AddMemberRequest{UserCode: "alice"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/groups", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Groups []models.Group `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Groups, 2)
}

func TestRoomAdminEndpoints(t *testing.T) {
	env := setupTestServer(t)

	room := RoomRequest{Code: "B1", Name: "Lab", TypeCode: "LAB"}
	rec := env.do(t, http.MethodPost, "/api/v1/rooms", "alice", room)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/rooms", "root", room)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/rooms", "root", RoomRequest{Code: "B2"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/v1/rooms/B1", "root", RoomRequest{Name: "Renamed", TypeCode: "LAB"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/rooms/B1/equipment", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/rooms/B1", "root", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRateLimit(t *testing.T) {
	logger := zerolog.New(io.Discard)
	server := NewHTTPServer(Options{RateLimit: 0.001, RateBurst: 1}, Deps{}, &logger)
	h := server.rateLimit(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(key string) int {
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set(headerAPIKey, key)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("a"))
	assert.Equal(t, http.StatusTooManyRequests, call("a"))
	assert.Equal(t, http.StatusOK, call("b"), "buckets are per key")
}
