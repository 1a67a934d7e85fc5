// Package api exposes the reservation engine over JSON/HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"roombooking/internal/access"
	"roombooking/internal/booking"
	"roombooking/internal/groups"
	"roombooking/internal/models"
	"roombooking/internal/report"
	"roombooking/internal/repository"
	"roombooking/internal/rooms"
)

const (
	headerAPIKey    = "X-Api-Key"
	headerUserCode  = "X-User-Code"
	headerRequestID = "X-Request-Id"
)

type ctxKey int

const requestIDKey ctxKey = iota

// Options configures the HTTP server.
type Options struct {
	Port           int
	APIKeys        []string
	RateLimit      float64
	RateBurst      int
	AllowedOrigins []string
}

// Deps are the services behind the API.
type Deps struct {
	Bookings *booking.Service
	Rooms    *rooms.Service
	Groups   *groups.Service
	Access   *access.Service
	Reports  *report.Service
	History  repository.HistoryRepository
}

// HTTPServer serves the JSON API.
type HTTPServer struct {
	server   *http.Server
	deps     Deps
	apiKeys  [][]byte
	rate     rate.Limit
	burst    int
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	logger   *zerolog.Logger
}

// NewHTTPServer builds the router and middleware chain.
func NewHTTPServer(opts Options, deps Deps, logger *zerolog.Logger) *HTTPServer {
	l := logger.With().Str("component", "api").Logger()
	s := &HTTPServer{
		deps:     deps,
		rate:     rate.Limit(opts.RateLimit),
		burst:    opts.RateBurst,
		limiters: make(map[string]*rate.Limiter),
		logger:   &l,
	}
	for _, k := range opts.APIKeys {
		if k != "" {
			s.apiKeys = append(s.apiKeys, []byte(k))
		}
	}
	if s.rate <= 0 {
		s.rate = rate.Inf
	}
	if s.burst <= 0 {
		s.burst = 1
	}

	r := mux.NewRouter()
	r.Use(s.requestID, s.authenticate, s.rateLimit)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/rooms", s.handleListRooms).Methods(http.MethodGet)
	v1.HandleFunc("/rooms", s.handleCreateRoom).Methods(http.MethodPost)
	v1.HandleFunc("/rooms/{code}", s.handleUpdateRoom).Methods(http.MethodPut)
	v1.HandleFunc("/rooms/{code}", s.handleDeleteRoom).Methods(http.MethodDelete)
	v1.HandleFunc("/rooms/{code}/equipment", s.handleRoomEquipment).Methods(http.MethodGet)
	v1.HandleFunc("/rooms/{code}/reservations", s.handleRoomReservations).Methods(http.MethodGet)

	v1.HandleFunc("/availability", s.handleAvailability).Methods(http.MethodPost)
	v1.HandleFunc("/reservations", s.handleCreateReservation).Methods(http.MethodPost)
	v1.HandleFunc("/reservations/{id:[0-9]+}", s.handleEditReservation).Methods(http.MethodPut)
	v1.HandleFunc("/reservations/{id:[0-9]+}", s.handleDeleteReservation).Methods(http.MethodDelete)

	v1.HandleFunc("/groups", s.handleMyGroups).Methods(http.MethodGet)
	v1.HandleFunc("/groups", s.handleCreateGroup).Methods(http.MethodPost)
	v1.HandleFunc("/groups/{id:[0-9]+}/members", s.handleAddMember).Methods(http.MethodPost)
	v1.HandleFunc("/groups/{id:[0-9]+}/reservations", s.handleGroupReservations).Methods(http.MethodGet)

	v1.HandleFunc("/users/{code}/last-rooms", s.handleLastRooms).Methods(http.MethodGet)
	v1.HandleFunc("/reports/reservations", s.handleMonthlyReport).Methods(http.MethodGet)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	var h http.Handler = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}),
		handlers.AllowedHeaders([]string{"Content-Type", headerAPIKey, headerUserCode}),
	)(r)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.logger}), handlers.PrintRecoveryStack(false))(h)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func (s *HTTPServer) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.apiKeys) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		key := []byte(r.Header.Get(headerAPIKey))
		for _, k := range s.apiKeys {
			if subtle.ConstantTimeCompare(key, k) == 1 {
				next.ServeHTTP(w, r)
				return
			}
		}
		writeError(w, http.StatusUnauthorized, "invalid API key")
	})
}

func (s *HTTPServer) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter(r.Header.Get(headerAPIKey)).Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limiter returns the token bucket of one API key.
func (s *HTTPServer) limiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[key]
	if !ok {
		l = rate.NewLimiter(s.rate, s.burst)
		s.limiters[key] = l
	}
	return l
}

// currentUser resolves the caller from the session header.
func (s *HTTPServer) currentUser(r *http.Request) (*models.User, error) {
	return s.deps.Access.ResolveUser(r.Context(), r.Header.Get(headerUserCode))
}

func (s *HTTPServer) log(r *http.Request) *zerolog.Logger {
	id, _ := r.Context().Value(requestIDKey).(string)
	l := s.logger.With().Str("request_id", id).Str("path", r.URL.Path).Logger()
	return &l
}

// fail writes the HTTP status matching err and logs unexpected failures.
func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log(r).Error().Err(err).Msg("Request failed")
		msg = "internal error"
	}
	writeError(w, status, msg)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, booking.ErrInvalidWindow),
		errors.Is(err, booking.ErrInvalidRequest),
		errors.Is(err, rooms.ErrInvalidRoom),
		errors.Is(err, groups.ErrInvalidGroup):
		if errors.Is(err, models.ErrGroupFull) || errors.Is(err, models.ErrAlreadyMember) {
			return http.StatusConflict
		}
		return http.StatusBadRequest
	case errors.Is(err, booking.ErrConflict), errors.Is(err, repository.ErrDuplicateEntry):
		return http.StatusConflict
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrForbidden):
		return http.StatusForbidden
	}
	var denied *access.AccessDeniedError
	if errors.As(err, &denied) {
		if denied.Reason == access.ReasonNotLoggedIn || denied.Reason == access.ReasonUnknownUser {
			return http.StatusUnauthorized
		}
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("%w: invalid JSON body", booking.ErrInvalidRequest)
	}
	return nil
}

type recoveryLogger struct {
	logger *zerolog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error().Msg(fmt.Sprint(v...))
}
