package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"roombooking/internal/booking"
	"roombooking/internal/metrics"
	"roombooking/internal/models"
)

// WindowRequest carries window boundaries in booking.DateTimeLayout.
type WindowRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// AvailabilityRequest is the body of POST /api/v1/availability.
type AvailabilityRequest struct {
	WindowRequest
	CampusID string `json:"campus_id,omitempty"`
}

// AvailabilityResponse lists the free rooms for a window.
type AvailabilityResponse struct {
	Start string        `json:"start"`
	End   string        `json:"end"`
	Valid bool          `json:"valid"`
	Rule  string        `json:"rule,omitempty"`
	Rooms []models.Room `json:"rooms"`
}

// CreateReservationRequest is the body of POST /api/v1/reservations.
type CreateReservationRequest struct {
	WindowRequest
	RoomCode string `json:"room_code"`
	GroupID  int64  `json:"group_id"`
	Purpose  string `json:"purpose"`
}

// EditReservationRequest is the body of PUT /api/v1/reservations/{id}.
type EditReservationRequest struct {
	WindowRequest
	RoomCode string `json:"room_code,omitempty"`
}

// ReservationResponse renders a reservation with wire-format times.
type ReservationResponse struct {
	ID         int64  `json:"id"`
	RoomCode   string `json:"room_code"`
	GroupID    int64  `json:"group_id"`
	LeaderCode string `json:"leader_code"`
	Purpose    string `json:"purpose"`
	Start      string `json:"start"`
	End        string `json:"end"`
}

func toReservationResponse(r *models.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:         r.ID,
		RoomCode:   r.RoomCode,
		GroupID:    r.GroupID,
		LeaderCode: r.LeaderCode,
		Purpose:    r.Purpose,
		Start:      r.Window.Start.Format(booking.DateTimeLayout),
		End:        r.Window.End.Format(booking.DateTimeLayout),
	}
}

func toReservationList(list []models.Reservation) []ReservationResponse {
	out := make([]ReservationResponse, 0, len(list))
	for i := range list {
		out = append(out, toReservationResponse(&list[i]))
	}
	return out
}

// handleAvailability returns the rooms the caller may book for a window.
// POST /api/v1/availability
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability")

	user, err := s.currentUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req AvailabilityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	window := s.deps.Bookings.Validator().Parse(req.Start, req.End)
	result, err := s.deps.Bookings.AvailableFor(r.Context(), user, window, req.CampusID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AvailabilityResponse{
		Start: req.Start,
		End:   req.End,
		Valid: result.Valid(),
		Rule:  result.Rule,
		Rooms: result.Rooms,
	})
}

// handleCreateReservation books a room for the caller's group.
// POST /api/v1/reservations
func (s *HTTPServer) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_reservation")

	user, err := s.currentUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req CreateReservationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.deps.Bookings.CreateFor(r.Context(), user, booking.CreateRequest{
		Window:   s.deps.Bookings.Validator().Parse(req.Start, req.End),
		RoomCode: req.RoomCode,
		GroupID:  req.GroupID,
		Purpose:  req.Purpose,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReservationResponse(res))
}

// handleEditReservation moves a reservation.
// PUT /api/v1/reservations/{id}
func (s *HTTPServer) handleEditReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("edit_reservation")

	user, err := s.currentUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	var req EditReservationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	window := s.deps.Bookings.Validator().Parse(req.Start, req.End)
	res, err := s.deps.Bookings.Edit(r.Context(), user, id, window, req.RoomCode)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationResponse(res))
}

// handleDeleteReservation cancels a reservation.
// DELETE /api/v1/reservations/{id}
func (s *HTTPServer) handleDeleteReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("delete_reservation")

	user, err := s.currentUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err := s.deps.Bookings.Delete(r.Context(), user, id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
