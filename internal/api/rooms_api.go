package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"roombooking/internal/metrics"
	"roombooking/internal/models"
)

// RoomRequest is the body of room create and update calls.
type RoomRequest struct {
	Code            string `json:"code"`
	Name            string `json:"name"`
	TypeCode        string `json:"type_code"`
	CapacityExam    int    `json:"capacity_exam"`
	CapacityLecture int    `json:"capacity_lecture"`
	CampusID        string `json:"campus_id"`
	Active          *bool  `json:"active,omitempty"`
}

func (req RoomRequest) toModel() *models.Room {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return &models.Room{
		Code:            req.Code,
		Name:            req.Name,
		TypeCode:        req.TypeCode,
		CapacityExam:    req.CapacityExam,
		CapacityLecture: req.CapacityLecture,
		CampusID:        req.CampusID,
		Active:          active,
	}
}

// handleListRooms lists the rooms visible to the caller.
// GET /api/v1/rooms?campus=ID
func (s *HTTPServer) handleListRooms(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_rooms")

	user, err := s.currentUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	list, err := s.deps.Rooms.List(r.Context(), user, r.URL.Query().Get("campus"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rooms": list})
}

// POST /api/v1/rooms
func (s *HTTPServer) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_room")

	user, err := s.currentUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req RoomRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	room := req.toModel()
	if err := s.deps.Rooms.Create(r.Context(), user, room); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

// PUT /api/v1/rooms/{code}
func (s *HTTPServer) handleUpdateRoom(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("update_room")

	user, err := s.currentUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req RoomRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	room := req.toModel()
	room.Code = mux.Vars(r)["code"]
	if err := s.deps.Rooms.Update(r.Context(), user, room); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// DELETE /api/v1/rooms/{code}
func (s *HTTPServer) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("delete_room")

	user, err := s.currentUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.deps.Rooms.Delete(r.Context(), user, mux.Vars(r)["code"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/rooms/{code}/equipment
func (s *HTTPServer) handleRoomEquipment(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("room_equipment")

	if _, err := s.currentUser(r); err != nil {
		s.fail(w, r, err)
		return
	}
	items, err := s.deps.Rooms.Equipment(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"equipment": items})
}

// handleRoomReservations lists the upcoming reservations of a room.
// GET /api/v1/rooms/{code}/reservations
func (s *HTTPServer) handleRoomReservations(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("room_reservations")

	if _, err := s.currentUser(r); err != nil {
		s.fail(w, r, err)
		return
	}
	list, err := s.deps.Bookings.UpcomingForRoom(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"reservations": toReservationList(list)})
}
