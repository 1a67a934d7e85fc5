package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"roombooking/internal/access"
	"roombooking/internal/metrics"
)

// CreateGroupRequest is the body of POST /api/v1/groups.
type CreateGroupRequest struct {
	Name string `json:"name"`
}

// AddMemberRequest is the body of POST /api/v1/groups/{id}/members.
type AddMemberRequest struct {
	UserCode string `json:"user_code"`
}

// GET /api/v1/groups
func (s *HTTPServer) handleMyGroups(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_groups")

	user, err := s.currentUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	list, err := s.deps.Groups.ForUser(r.Context(), user.Code)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"groups": list})
}

// POST /api/v1/groups
func (s *HTTPServer) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_group")

	user, err := s.currentUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req CreateGroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	g, err := s.deps.Groups.Create(r.Context(), user, req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// POST /api/v1/groups/{id}/members
func (s *HTTPServer) handleAddMember(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("add_group_member")

	user, err := s.currentUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	var req AddMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	g, err := s.deps.Groups.AddMember(r.Context(), user, id, req.UserCode)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// handleGroupReservations lists a group's upcoming reservations. Members and
// administrators only.
// GET /api/v1/groups/{id}/reservations
func (s *HTTPServer) handleGroupReservations(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("group_reservations")

	user, err := s.currentUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if !s.deps.Access.IsAdmin(user) {
		mine, err := s.deps.Groups.ForUser(r.Context(), user.Code)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		member := false
		for _, g := range mine {
			if g.ID == id {
				member = true
				break
			}
		}
		if !member {
			s.fail(w, r, &access.AccessDeniedError{Reason: "not a member of this group"})
			return
		}
	}

	list, err := s.deps.Bookings.UpcomingForGroup(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"reservations": toReservationList(list)})
}
