package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"roombooking/internal/access"
	"roombooking/internal/booking"
	"roombooking/internal/metrics"
	"roombooking/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// handleMonthlyReport streams the reservations of a month as a workbook.
// GET /api/v1/reports/reservations?month=YYYY-MM
func (s *HTTPServer) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("monthly_report")

	user, err := s.currentUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.deps.Access.RequireAdmin(user); err != nil {
		s.fail(w, r, err)
		return
	}

	loc := s.deps.Bookings.Validator().Rules().Location
	month, err := report.ParseMonth(r.URL.Query().Get("month"), loc)
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: %v", booking.ErrInvalidRequest, err))
		return
	}

	var buf bytes.Buffer
	if err := s.deps.Reports.WriteMonthly(r.Context(), month, &buf); err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, report.Filename(month)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// handleLastRooms lists the rooms a user reserved most recently. Users see
// their own history; administrators see anyone's.
// GET /api/v1/users/{code}/last-rooms
func (s *HTTPServer) handleLastRooms(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("last_rooms")

	user, err := s.currentUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	code := mux.Vars(r)["code"]
	if code != user.Code && !s.deps.Access.IsAdmin(user) {
		s.fail(w, r, &access.AccessDeniedError{Reason: "history of other users is private"})
		return
	}

	rooms, err := s.deps.History.LastReserved(r.Context(), code)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rooms": rooms})
}
