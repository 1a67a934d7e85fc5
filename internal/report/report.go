// Package report exports reservations as Excel workbooks.
package report

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"roombooking/internal/models"
	"roombooking/internal/repository"
)

const monthLayout = "2006-01"

var (
	reservationColumns = []Column{
		{Title: "ID", Width: 8}, {Title: "Room", Width: 10}, {Title: "Room name", Width: 24},
		{Title: "Date", Width: 12}, {Title: "Start", Width: 8}, {Title: "End", Width: 8},
		{Title: "Minutes", Width: 9}, {Title: "Group", Width: 8}, {Title: "Leader", Width: 14},
		{Title: "Purpose", Width: 40},
	}
	summaryColumns = []Column{
		{Title: "Room", Width: 10}, {Title: "Room name", Width: 24},
		{Title: "Reservations", Width: 14}, {Title: "Hours", Width: 8},
	}
)

// Source supplies the reservations of a period.
type Source interface {
	ReservationsBetween(ctx context.Context, from, to time.Time) ([]models.Reservation, error)
}

// Service builds monthly reservation reports.
type Service struct {
	source   Source
	rooms    repository.RoomRepository
	workbook func() Workbook
	loc      *time.Location
	logger   *zerolog.Logger
}

// NewService creates a report service. newWorkbook defaults to NewWorkbook.
func NewService(source Source, rooms repository.RoomRepository, newWorkbook func() Workbook, loc *time.Location, logger *zerolog.Logger) *Service {
	if newWorkbook == nil {
		newWorkbook = NewWorkbook
	}
	if loc == nil {
		loc = time.UTC
	}
	l := logger.With().Str("component", "report").Logger()
	return &Service{source: source, rooms: rooms, workbook: newWorkbook, loc: loc, logger: &l}
}

// ParseMonth parses "YYYY-MM" into the first instant of that month in loc.
func ParseMonth(month string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(monthLayout, month, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q, want YYYY-MM: %w", month, err)
	}
	return t, nil
}

// Filename returns the download name of the report for month.
func Filename(month time.Time) string {
	return fmt.Sprintf("reservations_%s.xlsx", month.Format(monthLayout))
}

// WriteMonthly writes the reservations starting in month to w. The workbook
// has one sheet listing every reservation and one summarizing usage per room.
func (s *Service) WriteMonthly(ctx context.Context, month time.Time, w io.Writer) error {
	from := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, s.loc)
	to := from.AddDate(0, 1, 0)

	list, err := s.source.ReservationsBetween(ctx, from, to)
	if err != nil {
		return fmt.Errorf("load reservations: %w", err)
	}
	rooms, err := s.rooms.Rooms(ctx, models.VisibilityScope{All: true})
	if err != nil {
		return fmt.Errorf("load rooms: %w", err)
	}
	names := make(map[string]string, len(rooms))
	for _, r := range rooms {
		names[r.Code] = r.Name
	}

	book := s.workbook()
	defer book.Close()

	if err := book.Sheet("Reservations", reservationColumns); err != nil {
		return err
	}

	type usage struct {
		count   int
		minutes int
	}
	perRoom := make(map[string]*usage)

	for i := range list {
		r := &list[i]
		start, end := r.Window.Start.In(s.loc), r.Window.End.In(s.loc)
		minutes := int(r.Window.Duration() / time.Minute)
		if err := book.Append(
			r.ID, r.RoomCode, names[r.RoomCode], start.Format("2006-01-02"),
			start.Format("15:04"), end.Format("15:04"), minutes,
			r.GroupID, r.LeaderCode, r.Purpose,
		); err != nil {
			return err
		}

		u, ok := perRoom[r.RoomCode]
		if !ok {
			u = &usage{}
			perRoom[r.RoomCode] = u
		}
		u.count++
		u.minutes += minutes
	}

	if err := book.Sheet("Summary", summaryColumns); err != nil {
		return err
	}
	codes := make([]string, 0, len(perRoom))
	for code := range perRoom {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		u := perRoom[code]
		if err := book.Append(code, names[code], u.count, float64(u.minutes)/60); err != nil {
			return err
		}
	}

	if err := book.Save(w); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}

	s.logger.Info().
		Str("month", from.Format(monthLayout)).
		Int("reservations", len(list)).
		Msg("Monthly report generated")
	return nil
}
