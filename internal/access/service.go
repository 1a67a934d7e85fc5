// Package access decides which rooms a user can see and who may change a reservation.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"roombooking/internal/models"
	"roombooking/internal/repository"
)

// Reasons reported by ResolveUser.
const (
	ReasonNotLoggedIn = "not logged in"
	ReasonUnknownUser = "unknown user"
)

// Service implements room visibility and reservation authority rules.
type Service struct {
	users              repository.UserRepository
	groups             repository.GroupRepository
	privilegedUserType int
	restrictedRoomType string
	logger             zerolog.Logger
}

// NewService creates a new access control service. Users whose type is at
// least privilegedUserType are administrators; everybody else only sees
// rooms of restrictedRoomType.
func NewService(
	users repository.UserRepository,
	groups repository.GroupRepository,
	privilegedUserType int,
	restrictedRoomType string,
	logger zerolog.Logger,
) *Service {
	return &Service{
		users:              users,
		groups:             groups,
		privilegedUserType: privilegedUserType,
		restrictedRoomType: restrictedRoomType,
		logger:             logger.With().Str("component", "access").Logger(),
	}
}

// ResolveUser loads the user behind a session user code.
func (s *Service) ResolveUser(ctx context.Context, userCode string) (*models.User, error) {
	if userCode == "" {
		return nil, &AccessDeniedError{Reason: ReasonNotLoggedIn}
	}
	user, err := s.users.GetUser(ctx, userCode)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &AccessDeniedError{Reason: ReasonUnknownUser}
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	return user, nil
}

// IsAdmin checks if a user has administrator permissions.
func (s *Service) IsAdmin(user *models.User) bool {
	return user.IsPrivileged(s.privilegedUserType)
}

// ScopeFor returns the rooms visible to user. A nil user gets the
// restricted scope.
func (s *Service) ScopeFor(user *models.User) models.VisibilityScope {
	if s.IsAdmin(user) {
		return models.VisibilityScope{All: true}
	}
	return models.VisibilityScope{RoomType: s.restrictedRoomType}
}

// CanManageReservation allows administrators and members of the owning
// group to edit or delete r.
func (s *Service) CanManageReservation(ctx context.Context, user *models.User, r *models.Reservation) error {
	if user == nil {
		return &AccessDeniedError{Reason: ReasonNotLoggedIn}
	}
	if s.IsAdmin(user) {
		return nil
	}

	group, err := s.groups.GetGroup(ctx, r.GroupID)
	if errors.Is(err, repository.ErrNotFound) {
		return &AccessDeniedError{Reason: "reservation has no owning group"}
	}
	if err != nil {
		return fmt.Errorf("checking group membership: %w", err)
	}
	if !group.HasMember(user.Code) {
		s.logger.Info().
			Str("user", user.Code).
			Int64("reservation_id", r.ID).
			Int64("group_id", r.GroupID).
			Msg("reservation change denied")
		return &AccessDeniedError{Reason: "only the group's members or an administrator can change this reservation"}
	}
	return nil
}

// RequireAdmin fails unless user is an administrator.
func (s *Service) RequireAdmin(user *models.User) error {
	if !s.IsAdmin(user) {
		return &AccessDeniedError{Reason: "administrator permissions required"}
	}
	return nil
}

// AccessDeniedError is returned when user access is denied.
type AccessDeniedError struct {
	Reason string
}

func (e *AccessDeniedError) Error() string {
	return e.Reason
}

// IsAccessDenied checks if err is, or wraps, an access denied error.
func IsAccessDenied(err error) bool {
	var denied *AccessDeniedError
	return errors.As(err, &denied)
}
