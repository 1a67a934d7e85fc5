// Package groups manages the groups that reservations belong to.
package groups

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"roombooking/internal/access"
	"roombooking/internal/models"
	"roombooking/internal/repository"
)

// ErrInvalidGroup is returned for malformed group requests.
var ErrInvalidGroup = errors.New("groups: invalid group")

// Service creates groups and adds members within the configured capacity.
type Service struct {
	groups   repository.GroupRepository
	users    repository.UserRepository
	capacity int
	logger   *zerolog.Logger
}

func NewService(groups repository.GroupRepository, users repository.UserRepository, capacity int, logger *zerolog.Logger) *Service {
	if capacity <= 0 {
		capacity = models.DefaultGroupCapacity
	}
	l := logger.With().Str("component", "groups").Logger()
	return &Service{groups: groups, users: users, capacity: capacity, logger: &l}
}

// Create makes a new group with founder as its only member.
func (s *Service) Create(ctx context.Context, founder *models.User, name string) (*models.Group, error) {
	if founder == nil {
		return nil, &access.AccessDeniedError{Reason: access.ReasonNotLoggedIn}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidGroup)
	}
	g, err := s.groups.CreateGroup(ctx, name, founder.Code)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("group_id", g.ID).Str("founder", founder.Code).Msg("Group created")
	return g, nil
}

// AddMember adds userCode to the group. Only existing members may invite.
func (s *Service) AddMember(ctx context.Context, actor *models.User, groupID int64, userCode string) (*models.Group, error) {
	if actor == nil {
		return nil, &access.AccessDeniedError{Reason: access.ReasonNotLoggedIn}
	}
	g, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("load group %d: %w", groupID, err)
	}
	if !g.HasMember(actor.Code) {
		return nil, &access.AccessDeniedError{Reason: "only members can add people to a group"}
	}
	if _, err := s.users.GetUser(ctx, userCode); err != nil {
		return nil, fmt.Errorf("load user %s: %w", userCode, err)
	}
	if err := g.AddMember(userCode, s.capacity); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGroup, err)
	}
	if err := s.groups.AddGroupMember(ctx, groupID, userCode); err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	s.logger.Info().Int64("group_id", groupID).Str("user", userCode).Str("actor", actor.Code).Msg("Group member added")
	return g, nil
}

// ForUser lists the groups userCode belongs to.
func (s *Service) ForUser(ctx context.Context, userCode string) ([]models.Group, error) {
	return s.groups.GroupsForUser(ctx, userCode)
}
