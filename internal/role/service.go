package role

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/wardenhq/warden/internal"
	roleDatamodel "github.com/wardenhq/warden/internal/core/datamodel/role"
	"github.com/wardenhq/warden/internal/core/events"
)

type Service struct {
	repo           RepositoryAPI
	bus            *events.EventBus
	protectedSlugs []string
	logger         *slog.Logger
}

func NewService(repo RepositoryAPI, bus *events.EventBus, protectedSlugs []string, logger *slog.Logger) *Service {
	return &Service{
		repo:           repo,
		bus:            bus,
		protectedSlugs: protectedSlugs,
		logger:         logger,
	}
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Role, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PerPage < 1 {
		filter.PerPage = internal.DefaultPageSize
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) GetByID(ctx context.Context, id int64) (*Role, error) {
	role, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, internal.ErrRoleNotFound
	}
	return role, nil
}

func (s *Service) Create(ctx context.Context, dto CreateRoleDTO) (*Role, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	taken, err := s.repo.SlugExists(ctx, dto.Slug, 0)
	if err != nil {
		return nil, internal.NewInternalError("failed to check slug uniqueness", err)
	}
	if taken {
		return nil, internal.NewValidationFieldError("slug", "The slug has already been taken.", internal.ErrCodeValidationFailed)
	}

	now := time.Now()
	dm := &roleDatamodel.Role{
		Name:      dto.Name,
		Slug:      dto.Slug,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, dm, dto.PrivilegeIDs); err != nil {
		return nil, internal.NewInternalError("failed to create role", err)
	}

	s.logger.InfoContext(ctx, "role created", "role_id", dm.ID, "slug", dm.Slug)
	return s.GetByID(ctx, dm.ID)
}

// Update renames the role and optionally replaces its privilege set. The
// slug never changes after creation, it is the stable external key.
func (s *Service) Update(ctx context.Context, id int64, dto UpdateRoleDTO) (*Role, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if dto.Name != nil && *dto.Name != current.Name {
		dm := &roleDatamodel.Role{
			ID:        current.ID,
			Name:      *dto.Name,
			Slug:      current.Slug,
			CreatedAt: current.CreatedAt,
			UpdatedAt: time.Now(),
		}
		if err := s.repo.Update(ctx, dm); err != nil {
			return nil, internal.NewInternalError("failed to update role", err)
		}
	}

	if dto.PrivilegeIDs != nil {
		if err := s.repo.SyncPrivileges(ctx, id, *dto.PrivilegeIDs); err != nil {
			return nil, internal.NewInternalError("failed to sync privileges", err)
		}
		s.publishPrivilegesSynced(ctx, id)
	}

	return s.GetByID(ctx, id)
}

// Delete removes the role after detaching every member and privilege.
// Protected slugs cannot be deleted.
func (s *Service) Delete(ctx context.Context, id int64) error {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if slices.Contains(s.protectedSlugs, current.Slug) {
		return internal.ErrProtectedRole
	}

	userIDs, err := s.repo.UserIDsWithRole(ctx, id)
	if err != nil {
		return internal.NewInternalError("failed to list role members", err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return internal.NewInternalError("failed to delete role", err)
	}

	if err := s.bus.PublishSync(ctx, events.NewRoleDeleted(id, userIDs)); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish role deletion event", "role_id", id, "error", err)
	}

	s.logger.InfoContext(ctx, "role deleted", "role_id", id, "slug", current.Slug, "detached_users", len(userIDs))
	return nil
}

func (s *Service) AttachPrivilege(ctx context.Context, roleID, privilegeID int64) error {
	current, err := s.GetByID(ctx, roleID)
	if err != nil {
		return err
	}

	for _, p := range current.Privileges {
		if p.ID == privilegeID {
			// already attached, sync stays idempotent
			return nil
		}
	}

	if err := s.repo.AttachPrivilege(ctx, roleID, privilegeID); err != nil {
		return internal.NewInternalError("failed to attach privilege", err)
	}

	s.publishPrivilegesSynced(ctx, roleID)
	return nil
}

func (s *Service) DetachPrivilege(ctx context.Context, roleID, privilegeID int64) error {
	if _, err := s.GetByID(ctx, roleID); err != nil {
		return err
	}

	if err := s.repo.DetachPrivilege(ctx, roleID, privilegeID); err != nil {
		return internal.NewInternalError("failed to detach privilege", err)
	}

	s.publishPrivilegesSynced(ctx, roleID)
	return nil
}

func (s *Service) publishPrivilegesSynced(ctx context.Context, roleID int64) {
	userIDs, err := s.repo.UserIDsWithRole(ctx, roleID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list role members for invalidation", "role_id", roleID, "error", err)
	}
	if err := s.bus.PublishSync(ctx, events.NewRolePrivilegesSynced(roleID, userIDs)); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish privilege sync event", "role_id", roleID, "error", err)
	}
}
