package privilege

import (
	"context"
	"log/slog"
	"time"

	"github.com/wardenhq/warden/internal"
	roleDatamodel "github.com/wardenhq/warden/internal/core/datamodel/role"
	"github.com/wardenhq/warden/internal/core/events"
)

// MembersLookupAPI resolves which users hold a role, so privilege
// mutations can target cache invalidation at exactly the affected users.
type MembersLookupAPI interface {
	UserIDsWithRole(ctx context.Context, roleID int64) ([]int64, error)
}

type Service struct {
	repo    RepositoryAPI
	members MembersLookupAPI
	bus     *events.EventBus
	logger  *slog.Logger
}

func NewService(repo RepositoryAPI, members MembersLookupAPI, bus *events.EventBus, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		members: members,
		bus:     bus,
		logger:  logger,
	}
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Privilege, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PerPage < 1 {
		filter.PerPage = internal.DefaultPageSize
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) GetByID(ctx context.Context, id int64) (*Privilege, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, internal.ErrPrivilegeNotFound
	}
	return p, nil
}

func (s *Service) Create(ctx context.Context, dto CreatePrivilegeDTO) (*Privilege, error) {
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
	dm := &roleDatamodel.Privilege{
		Name:        dto.Name,
		Slug:        dto.Slug,
		Description: dto.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, dm, dto.RoleIDs); err != nil {
		return nil, internal.NewInternalError("failed to create privilege", err)
	}

	s.notifyRoles(ctx, dto.RoleIDs)
	s.logger.InfoContext(ctx, "privilege created", "privilege_id", dm.ID, "slug", dm.Slug)
	return s.GetByID(ctx, dm.ID)
}

func (s *Service) Update(ctx context.Context, id int64, dto UpdatePrivilegeDTO) (*Privilege, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	dm := &roleDatamodel.Privilege{
		ID:          current.ID,
		Name:        current.Name,
		Slug:        current.Slug,
		Description: current.Description,
		CreatedAt:   current.CreatedAt,
		UpdatedAt:   time.Now(),
	}
	if dto.Name != nil {
		dm.Name = *dto.Name
	}
	if dto.Description != nil {
		dm.Description = dto.Description
	}

	if err := s.repo.Update(ctx, dm); err != nil {
		return nil, internal.NewInternalError("failed to update privilege", err)
	}

	if dto.RoleIDs != nil {
		if err := s.repo.SyncRoles(ctx, id, *dto.RoleIDs); err != nil {
			return nil, internal.NewInternalError("failed to sync roles", err)
		}

		// Invalidate both the old and the new holder sets.
		touched := make(map[int64]bool)
		for _, r := range current.Roles {
			touched[r.ID] = true
		}
		for _, roleID := range *dto.RoleIDs {
			touched[roleID] = true
		}
		roleIDs := make([]int64, 0, len(touched))
		for roleID := range touched {
			roleIDs = append(roleIDs, roleID)
		}
		s.notifyRoles(ctx, roleIDs)
	}

	return s.GetByID(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return internal.NewInternalError("failed to delete privilege", err)
	}

	roleIDs := make([]int64, 0, len(current.Roles))
	for _, r := range current.Roles {
		roleIDs = append(roleIDs, r.ID)
	}
	s.notifyRoles(ctx, roleIDs)

	s.logger.InfoContext(ctx, "privilege deleted", "privilege_id", id, "slug", current.Slug)
	return nil
}

// Purge removes every privilege and every role attachment, then flushes
// all cached authorization data.
func (s *Service) Purge(ctx context.Context) (*PurgeResult, error) {
	deleted, detached, err := s.repo.Purge(ctx)
	if err != nil {
		return nil, internal.NewInternalError("failed to purge privileges", err)
	}

	if err := s.bus.PublishSync(ctx, events.NewPrivilegesPurged(deleted)); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish purge event", "error", err)
	}

	s.logger.InfoContext(ctx, "privileges purged",
		"deleted_privileges", deleted,
		"detached_roles", detached)

	return &PurgeResult{
		DeletedPrivileges: deleted,
		DetachedRoles:     detached,
	}, nil
}

// notifyRoles publishes one privilege-sync event per affected role so
// every member's cached grants get invalidated.
func (s *Service) notifyRoles(ctx context.Context, roleIDs []int64) {
	for _, roleID := range roleIDs {
		userIDs, err := s.members.UserIDsWithRole(ctx, roleID)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to list role members for invalidation", "role_id", roleID, "error", err)
			continue
		}
		if err := s.bus.PublishSync(ctx, events.NewRolePrivilegesSynced(roleID, userIDs)); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish privilege sync event", "role_id", roleID, "error", err)
		}
	}
}
