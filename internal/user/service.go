package user

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/wardenhq/warden/internal"
	userDatamodel "github.com/wardenhq/warden/internal/core/datamodel/user"
	"github.com/wardenhq/warden/internal/core/events"
)

// TokenRevokerAPI revokes issued credentials. The auth service satisfies
// this.
type TokenRevokerAPI interface {
	LogoutAll(userID int64) (int64, error)
}

type PasswordHasherAPI interface {
	HashPassword(password string) (string, error)
}

type Service struct {
	repo           RepositoryAPI
	tokens         TokenRevokerAPI
	hasher         PasswordHasherAPI
	bus            *events.EventBus
	adminRole      string
	protectedUsers []int64
	logger         *slog.Logger
}

func NewService(
	repo RepositoryAPI,
	tokens TokenRevokerAPI,
	hasher PasswordHasherAPI,
	bus *events.EventBus,
	adminRole string,
	protectedUsers []int64,
	logger *slog.Logger,
) *Service {
	if adminRole == "" {
		adminRole = internal.DefaultAdminRole
	}
	return &Service{
		repo:           repo,
		tokens:         tokens,
		hasher:         hasher,
		bus:            bus,
		adminRole:      adminRole,
		protectedUsers: protectedUsers,
		logger:         logger,
	}
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]User, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PerPage < 1 {
		filter.PerPage = internal.DefaultPageSize
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, internal.ErrUserNotFound
	}
	return u, nil
}

func (s *Service) Create(ctx context.Context, dto CreateUserDTO) (*User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	taken, err := s.repo.EmailExists(ctx, dto.Email, 0)
	if err != nil {
		return nil, internal.NewInternalError("failed to check email uniqueness", err)
	}
	if taken {
		return nil, internal.NewValidationFieldError("email", "The email has already been taken.", internal.ErrCodeValidationFailed)
	}

	hash, err := s.hasher.HashPassword(dto.Password)
	if err != nil {
		return nil, internal.NewInternalError("failed to hash password", err)
	}

	now := time.Now()
	dm := &userDatamodel.User{
		Name:         dto.Name,
		Email:        dto.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, dm, dto.RoleIDs); err != nil {
		return nil, internal.NewInternalError("failed to create user", err)
	}

	if len(dto.RoleIDs) > 0 {
		s.publishRolesSynced(ctx, dm.ID)
	}

	s.logger.InfoContext(ctx, "user created", "user_id", dm.ID, "email", dm.Email)
	return s.GetByID(ctx, dm.ID)
}

func (s *Service) Update(ctx context.Context, id int64, dto UpdateUserDTO) (*User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	dm := &userDatamodel.User{
		ID:               current.ID,
		Name:             current.Name,
		Email:            current.Email,
		PasswordHash:     current.PasswordHash,
		SuspendedAt:      current.SuspendedAt,
		SuspensionReason: current.SuspensionReason,
		CreatedAt:        current.CreatedAt,
		UpdatedAt:        time.Now(),
	}

	if dto.Name != nil {
		dm.Name = *dto.Name
	}
	if dto.Email != nil && *dto.Email != current.Email {
		taken, err := s.repo.EmailExists(ctx, *dto.Email, id)
		if err != nil {
			return nil, internal.NewInternalError("failed to check email uniqueness", err)
		}
		if taken {
			return nil, internal.NewValidationFieldError("email", "The email has already been taken.", internal.ErrCodeValidationFailed)
		}
		dm.Email = *dto.Email
	}

	// A blank password keeps the current credential.
	if dto.Password != "" {
		hash, err := s.hasher.HashPassword(dto.Password)
		if err != nil {
			return nil, internal.NewInternalError("failed to hash password", err)
		}
		dm.PasswordHash = hash
	}

	if err := s.repo.Update(ctx, dm); err != nil {
		return nil, internal.NewInternalError("failed to update user", err)
	}

	if dto.RoleIDs != nil {
		if err := s.guardLastAdminRoleChange(ctx, current, *dto.RoleIDs); err != nil {
			return nil, err
		}
		if err := s.repo.SyncRoles(ctx, id, *dto.RoleIDs); err != nil {
			return nil, internal.NewInternalError("failed to sync roles", err)
		}
		s.publishRolesSynced(ctx, id)
	}

	return s.GetByID(ctx, id)
}

// Suspend marks the account suspended and revokes every issued token.
// Callers cannot suspend themselves, and the last administrator cannot
// be suspended by anyone.
func (s *Service) Suspend(ctx context.Context, actorID, targetID int64, reason string) (*SuspensionResult, error) {
	if actorID == targetID {
		return nil, internal.ErrSelfSuspension
	}

	target, err := s.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if err := s.guardLastAdmin(ctx, target); err != nil {
		return nil, err
	}

	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}

	// Marker and revocation commit together; a suspended row with live
	// tokens must never be observable.
	revoked, err := s.repo.SuspendAndRevoke(ctx, targetID, time.Now(), reasonPtr)
	if err != nil {
		return nil, internal.NewInternalError("failed to suspend user", err)
	}

	if err := s.bus.PublishSync(ctx, events.NewUserSuspended(targetID, reason, revoked)); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish suspension event", "user_id", targetID, "error", err)
	}

	s.logger.InfoContext(ctx, "user suspended",
		"user_id", targetID,
		"actor_id", actorID,
		"revoked_tokens", revoked)

	return &SuspensionResult{
		Status:        StatusSuspended,
		Reason:        reason,
		RevokedTokens: revoked,
	}, nil
}

// Unsuspend clears the suspension marker. Revoked tokens stay revoked.
func (s *Service) Unsuspend(ctx context.Context, targetID int64) (*User, error) {
	if _, err := s.GetByID(ctx, targetID); err != nil {
		return nil, err
	}

	if err := s.repo.ClearSuspension(ctx, targetID); err != nil {
		return nil, internal.NewInternalError("failed to unsuspend user", err)
	}

	s.logger.InfoContext(ctx, "user unsuspended", "user_id", targetID)
	return s.GetByID(ctx, targetID)
}

func (s *Service) Delete(ctx context.Context, actorID, targetID int64) error {
	if actorID == targetID {
		return internal.ErrSelfDeletion
	}
	if slices.Contains(s.protectedUsers, targetID) {
		return internal.ErrProtectedUser
	}

	target, err := s.GetByID(ctx, targetID)
	if err != nil {
		return err
	}

	if err := s.guardLastAdmin(ctx, target); err != nil {
		return err
	}

	if _, err := s.tokens.LogoutAll(targetID); err != nil {
		return internal.NewInternalError("failed to revoke tokens", err)
	}

	if err := s.repo.Delete(ctx, targetID); err != nil {
		return internal.NewInternalError("failed to delete user", err)
	}

	if err := s.bus.PublishSync(ctx, events.NewUserDeleted(targetID)); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish deletion event", "user_id", targetID, "error", err)
	}

	s.logger.InfoContext(ctx, "user deleted", "user_id", targetID, "actor_id", actorID)
	return nil
}

// RemoveRole detaches a single role membership. Removing the admin role
// from the last administrator is rejected.
func (s *Service) RemoveRole(ctx context.Context, targetID, roleID int64) error {
	target, err := s.GetByID(ctx, targetID)
	if err != nil {
		return err
	}

	var slug string
	for _, r := range target.Roles {
		if r.ID == roleID {
			slug = r.Slug
			break
		}
	}
	if slug == "" {
		return internal.ErrRoleNotFound
	}

	if slug == s.adminRole {
		others, err := s.repo.CountOtherUsersWithRole(ctx, s.adminRole, targetID)
		if err != nil {
			return internal.NewInternalError("failed to count administrators", err)
		}
		if others == 0 {
			return internal.ErrLastAdmin
		}
	}

	if err := s.repo.RemoveRole(ctx, targetID, roleID); err != nil {
		return internal.NewInternalError("failed to remove role", err)
	}

	s.publishRolesSynced(ctx, targetID)
	s.logger.InfoContext(ctx, "role removed from user", "user_id", targetID, "role_id", roleID)
	return nil
}

func (s *Service) LogoutAll(ctx context.Context, targetID int64) (int64, error) {
	if _, err := s.GetByID(ctx, targetID); err != nil {
		return 0, err
	}

	revoked, err := s.tokens.LogoutAll(targetID)
	if err != nil {
		return 0, internal.NewInternalError("failed to revoke tokens", err)
	}

	s.logger.InfoContext(ctx, "all sessions revoked", "user_id", targetID, "revoked_tokens", revoked)
	return revoked, nil
}

func (s *Service) ResetTwoFactor(ctx context.Context, targetID int64) error {
	if _, err := s.GetByID(ctx, targetID); err != nil {
		return err
	}

	if err := s.repo.ClearTwoFactor(ctx, targetID); err != nil {
		return internal.NewInternalError("failed to reset two-factor", err)
	}

	s.logger.InfoContext(ctx, "two-factor reset", "user_id", targetID)
	return nil
}

// guardLastAdmin rejects suspending or deleting the only user left
// holding the admin role.
func (s *Service) guardLastAdmin(ctx context.Context, target *User) error {
	if !target.HasRoleSlug(s.adminRole) {
		return nil
	}

	others, err := s.repo.CountOtherUsersWithRole(ctx, s.adminRole, target.ID)
	if err != nil {
		return internal.NewInternalError("failed to count administrators", err)
	}
	if others == 0 {
		return internal.ErrLastAdmin
	}
	return nil
}

// guardLastAdminRoleChange rejects a role sync that would strip the admin
// role from the last administrator.
func (s *Service) guardLastAdminRoleChange(ctx context.Context, current *User, newRoleIDs []int64) error {
	if !current.HasRoleSlug(s.adminRole) {
		return nil
	}

	var adminRoleID int64
	for _, r := range current.Roles {
		if r.Slug == s.adminRole {
			adminRoleID = r.ID
			break
		}
	}
	if slices.Contains(newRoleIDs, adminRoleID) {
		return nil
	}

	others, err := s.repo.CountOtherUsersWithRole(ctx, s.adminRole, current.ID)
	if err != nil {
		return internal.NewInternalError("failed to count administrators", err)
	}
	if others == 0 {
		return internal.ErrLastAdmin
	}
	return nil
}

func (s *Service) publishRolesSynced(ctx context.Context, userID int64) {
	if err := s.bus.PublishSync(ctx, events.NewUserRolesSynced(userID)); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish role sync event", "user_id", userID, "error", err)
	}
}
