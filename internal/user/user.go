package user

import (
	"context"
	"time"

	userDatamodel "github.com/wardenhq/warden/internal/core/datamodel/user"
)

const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

type User struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	Status           string     `json:"status"`
	SuspendedAt      *time.Time `json:"suspended_at,omitempty"`
	SuspensionReason *string    `json:"suspension_reason,omitempty"`
	Roles            []RoleRef  `json:"roles"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// RoleRef is the role projection embedded in user payloads.
type RoleRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func (u *User) HasRoleSlug(slug string) bool {
	for _, r := range u.Roles {
		if r.Slug == slug {
			return true
		}
	}
	return false
}

// SuspensionResult reports the outcome of a suspend operation.
type SuspensionResult struct {
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
	RevokedTokens int64  `json:"revoked_tokens"`
}

type ListFilter struct {
	Search   string
	RoleSlug string
	Status   string
	Page     int
	PerPage  int
}

type ServiceAPI interface {
	List(ctx context.Context, filter ListFilter) ([]User, int64, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, dto CreateUserDTO) (*User, error)
	Update(ctx context.Context, id int64, dto UpdateUserDTO) (*User, error)
	Suspend(ctx context.Context, actorID, targetID int64, reason string) (*SuspensionResult, error)
	Unsuspend(ctx context.Context, targetID int64) (*User, error)
	Delete(ctx context.Context, actorID, targetID int64) error
	RemoveRole(ctx context.Context, targetID, roleID int64) error
	LogoutAll(ctx context.Context, targetID int64) (int64, error)
	ResetTwoFactor(ctx context.Context, targetID int64) error
}

type RepositoryAPI interface {
	List(ctx context.Context, filter ListFilter) ([]User, int64, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	EmailExists(ctx context.Context, email string, excludeID int64) (bool, error)
	Create(ctx context.Context, dm *userDatamodel.User, roleIDs []int64) error
	Update(ctx context.Context, dm *userDatamodel.User) error
	SyncRoles(ctx context.Context, userID int64, roleIDs []int64) error
	RemoveRole(ctx context.Context, userID, roleID int64) error
	SuspendAndRevoke(ctx context.Context, userID int64, suspendedAt time.Time, reason *string) (int64, error)
	ClearSuspension(ctx context.Context, userID int64) error
	Delete(ctx context.Context, userID int64) error
	CountOtherUsersWithRole(ctx context.Context, roleSlug string, excludeUserID int64) (int64, error)
	ClearTwoFactor(ctx context.Context, userID int64) error
}

func FromDataModel(dm *userDatamodel.User, roles []RoleRef) *User {
	status := StatusActive
	if dm.IsSuspended() {
		status = StatusSuspended
	}
	return &User{
		ID:               dm.ID,
		Name:             dm.Name,
		Email:            dm.Email,
		PasswordHash:     dm.PasswordHash,
		Status:           status,
		SuspendedAt:      dm.SuspendedAt,
		SuspensionReason: dm.SuspensionReason,
		Roles:            roles,
		CreatedAt:        dm.CreatedAt,
		UpdatedAt:        dm.UpdatedAt,
	}
}
