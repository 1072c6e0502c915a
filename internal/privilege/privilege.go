package privilege

import (
	"context"
	"time"

	roleDatamodel "github.com/wardenhq/warden/internal/core/datamodel/role"
)

type Privilege struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description,omitempty"`
	Roles       []RoleRef `json:"roles"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type RoleRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type ListFilter struct {
	Search  string
	Page    int
	PerPage int
}

// PurgeResult reports how many privileges and attachments a purge
// removed.
type PurgeResult struct {
	DeletedPrivileges int64 `json:"deleted_privileges"`
	DetachedRoles     int64 `json:"detached_roles"`
}

type ServiceAPI interface {
	List(ctx context.Context, filter ListFilter) ([]Privilege, int64, error)
	GetByID(ctx context.Context, id int64) (*Privilege, error)
	Create(ctx context.Context, dto CreatePrivilegeDTO) (*Privilege, error)
	Update(ctx context.Context, id int64, dto UpdatePrivilegeDTO) (*Privilege, error)
	Delete(ctx context.Context, id int64) error
	Purge(ctx context.Context) (*PurgeResult, error)
}

type RepositoryAPI interface {
	List(ctx context.Context, filter ListFilter) ([]Privilege, int64, error)
	GetByID(ctx context.Context, id int64) (*Privilege, error)
	SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
	Create(ctx context.Context, dm *roleDatamodel.Privilege, roleIDs []int64) error
	Update(ctx context.Context, dm *roleDatamodel.Privilege) error
	SyncRoles(ctx context.Context, privilegeID int64, roleIDs []int64) error
	Delete(ctx context.Context, privilegeID int64) error
	Purge(ctx context.Context) (deletedPrivileges, detachedRoles int64, err error)
}
