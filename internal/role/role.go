package role

import (
	"context"
	"strings"
	"time"
	"unicode"

	roleDatamodel "github.com/wardenhq/warden/internal/core/datamodel/role"
)

type Role struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name"`
	Slug       string         `json:"slug"`
	Privileges []PrivilegeRef `json:"privileges"`
	UserCount  int64          `json:"user_count"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// PrivilegeRef is the privilege projection embedded in role payloads.
type PrivilegeRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type ListFilter struct {
	Search  string
	Page    int
	PerPage int
}

type ServiceAPI interface {
	List(ctx context.Context, filter ListFilter) ([]Role, int64, error)
	GetByID(ctx context.Context, id int64) (*Role, error)
	Create(ctx context.Context, dto CreateRoleDTO) (*Role, error)
	Update(ctx context.Context, id int64, dto UpdateRoleDTO) (*Role, error)
	Delete(ctx context.Context, id int64) error
	AttachPrivilege(ctx context.Context, roleID, privilegeID int64) error
	DetachPrivilege(ctx context.Context, roleID, privilegeID int64) error
}

type RepositoryAPI interface {
	List(ctx context.Context, filter ListFilter) ([]Role, int64, error)
	GetByID(ctx context.Context, id int64) (*Role, error)
	SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
	Create(ctx context.Context, dm *roleDatamodel.Role, privilegeIDs []int64) error
	Update(ctx context.Context, dm *roleDatamodel.Role) error
	SyncPrivileges(ctx context.Context, roleID int64, privilegeIDs []int64) error
	AttachPrivilege(ctx context.Context, roleID, privilegeID int64) error
	DetachPrivilege(ctx context.Context, roleID, privilegeID int64) error
	Delete(ctx context.Context, roleID int64) error
	UserIDsWithRole(ctx context.Context, roleID int64) ([]int64, error)
}

// Slugify derives a stable slug from a display name: lowercased, runs of
// non-alphanumerics collapsed to single hyphens.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastHyphen = false
		} else if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
