package postgres

import (
	"context"

	"github.com/wardenhq/warden/internal/authz"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) authz.RepositoryAPI {
	return &Repository{db: db}
}

// GrantsForUser loads the user's role memberships and the union of
// privileges reachable through them.
func (r *Repository) GrantsForUser(ctx context.Context, userID int64) (*authz.Grants, error) {
	grants := &authz.Grants{}

	rows, err := r.db.WithContext(ctx).
		Raw(`SELECT r.id, r.slug
		     FROM roles r
		     JOIN role_user ru ON ru.role_id = r.id
		     WHERE ru.user_id = ?`, userID).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var slug string
		if err := rows.Scan(&id, &slug); err != nil {
			return nil, err
		}
		grants.RoleIDs = append(grants.RoleIDs, id)
		grants.Roles = append(grants.Roles, slug)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	privRows, err := r.db.WithContext(ctx).
		Raw(`SELECT DISTINCT p.slug
		     FROM privileges p
		     JOIN privilege_role pr ON pr.privilege_id = p.id
		     JOIN role_user ru ON ru.role_id = pr.role_id
		     WHERE ru.user_id = ?`, userID).Rows()
	if err != nil {
		return nil, err
	}
	defer privRows.Close()

	for privRows.Next() {
		var slug string
		if err := privRows.Scan(&slug); err != nil {
			return nil, err
		}
		grants.Privileges = append(grants.Privileges, slug)
	}
	if err := privRows.Err(); err != nil {
		return nil, err
	}

	return grants, nil
}
