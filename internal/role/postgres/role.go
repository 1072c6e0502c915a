package postgres

import (
	"context"
	"fmt"
	"strings"

	roleDatamodel "github.com/wardenhq/warden/internal/core/datamodel/role"
	"github.com/wardenhq/warden/internal/role"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context, filter role.ListFilter) ([]role.Role, int64, error) {
	q := r.db.WithContext(ctx).Model(&roleDatamodel.Role{})

	if filter.Search != "" {
		needle := "%" + strings.ToLower(filter.Search) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(slug) LIKE ?", needle, needle)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []roleDatamodel.Role
	offset := (filter.Page - 1) * filter.PerPage
	if err := q.Order("created_at DESC").Limit(filter.PerPage).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	roles, err := r.hydrate(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return roles, total, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*role.Role, error) {
	var dm roleDatamodel.Role
	err := r.db.WithContext(ctx).First(&dm, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	hydrated, err := r.hydrate(ctx, []roleDatamodel.Role{dm})
	if err != nil {
		return nil, err
	}
	return &hydrated[0], nil
}

func (r *Repository) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&roleDatamodel.Role{}).
		Where("slug = ? AND id <> ?", slug, excludeID).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) Create(ctx context.Context, dm *roleDatamodel.Role, privilegeIDs []int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(dm).Error; err != nil {
			return err
		}
		return syncPrivilegesTx(tx, dm.ID, privilegeIDs)
	})
}

func (r *Repository) Update(ctx context.Context, dm *roleDatamodel.Role) error {
	return r.db.WithContext(ctx).Model(&roleDatamodel.Role{}).
		Where("id = ?", dm.ID).
		Updates(map[string]interface{}{
			"name":       dm.Name,
			"updated_at": dm.UpdatedAt,
		}).Error
}

// SyncPrivileges replaces the role's privilege set inside one
// transaction.
func (r *Repository) SyncPrivileges(ctx context.Context, roleID int64, privilegeIDs []int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", roleID).Delete(&roleDatamodel.PrivilegeRole{}).Error; err != nil {
			return err
		}
		return syncPrivilegesTx(tx, roleID, privilegeIDs)
	})
}

func (r *Repository) AttachPrivilege(ctx context.Context, roleID, privilegeID int64) error {
	return r.db.WithContext(ctx).
		Create(&roleDatamodel.PrivilegeRole{PrivilegeID: privilegeID, RoleID: roleID}).Error
}

func (r *Repository) DetachPrivilege(ctx context.Context, roleID, privilegeID int64) error {
	return r.db.WithContext(ctx).
		Where("role_id = ? AND privilege_id = ?", roleID, privilegeID).
		Delete(&roleDatamodel.PrivilegeRole{}).Error
}

// Delete removes the role with its user memberships and privilege
// attachments in one transaction.
func (r *Repository) Delete(ctx context.Context, roleID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", roleID).Delete(&roleDatamodel.RoleUser{}).Error; err != nil {
			return err
		}
		if err := tx.Where("role_id = ?", roleID).Delete(&roleDatamodel.PrivilegeRole{}).Error; err != nil {
			return err
		}
		return tx.Delete(&roleDatamodel.Role{}, "id = ?", roleID).Error
	})
}

func (r *Repository) UserIDsWithRole(ctx context.Context, roleID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Raw(`SELECT user_id FROM role_user WHERE role_id = ?`, roleID).
		Scan(&ids).Error
	return ids, err
}

func syncPrivilegesTx(tx *gorm.DB, roleID int64, privilegeIDs []int64) error {
	seen := make(map[int64]bool, len(privilegeIDs))
	for _, privilegeID := range privilegeIDs {
		if seen[privilegeID] {
			continue
		}
		seen[privilegeID] = true
		if err := tx.Create(&roleDatamodel.PrivilegeRole{PrivilegeID: privilegeID, RoleID: roleID}).Error; err != nil {
			return fmt.Errorf("attach privilege %d: %w", privilegeID, err)
		}
	}
	return nil
}

// hydrate attaches privilege projections and member counts to a batch of
// roles.
func (r *Repository) hydrate(ctx context.Context, rows []roleDatamodel.Role) ([]role.Role, error) {
	result := make([]role.Role, 0, len(rows))
	if len(rows) == 0 {
		return result, nil
	}

	ids := make([]int64, 0, len(rows))
	for _, dm := range rows {
		ids = append(ids, dm.ID)
	}

	privRows, err := r.db.WithContext(ctx).
		Raw(`SELECT pr.role_id, p.id, p.name, p.slug
		     FROM privilege_role pr
		     JOIN privileges p ON p.id = pr.privilege_id
		     WHERE pr.role_id IN ?
		     ORDER BY p.slug`, ids).Rows()
	if err != nil {
		return nil, err
	}
	defer privRows.Close()

	privsByRole := make(map[int64][]role.PrivilegeRef, len(ids))
	for privRows.Next() {
		var roleID int64
		var ref role.PrivilegeRef
		if err := privRows.Scan(&roleID, &ref.ID, &ref.Name, &ref.Slug); err != nil {
			return nil, err
		}
		privsByRole[roleID] = append(privsByRole[roleID], ref)
	}
	if err := privRows.Err(); err != nil {
		return nil, err
	}

	countRows, err := r.db.WithContext(ctx).
		Raw(`SELECT role_id, COUNT(*) FROM role_user WHERE role_id IN ? GROUP BY role_id`, ids).Rows()
	if err != nil {
		return nil, err
	}
	defer countRows.Close()

	countsByRole := make(map[int64]int64, len(ids))
	for countRows.Next() {
		var roleID, count int64
		if err := countRows.Scan(&roleID, &count); err != nil {
			return nil, err
		}
		countsByRole[roleID] = count
	}
	if err := countRows.Err(); err != nil {
		return nil, err
	}

	for _, dm := range rows {
		result = append(result, role.Role{
			ID:         dm.ID,
			Name:       dm.Name,
			Slug:       dm.Slug,
			Privileges: privsByRole[dm.ID],
			UserCount:  countsByRole[dm.ID],
			CreatedAt:  dm.CreatedAt,
			UpdatedAt:  dm.UpdatedAt,
		})
	}
	return result, nil
}
