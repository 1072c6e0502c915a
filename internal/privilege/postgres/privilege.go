package postgres

import (
	"context"
	"fmt"
	"strings"

	roleDatamodel "github.com/wardenhq/warden/internal/core/datamodel/role"
	"github.com/wardenhq/warden/internal/privilege"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context, filter privilege.ListFilter) ([]privilege.Privilege, int64, error) {
	q := r.db.WithContext(ctx).Model(&roleDatamodel.Privilege{})

	if filter.Search != "" {
		needle := "%" + strings.ToLower(filter.Search) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(slug) LIKE ? OR LOWER(COALESCE(description, '')) LIKE ?",
			needle, needle, needle)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []roleDatamodel.Privilege
	offset := (filter.Page - 1) * filter.PerPage
	if err := q.Order("created_at DESC").Limit(filter.PerPage).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	privileges, err := r.hydrate(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return privileges, total, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*privilege.Privilege, error) {
	var dm roleDatamodel.Privilege
	err := r.db.WithContext(ctx).First(&dm, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	hydrated, err := r.hydrate(ctx, []roleDatamodel.Privilege{dm})
	if err != nil {
		return nil, err
	}
	return &hydrated[0], nil
}

func (r *Repository) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&roleDatamodel.Privilege{}).
		Where("slug = ? AND id <> ?", slug, excludeID).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) Create(ctx context.Context, dm *roleDatamodel.Privilege, roleIDs []int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(dm).Error; err != nil {
			return err
		}
		return syncRolesTx(tx, dm.ID, roleIDs)
	})
}

func (r *Repository) Update(ctx context.Context, dm *roleDatamodel.Privilege) error {
	return r.db.WithContext(ctx).Model(&roleDatamodel.Privilege{}).
		Where("id = ?", dm.ID).
		Updates(map[string]interface{}{
			"name":        dm.Name,
			"description": dm.Description,
			"updated_at":  dm.UpdatedAt,
		}).Error
}

func (r *Repository) SyncRoles(ctx context.Context, privilegeID int64, roleIDs []int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("privilege_id = ?", privilegeID).Delete(&roleDatamodel.PrivilegeRole{}).Error; err != nil {
			return err
		}
		return syncRolesTx(tx, privilegeID, roleIDs)
	})
}

func (r *Repository) Delete(ctx context.Context, privilegeID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("privilege_id = ?", privilegeID).Delete(&roleDatamodel.PrivilegeRole{}).Error; err != nil {
			return err
		}
		return tx.Delete(&roleDatamodel.Privilege{}, "id = ?", privilegeID).Error
	})
}

// Purge empties the privilege table and the role attachment table in one
// transaction.
func (r *Repository) Purge(ctx context.Context) (int64, int64, error) {
	var deleted, detached int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("1 = 1").Delete(&roleDatamodel.PrivilegeRole{})
		if res.Error != nil {
			return res.Error
		}
		detached = res.RowsAffected

		res = tx.Where("1 = 1").Delete(&roleDatamodel.Privilege{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	return deleted, detached, err
}

func syncRolesTx(tx *gorm.DB, privilegeID int64, roleIDs []int64) error {
	seen := make(map[int64]bool, len(roleIDs))
	for _, roleID := range roleIDs {
		if seen[roleID] {
			continue
		}
		seen[roleID] = true
		if err := tx.Create(&roleDatamodel.PrivilegeRole{PrivilegeID: privilegeID, RoleID: roleID}).Error; err != nil {
			return fmt.Errorf("attach role %d: %w", roleID, err)
		}
	}
	return nil
}

func (r *Repository) hydrate(ctx context.Context, rows []roleDatamodel.Privilege) ([]privilege.Privilege, error) {
	result := make([]privilege.Privilege, 0, len(rows))
	if len(rows) == 0 {
		return result, nil
	}

	ids := make([]int64, 0, len(rows))
	for _, dm := range rows {
		ids = append(ids, dm.ID)
	}

	roleRows, err := r.db.WithContext(ctx).
		Raw(`SELECT pr.privilege_id, ro.id, ro.name, ro.slug
		     FROM privilege_role pr
		     JOIN roles ro ON ro.id = pr.role_id
		     WHERE pr.privilege_id IN ?
		     ORDER BY ro.slug`, ids).Rows()
	if err != nil {
		return nil, err
	}
	defer roleRows.Close()

	rolesByPrivilege := make(map[int64][]privilege.RoleRef, len(ids))
	for roleRows.Next() {
		var privilegeID int64
		var ref privilege.RoleRef
		if err := roleRows.Scan(&privilegeID, &ref.ID, &ref.Name, &ref.Slug); err != nil {
			return nil, err
		}
		rolesByPrivilege[privilegeID] = append(rolesByPrivilege[privilegeID], ref)
	}
	if err := roleRows.Err(); err != nil {
		return nil, err
	}

	for _, dm := range rows {
		result = append(result, privilege.Privilege{
			ID:          dm.ID,
			Name:        dm.Name,
			Slug:        dm.Slug,
			Description: dm.Description,
			Roles:       rolesByPrivilege[dm.ID],
			CreatedAt:   dm.CreatedAt,
			UpdatedAt:   dm.UpdatedAt,
		})
	}
	return result, nil
}
