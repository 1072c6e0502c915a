package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	roleDatamodel "github.com/wardenhq/warden/internal/core/datamodel/role"
	userDatamodel "github.com/wardenhq/warden/internal/core/datamodel/user"
	"github.com/wardenhq/warden/internal/user"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context, filter user.ListFilter) ([]user.User, int64, error) {
	q := r.db.WithContext(ctx).Model(&userDatamodel.User{})

	if filter.Search != "" {
		needle := "%" + strings.ToLower(filter.Search) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", needle, needle)
	}
	if filter.RoleSlug != "" {
		q = q.Where(`id IN (
			SELECT ru.user_id FROM role_user ru
			JOIN roles ro ON ro.id = ru.role_id
			WHERE ro.slug = ?)`, filter.RoleSlug)
	}
	switch filter.Status {
	case user.StatusActive:
		q = q.Where("suspended_at IS NULL")
	case user.StatusSuspended:
		q = q.Where("suspended_at IS NOT NULL")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []userDatamodel.User
	offset := (filter.Page - 1) * filter.PerPage
	if err := q.Order("created_at DESC").Limit(filter.PerPage).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	users, err := r.attachRoles(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	var dm userDatamodel.User
	err := r.db.WithContext(ctx).First(&dm, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	roles, err := r.rolesForUsers(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	return user.FromDataModel(&dm, roles[id]), nil
}

func (r *Repository) EmailExists(ctx context.Context, email string, excludeID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Where("email = ? AND id <> ?", email, excludeID).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) Create(ctx context.Context, dm *userDatamodel.User, roleIDs []int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(dm).Error; err != nil {
			return err
		}
		return syncRolesTx(tx, dm.ID, roleIDs)
	})
}

func (r *Repository) Update(ctx context.Context, dm *userDatamodel.User) error {
	return r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Where("id = ?", dm.ID).
		Updates(map[string]interface{}{
			"name":          dm.Name,
			"email":         dm.Email,
			"password_hash": dm.PasswordHash,
			"updated_at":    dm.UpdatedAt,
		}).Error
}

// SyncRoles replaces the user's membership set. Deleting then inserting
// inside one transaction keeps the operation idempotent.
func (r *Repository) SyncRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&roleDatamodel.RoleUser{}).Error; err != nil {
			return err
		}
		return syncRolesTx(tx, userID, roleIDs)
	})
}

func (r *Repository) RemoveRole(ctx context.Context, userID, roleID int64) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND role_id = ?", userID, roleID).
		Delete(&roleDatamodel.RoleUser{}).Error
}

// SuspendAndRevoke sets the suspension marker and deletes the user's
// tokens in one transaction: a failed revocation rolls the marker back,
// so a user is never left suspended with live credentials. Returns the
// number of tokens revoked.
func (r *Repository) SuspendAndRevoke(ctx context.Context, userID int64, suspendedAt time.Time, reason *string) (int64, error) {
	var revoked int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&userDatamodel.User{}).
			Where("id = ?", userID).
			Updates(map[string]interface{}{
				"suspended_at":      suspendedAt,
				"suspension_reason": reason,
				"updated_at":        time.Now(),
			}).Error; err != nil {
			return err
		}

		res := tx.Where("user_id = ?", userID).Delete(&userDatamodel.Token{})
		if res.Error != nil {
			return res.Error
		}
		revoked = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return revoked, nil
}

// ClearSuspension lifts the marker. Tokens revoked on suspension are not
// restored.
func (r *Repository) ClearSuspension(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"suspended_at":      nil,
			"suspension_reason": nil,
			"updated_at":        time.Now(),
		}).Error
}

// Delete removes the user with their memberships and tokens in one
// transaction.
func (r *Repository) Delete(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&roleDatamodel.RoleUser{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&userDatamodel.Token{}).Error; err != nil {
			return err
		}
		return tx.Delete(&userDatamodel.User{}, "id = ?", userID).Error
	})
}

func (r *Repository) CountOtherUsersWithRole(ctx context.Context, roleSlug string, excludeUserID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Raw(`SELECT COUNT(DISTINCT ru.user_id)
		     FROM role_user ru
		     JOIN roles ro ON ro.id = ru.role_id
		     WHERE ro.slug = ? AND ru.user_id <> ?`, roleSlug, excludeUserID).
		Scan(&count).Error
	return count, err
}

func (r *Repository) ClearTwoFactor(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"two_factor_secret":         nil,
			"two_factor_recovery_codes": nil,
			"two_factor_confirmed_at":   nil,
			"updated_at":                time.Now(),
		}).Error
}

func syncRolesTx(tx *gorm.DB, userID int64, roleIDs []int64) error {
	seen := make(map[int64]bool, len(roleIDs))
	for _, roleID := range roleIDs {
		if seen[roleID] {
			continue
		}
		seen[roleID] = true
		if err := tx.Create(&roleDatamodel.RoleUser{RoleID: roleID, UserID: userID}).Error; err != nil {
			return fmt.Errorf("attach role %d: %w", roleID, err)
		}
	}
	return nil
}

func (r *Repository) attachRoles(ctx context.Context, rows []userDatamodel.User) ([]user.User, error) {
	ids := make([]int64, 0, len(rows))
	for _, dm := range rows {
		ids = append(ids, dm.ID)
	}

	rolesByUser, err := r.rolesForUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	users := make([]user.User, 0, len(rows))
	for i := range rows {
		users = append(users, *user.FromDataModel(&rows[i], rolesByUser[rows[i].ID]))
	}
	return users, nil
}

// rolesForUsers loads role projections for a batch of users in one query.
func (r *Repository) rolesForUsers(ctx context.Context, userIDs []int64) (map[int64][]user.RoleRef, error) {
	result := make(map[int64][]user.RoleRef, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	rows, err := r.db.WithContext(ctx).
		Raw(`SELECT ru.user_id, ro.id, ro.name, ro.slug
		     FROM role_user ru
		     JOIN roles ro ON ro.id = ru.role_id
		     WHERE ru.user_id IN ?
		     ORDER BY ro.slug`, userIDs).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var userID int64
		var ref user.RoleRef
		if err := rows.Scan(&userID, &ref.ID, &ref.Name, &ref.Slug); err != nil {
			return nil, err
		}
		result[userID] = append(result[userID], ref)
	}
	return result, rows.Err()
}
