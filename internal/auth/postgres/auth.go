package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wardenhq/warden/internal/auth"
	userDatamodel "github.com/wardenhq/warden/internal/core/datamodel/user"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetCredentials(email string) (*auth.Credentials, error) {
	var creds auth.Credentials
	var suspendedAt sql.NullTime

	row := r.db.Raw(`SELECT id, password_hash, suspended_at FROM users WHERE email = ?`, email).Row()
	if err := row.Scan(&creds.UserID, &creds.PasswordHash, &suspendedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user not found")
		}
		return nil, err
	}

	creds.Suspended = suspendedAt.Valid
	return &creds, nil
}

func (r *Repository) CreateToken(token *userDatamodel.Token) error {
	return r.db.Create(token).Error
}

func (r *Repository) FindTokenByJTI(jti string) (*userDatamodel.Token, error) {
	var token userDatamodel.Token
	err := r.db.Where("jti = ?", jti).First(&token).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

func (r *Repository) TouchToken(id int64, usedAt time.Time) error {
	return r.db.Model(&userDatamodel.Token{}).
		Where("id = ?", id).
		Update("last_used_at", usedAt).Error
}

func (r *Repository) DeleteTokenByJTI(jti string) error {
	return r.db.Where("jti = ?", jti).Delete(&userDatamodel.Token{}).Error
}

func (r *Repository) DeleteTokensForUser(userID int64) (int64, error) {
	res := r.db.Where("user_id = ?", userID).Delete(&userDatamodel.Token{})
	return res.RowsAffected, res.Error
}

func (r *Repository) GetProfile(ctx context.Context, userID int64) (*auth.Profile, error) {
	var profile auth.Profile
	row := r.db.WithContext(ctx).
		Raw(`SELECT id, name, email FROM users WHERE id = ?`, userID).Row()
	if err := row.Scan(&profile.ID, &profile.Name, &profile.Email); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}
