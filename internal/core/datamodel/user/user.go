package user

import "time"

type User struct {
	ID                     int64      `gorm:"primaryKey"`
	Name                   string     `gorm:"column:name;not null"`
	Email                  string     `gorm:"column:email;uniqueIndex;not null"`
	PasswordHash           string     `gorm:"column:password_hash;not null"`
	SuspendedAt            *time.Time `gorm:"column:suspended_at"`
	SuspensionReason       *string    `gorm:"column:suspension_reason"`
	TwoFactorSecret        *string    `gorm:"column:two_factor_secret"`
	TwoFactorRecoveryCodes *string    `gorm:"column:two_factor_recovery_codes"`
	TwoFactorConfirmedAt   *time.Time `gorm:"column:two_factor_confirmed_at"`
	CreatedAt              time.Time  `gorm:"column:created_at"`
	UpdatedAt              time.Time  `gorm:"column:updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsSuspended() bool {
	return u.SuspendedAt != nil
}

// Token is an issued API credential. The access token itself is a signed
// JWT; its jti claim must match a live row here, so deleting rows revokes
// the credential.
type Token struct {
	ID         int64      `gorm:"primaryKey"`
	UserID     int64      `gorm:"column:user_id;not null;index"`
	Name       string     `gorm:"column:name;not null"`
	JTI        string     `gorm:"column:jti;uniqueIndex;not null"`
	LastUsedAt *time.Time `gorm:"column:last_used_at"`
	CreatedAt  time.Time  `gorm:"column:created_at"`
}

func (Token) TableName() string {
	return "tokens"
}
