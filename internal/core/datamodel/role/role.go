package role

import "time"

type Role struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Slug      string    `gorm:"column:slug;uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (Role) TableName() string {
	return "roles"
}

type Privilege struct {
	ID          int64     `gorm:"primaryKey"`
	Name        string    `gorm:"column:name;not null"`
	Slug        string    `gorm:"column:slug;uniqueIndex;not null"`
	Description *string   `gorm:"column:description"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (Privilege) TableName() string {
	return "privileges"
}

// RoleUser is the user<->role membership row. A user "has a role" iff a
// row exists here.
type RoleUser struct {
	RoleID int64 `gorm:"column:role_id;primaryKey"`
	UserID int64 `gorm:"column:user_id;primaryKey"`
}

func (RoleUser) TableName() string {
	return "role_user"
}

// PrivilegeRole links privileges to roles. A user's effective privilege
// set is the union over all held roles.
type PrivilegeRole struct {
	PrivilegeID int64 `gorm:"column:privilege_id;primaryKey"`
	RoleID      int64 `gorm:"column:role_id;primaryKey"`
}

func (PrivilegeRole) TableName() string {
	return "privilege_role"
}
