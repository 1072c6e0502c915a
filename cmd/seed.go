package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with the default roles, privileges, and admin user",
	Long:  `Seed the database with the admin role, a baseline privilege set, and an initial administrator account.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initGormDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		adminSlug := cfg.Dashboard.AdminRoleSlug()

		roles := []struct {
			Name string
			Slug string
		}{
			{"Administrator", adminSlug},
			{"Editor", "editor"},
			{"Viewer", "viewer"},
		}

		for _, r := range roles {
			var id int64
			row := db.Raw("SELECT id FROM roles WHERE slug = ?", r.Slug).Row()
			if err := row.Scan(&id); err == nil {
				continue
			}
			if err := db.Exec("INSERT INTO roles (name, slug, created_at, updated_at) VALUES (?, ?, now(), now())", r.Name, r.Slug).Error; err != nil {
				log.Fatalf("failed to insert role %s: %v", r.Slug, err)
			}
			fmt.Println("Seeded role:", r.Slug)
		}

		privileges := []struct {
			Name string
			Slug string
			Desc string
		}{
			{"Manage Users", "manage-users", "Create, update, suspend, and delete users"},
			{"Manage Roles", "manage-roles", "Create and update roles and their privileges"},
			{"Manage Privileges", "manage-privileges", "Create and update privileges"},
			{"View Dashboard", "view-dashboard", "Read access to the dashboard"},
		}

		for _, p := range privileges {
			var id int64
			row := db.Raw("SELECT id FROM privileges WHERE slug = ?", p.Slug).Row()
			if err := row.Scan(&id); err == nil {
				continue
			}
			if err := db.Exec("INSERT INTO privileges (name, slug, description, created_at, updated_at) VALUES (?, ?, ?, now(), now())", p.Name, p.Slug, p.Desc).Error; err != nil {
				log.Fatalf("failed to insert privilege %s: %v", p.Slug, err)
			}
			fmt.Println("Seeded privilege:", p.Slug)
		}

		var adminRoleID int64
		if err := db.Raw("SELECT id FROM roles WHERE slug = ?", adminSlug).Row().Scan(&adminRoleID); err != nil {
			log.Fatalf("failed to lookup admin role: %v", err)
		}

		for _, p := range privileges {
			var pid int64
			if err := db.Raw("SELECT id FROM privileges WHERE slug = ?", p.Slug).Row().Scan(&pid); err != nil {
				log.Fatalf("privilege not found after insert %s: %v", p.Slug, err)
			}
			var exists int
			if err := db.Raw("SELECT 1 FROM privilege_role WHERE role_id = ? AND privilege_id = ?", adminRoleID, pid).Row().Scan(&exists); err == nil {
				continue
			}
			if err := db.Exec("INSERT INTO privilege_role (privilege_id, role_id) VALUES (?, ?)", pid, adminRoleID).Error; err != nil {
				log.Fatalf("failed to attach privilege %s to admin role: %v", p.Slug, err)
			}
		}
		fmt.Println("Attached all privileges to role:", adminSlug)

		seedAdminUser(db, adminRoleID)
	},
}

func seedAdminUser(db *gorm.DB, adminRoleID int64) {
	adminEmail := "admin@warden.local"

	var userID int64
	row := db.Raw("SELECT id FROM users WHERE email = ?", adminEmail).Row()
	if err := row.Scan(&userID); err != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("failed to hash admin password: %v", err)
		}
		if err := db.Exec("INSERT INTO users (name, email, password_hash, created_at, updated_at) VALUES (?, ?, ?, now(), now())", "Administrator", adminEmail, string(hash)).Error; err != nil {
			log.Fatalf("failed to insert admin user: %v", err)
		}
		if err := db.Raw("SELECT id FROM users WHERE email = ?", adminEmail).Row().Scan(&userID); err != nil {
			log.Fatalf("failed to lookup admin user id: %v", err)
		}
		fmt.Println("Seeded admin user:", adminEmail)
	}

	var exists int
	if err := db.Raw("SELECT 1 FROM role_user WHERE user_id = ? AND role_id = ?", userID, adminRoleID).Row().Scan(&exists); err == nil {
		return
	}
	if err := db.Exec("INSERT INTO role_user (role_id, user_id) VALUES (?, ?)", adminRoleID, userID).Error; err != nil {
		log.Fatalf("failed to grant admin role: %v", err)
	}
	fmt.Println("Granted admin role to:", adminEmail)
}
