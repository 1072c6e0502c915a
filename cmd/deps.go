package cmd

import (
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/wardenhq/warden/internal"
	"github.com/wardenhq/warden/internal/auth"
	authpg "github.com/wardenhq/warden/internal/auth/postgres"
	"github.com/wardenhq/warden/internal/authz"
	authzpg "github.com/wardenhq/warden/internal/authz/postgres"
	"github.com/wardenhq/warden/internal/core/events"
	"github.com/wardenhq/warden/internal/privilege"
	privilegepg "github.com/wardenhq/warden/internal/privilege/postgres"
	"github.com/wardenhq/warden/internal/role"
	rolepg "github.com/wardenhq/warden/internal/role/postgres"
	"github.com/wardenhq/warden/internal/user"
	userpg "github.com/wardenhq/warden/internal/user/postgres"
	"github.com/wardenhq/warden/pkg/logger"
)

// coreServices is the wiring shared by the HTTP server and the CLI
// commands, so both paths run the same lifecycle guards.
type coreServices struct {
	DB        *gorm.DB
	Bus       *events.EventBus
	Evaluator *authz.Evaluator
	Auth      *auth.Service
	Users     *user.Service
	Roles     *role.Service
	RoleRepo  *rolepg.Repository
	Privs     *privilege.Service
}

func buildCoreServices(cfg *internal.Config) (*coreServices, error) {
	db, err := initGormDB(cfg.Database)
	if err != nil {
		return nil, err
	}

	lg := logger.L()

	bus := events.NewEventBus(lg)
	evaluator := authz.NewEvaluator(authzpg.NewRepository(db), authz.NewCache(), lg)
	evaluator.SubscribeInvalidation(bus)

	tokenGen := auth.NewJWTTokenGenerator(
		cfg.Security.AccessTokenSecret,
		cfg.Security.AccessTokenDuration,
	)
	authService := auth.NewService(authpg.NewRepository(db), tokenGen, cfg.Security.BCryptCost)

	userService := user.NewService(
		userpg.NewRepository(db),
		authService,
		authService,
		bus,
		cfg.Dashboard.AdminRoleSlug(),
		cfg.Dashboard.Protected.Users,
		lg,
	)

	roleRepo := rolepg.NewRepository(db)
	roleService := role.NewService(roleRepo, bus, cfg.Dashboard.Protected.Roles, lg)

	privilegeService := privilege.NewService(privilegepg.NewRepository(db), roleRepo, bus, lg)

	return &coreServices{
		DB:        db,
		Bus:       bus,
		Evaluator: evaluator,
		Auth:      authService,
		Users:     userService,
		Roles:     roleService,
		RoleRepo:  roleRepo,
		Privs:     privilegeService,
	}, nil
}

func initGormDB(cfg internal.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.Source), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access underlying connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

// initDB opens the sqlx connection used by the health endpoint.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
