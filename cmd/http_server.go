package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal"
	"github.com/wardenhq/warden/internal/auth"
	authpg "github.com/wardenhq/warden/internal/auth/postgres"
	"github.com/wardenhq/warden/internal/authz"
	"github.com/wardenhq/warden/internal/privilege"
	"github.com/wardenhq/warden/internal/resource"
	"github.com/wardenhq/warden/internal/role"
	"github.com/wardenhq/warden/internal/transport/rest"
	"github.com/wardenhq/warden/internal/user"
	"github.com/wardenhq/warden/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	Core     *coreServices
	Router   *chi.Mux
	Handlers rest.Handlers
	Gate     *authz.Gate
	Logger   *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	rest.RegisterAllRoutes(
		deps.Router,
		deps.DB,
		deps.Handlers,
		deps.Gate,
		deps.Config.Dashboard.AdminRoleSlug(),
		deps.Logger,
	)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Logging.Env)
	lg := logger.L()

	sqlxDB, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	core, err := buildCoreServices(config)
	if err != nil {
		return nil, err
	}

	registry, err := resource.NewRegistry(config.Dashboard.Resources)
	if err != nil {
		return nil, fmt.Errorf("failed to compile resource config: %w", err)
	}
	storage := resource.NewStorage(config.Dashboard.StorageDir, lg)
	engine := resource.NewEngine(core.DB, registry, storage, lg)

	actors := auth.NewActorProvider(authpg.NewRepository(core.DB), core.Evaluator)

	pagination := config.Dashboard.Pagination
	handlers := rest.Handlers{
		Auth:      auth.NewHandler(core.Auth, actors),
		User:      user.NewHandler(core.Users, pagination.PerPage(pagination.Users)),
		Role:      role.NewHandler(core.Roles, pagination.PerPage(pagination.Roles)),
		Privilege: privilege.NewHandler(core.Privs, pagination.PerPage(pagination.Privileges)),
		Resource:  resource.NewHandler(engine, pagination.PerPage(pagination.Resources)),
	}

	return &Dependencies{
		Config:   config,
		DB:       sqlxDB,
		Core:     core,
		Router:   chi.NewRouter(),
		Handlers: handlers,
		Gate:     authz.NewGate(core.Evaluator, lg),
		Logger:   lg,
	}, nil
}
