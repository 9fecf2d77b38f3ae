package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rme/rme/internal/config"
	"github.com/rme/rme/internal/domain/patient"
	"github.com/rme/rme/internal/domain/queue"
	"github.com/rme/rme/internal/domain/tenant"
	"github.com/rme/rme/internal/domain/user"
	"github.com/rme/rme/internal/domain/visit"
	"github.com/rme/rme/internal/platform/auth"
	"github.com/rme/rme/internal/platform/db"
	"github.com/rme/rme/internal/platform/middleware"
	"github.com/rme/rme/internal/platform/validate"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rme-server",
		Short: "Clinic front-desk API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, pool, err := loadConfigAndPool()
			if err != nil {
				return err
			}
			defer pool.Close()
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			count, err := db.NewMigrator(pool, dir).Up(context.Background())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, pool, err := loadConfigAndPool()
			if err != nil {
				return err
			}
			defer pool.Close()
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			statuses, err := db.NewMigrator(pool, dir).Status(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			subdomain, _ := cmd.Flags().GetString("subdomain")
			if name == "" || subdomain == "" {
				return fmt.Errorf("--name and --subdomain are required")
			}

			_, pool, err := loadConfigAndPool()
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := tenant.NewService(tenant.NewRepo(pool))
			t, err := svc.Create(context.Background(), name, subdomain)
			if err != nil {
				return err
			}
			fmt.Printf("Tenant created: %s (%s)\n", t.ID, t.Subdomain)
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant display name")
	createCmd.Flags().String("subdomain", "", "Tenant subdomain (lowercase)")
	cmd.AddCommand(createCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, pool, err := loadConfigAndPool()
			if err != nil {
				return err
			}
			defer pool.Close()

			tenants, err := tenant.NewService(tenant.NewRepo(pool)).List(context.Background())
			if err != nil {
				return err
			}
			for _, t := range tenants {
				fmt.Printf("%s  %-20s %s\n", t.ID, t.Subdomain, t.Name)
			}
			return nil
		},
	}
	cmd.AddCommand(listCmd)

	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed demo tenants and users",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, pool, err := loadConfigAndPool()
			if err != nil {
				return err
			}
			defer pool.Close()
			return seedDemo(context.Background(), pool)
		},
	}
}

// seedDemo creates the System and Demo Clinic tenants with a superadmin and a
// clinic admin, the same starting data the development environment expects.
// Re-running against a seeded database fails on the unique constraints rather
// than duplicating data.
func seedDemo(ctx context.Context, pool *pgxpool.Pool) error {
	tenantSvc := tenant.NewService(tenant.NewRepo(pool))
	userSvc := user.NewService(user.NewRepo(pool))

	system, err := tenantSvc.Create(ctx, "System", "system")
	if err != nil {
		return fmt.Errorf("create system tenant: %w", err)
	}
	clinic, err := tenantSvc.Create(ctx, "Demo Clinic", "clinic")
	if err != nil {
		return fmt.Errorf("create clinic tenant: %w", err)
	}

	superadmin := &user.User{
		TenantID: system.ID,
		Username: "superadmin",
		FullName: "Super Admin",
		Role:     user.RoleSuperadmin,
	}
	if err := userSvc.Create(ctx, superadmin, "password"); err != nil {
		return fmt.Errorf("create superadmin: %w", err)
	}

	clinicAdmin := &user.User{
		TenantID: clinic.ID,
		Username: "clinicadmin",
		FullName: "Clinic Admin",
		Role:     user.RoleAdmin,
	}
	if err := userSvc.Create(ctx, clinicAdmin, "password"); err != nil {
		return fmt.Errorf("create clinicadmin: %w", err)
	}

	fmt.Printf("Seeded tenants: system=%s clinic=%s\n", system.ID, clinic.ID)
	fmt.Println("Seeded users: superadmin, clinicadmin (password: password)")
	return nil
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	inTx := db.NewTxRunner(pool)

	// Repositories and services
	tenantSvc := tenant.NewService(tenant.NewRepo(pool))
	userSvc := user.NewService(user.NewRepo(pool))
	patientRepo := patient.NewRepo(pool)
	patientSvc := patient.NewService(patientRepo)
	queueSvc := queue.NewService(queue.NewRepo(pool), inTx)
	visitSvc := visit.NewService(visit.NewRepo(pool), patientRepo, queueSvc, inTx)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validate.New()

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID"},
	}))

	isHealth := func(c echo.Context) bool {
		p := c.Request().URL.Path
		return p == "/health" || p == "/health/db"
	}
	isPublic := func(c echo.Context) bool {
		return isHealth(c) || c.Request().URL.Path == "/api/v1/auth/login"
	}

	// Tenant resolution, then JWT (the token's tenant must match the
	// resolved one), then the access audit trail.
	e.Use(db.TenantMiddleware(tenantSvc, isHealth))
	e.Use(auth.JWTMiddleware([]byte(cfg.JWTSecret), isPublic))
	e.Use(middleware.Audit(logger))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// API group
	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	user.NewHandler(userSvc, cfg.JWTSecret, cfg.AccessTokenTTL).RegisterRoutes(apiV1)
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)
	visit.NewHandler(visitSvc).RegisterRoutes(apiV1)
	queue.NewHandler(queueSvc).RegisterRoutes(apiV1)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func loadConfigAndPool() (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}
