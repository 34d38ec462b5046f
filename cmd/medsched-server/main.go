package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/sync/errgroup"

	"github.com/medsched/medsched/internal/config"
	"github.com/medsched/medsched/internal/domain/practitioner"
	"github.com/medsched/medsched/internal/domain/scheduling"
	"github.com/medsched/medsched/internal/domain/subject"
	"github.com/medsched/medsched/internal/platform/db"
	"github.com/medsched/medsched/internal/platform/lock"
	"github.com/medsched/medsched/internal/platform/middleware"
	"github.com/medsched/medsched/internal/platform/telemetry"
	"github.com/medsched/medsched/migrations"
)

const shutdownTimeout = 15 * time.Second

// subjectDirectory exposes the subject service to the booking engine.
type subjectDirectory struct {
	svc *subject.Service
}

func (d subjectDirectory) LookupSubject(ctx context.Context, id uuid.UUID) (string, error) {
	name, err := d.svc.DisplayName(ctx, id)
	if errors.Is(err, subject.ErrNotFound) {
		return "", fmt.Errorf("%w: %v", scheduling.ErrNotFound, err)
	}
	return name, err
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "medsched-server",
		Short: "Multi-tenant appointment scheduling API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the scheduling API server",
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
			schema, _ := cmd.Flags().GetString("schema")
			return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				schema = schemaOrDefault(schema, cfg)
				fmt.Printf("Running migrations on schema: %s\n", schema)
				count, err := db.NewMigrator(pool, migrations.FS).Up(ctx, schema)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("schema", "", "Target schema (defaults to the default tenant's schema)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				schema = schemaOrDefault(schema, cfg)
				statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx, schema)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}

				fmt.Printf("Migration status for schema: %s\n", schema)
				fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				for _, s := range statuses {
					status, appliedAt := "pending", ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
				return nil
			})
		},
	}
	statusCmd.Flags().String("schema", "", "Target schema (defaults to the default tenant's schema)")
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
		Short: "Create a tenant schema and apply every migration to it",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				fmt.Printf("Creating tenant schema: %s\n", db.SchemaName(name))
				if err := db.CreateTenantSchema(ctx, pool, name, migrations.FS); err != nil {
					return err
				}
				fmt.Println("Tenant created successfully.")
				return nil
			})
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier (alphanumeric and underscore)")
	cmd.AddCommand(createCmd)

	return cmd
}

func withPool(fn func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.UsesPostgres() {
		return fmt.Errorf("STORE=%s has no database to manage", cfg.Store)
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, cfg, pool)
}

func schemaOrDefault(schema string, cfg *config.Config) string {
	if schema != "" {
		return schema
	}
	return db.SchemaName(cfg.DefaultTenant)
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.Env)
	if cfg.IsDev() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if cfg.UsesPostgres() {
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return err
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")
	} else {
		logger.Warn().Msg("using in-memory store; data is lost on restart")
	}

	locker, closeLocker, err := newLocker(cfg)
	if err != nil {
		return err
	}
	defer closeLocker()
	logger.Info().Str("backend", locker.Backend()).Dur("wait", cfg.LockWaitTimeout).Msg("booking lock ready")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	otel.SetTextMapPropagator(propagation.TraceContext{})

	e := newServer(cfg, logger, pool, locker, reg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("store", cfg.Store).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newLocker picks the Redis locker when REDIS_URL is set so that every server process
// shares one critical section per practitioner day.
func newLocker(cfg *config.Config) (lock.Locker, func(), error) {
	if cfg.RedisURL == "" {
		return lock.NewMemory(cfg.LockWaitTimeout), func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	locker := lock.NewRedis(client, lock.RedisOptions{TTL: cfg.LockTTL, Wait: cfg.LockWaitTimeout})
	return locker, func() { _ = client.Close() }, nil
}

// newServer wires stores, services and routes. A nil pool selects the in-memory stores.
func newServer(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, locker lock.Locker, reg *prometheus.Registry) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	httpMetrics := telemetry.NewHTTPMetrics(reg)
	bookingMetrics := telemetry.NewBookingMetrics(reg)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(telemetry.MetricsMiddleware(httpMetrics))
	e.Use(telemetry.TracingMiddleware("github.com/medsched/medsched/cmd/medsched-server"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader, db.TenantHeader},
	}))

	e.GET("/health", db.HealthHandler(pool))
	e.GET("/metrics", telemetry.Handler(reg))

	apiV1 := e.Group("/api/v1",
		middleware.RequestTimeout(cfg.RequestTimeout),
		db.TenantMiddleware(pool, cfg.DefaultTenant),
		middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			BurstSize:         cfg.RateLimitBurst,
		}),
	)

	var (
		bookingRepo      scheduling.BookingRepository
		practitionerRepo practitioner.Repository
		subjectRepo      subject.Repository
	)
	if pool != nil {
		bookingRepo = scheduling.NewBookingRepoPG(pool)
		practitionerRepo = practitioner.NewRepoPG(pool)
		subjectRepo = subject.NewRepoPG(pool)
	} else {
		bookingRepo = scheduling.NewMemoryBookingRepo()
		practitionerRepo = practitioner.NewMemoryRepo()
		subjectRepo = subject.NewMemoryRepo()
	}

	practitionerSvc := practitioner.NewService(practitionerRepo, cfg.DefaultSlotMinutes, logger)
	subjectSvc := subject.NewService(subjectRepo)
	bookingSvc := scheduling.NewService(bookingRepo, practitionerSvc, subjectDirectory{svc: subjectSvc}, locker,
		scheduling.WithMetrics(bookingMetrics),
		scheduling.WithLogger(logger),
	)

	practitioner.NewHandler(practitionerSvc).RegisterRoutes(apiV1)
	subject.NewHandler(subjectSvc).RegisterRoutes(apiV1)
	scheduling.NewHandler(bookingSvc, cfg.LockWaitTimeout).RegisterRoutes(apiV1)

	return e
}
