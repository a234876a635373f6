package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"hrdash/internal/domain/audit"
	"hrdash/internal/domain/auth"
	"hrdash/internal/domain/directory"
	"hrdash/internal/platform/config"
	"hrdash/internal/platform/db"
	"hrdash/internal/platform/jobs"
	"hrdash/internal/platform/logging"
	"hrdash/internal/platform/metrics"
	platformredis "hrdash/internal/platform/redis"
	audithandler "hrdash/internal/transport/http/handlers/audit"
	authhandler "hrdash/internal/transport/http/handlers/auth"
	directoryhandler "hrdash/internal/transport/http/handlers/directory"
	permissionshandler "hrdash/internal/transport/http/handlers/permissions"
	"hrdash/internal/transport/http/middleware"
)

const rateLimitWindow = time.Minute

// ReadyCheck is one dependency probed by /readyz.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps carries everything the router needs. Optional parts are nil when the
// matching backing service is not configured.
type Deps struct {
	Config      config.Config
	Directory   directoryhandler.Fetcher
	Perms       *auth.Table
	Metrics     *metrics.Collector
	Audit       audit.Recorder
	AuditStore  audithandler.Store
	Jobs        *jobs.Service
	RateCounter middleware.Counter
	Ready       []ReadyCheck
}

func Run() {
	cfg := config.Load()
	slog.SetDefault(logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat))
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	collector := metrics.New()
	jobService := jobs.New(0)
	jobService.Start(ctx)

	deps := Deps{
		Config: cfg,
		Directory: directory.NewClient(cfg.HRAPIBaseURL,
			directory.WithTimeout(cfg.HRAPITimeout),
			directory.WithLogger(slog.Default()),
			directory.WithMetrics(collector),
		),
		Perms:   auth.DefaultTable,
		Metrics: collector,
		Audit:   audit.Nop{},
		Jobs:    jobService,
	}

	if cfg.AuditEnabled() {
		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		if cfg.RunMigrations {
			if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
				return err
			}
		}
		auditService := audit.New(pool)
		deps.Audit = auditService
		deps.AuditStore = auditService
		deps.Ready = append(deps.Ready, ReadyCheck{Name: "postgres", Check: pool.Ping})
	} else {
		slog.Info("audit trail disabled", "reason", "DATABASE_URL not set")
	}

	if cfg.RedisAddr != "" {
		client, err := platformredis.NewClient(ctx, cfg)
		if err != nil {
			return err
		}
		defer client.Close()
		deps.RateCounter = middleware.NewRedisCounter(client, "hrdash:ratelimit:")
		deps.Ready = append(deps.Ready, ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}})
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.HRAPITimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server shutdown failed", "err", err)
		}
	}()

	slog.Info("hr dashboard api listening", "addr", cfg.Addr, "env", cfg.Environment, "hrApi", cfg.HRAPIBaseURL)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	perms := deps.Perms
	if perms == nil {
		perms = auth.DefaultTable
	}
	var limiterOpts []middleware.RateLimitOption
	if deps.RateCounter != nil {
		limiterOpts = append(limiterOpts, middleware.WithCounter(deps.RateCounter))
	}

	router := chi.NewRouter()
	router.Use(middleware.TrustProxy(cfg.TrustProxyHeaders))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(deps.Metrics))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins, cfg.LogLevel == "debug"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for _, check := range deps.Ready {
			if err := check.Check(ctx); err != nil {
				slog.Warn("readiness check failed", "dependency", check.Name, "err", err)
				http.Error(w, check.Name+" not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled && deps.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, rateLimitWindow, limiterOpts...))
		r.Use(middleware.SensitiveRateLimit(cfg.RateLimitPerMinute, rateLimitWindow, limiterOpts...))

		operator := auth.Operator{
			Email:        cfg.OperatorEmail,
			PasswordHash: cfg.OperatorPasswordHash,
			CompanyID:    cfg.DefaultCompanyID,
		}
		authhandler.NewHandler(operator, cfg.JWTSecret, cfg.JWTTTL, perms).RegisterRoutes(r)
		permissionshandler.NewHandler(perms).RegisterRoutes(r)
		directoryhandler.NewHandler(deps.Directory, perms, deps.Audit, deps.Jobs, cfg.DefaultCompanyID, cfg.DirectoryMaxPageSize).RegisterRoutes(r)

		if deps.AuditStore != nil {
			audithandler.NewHandler(deps.AuditStore, perms).RegisterRoutes(r)
		}
	})

	return router
}
