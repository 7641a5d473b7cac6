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

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/HammerMeetNail/time2watch/internal/catalog"
	"github.com/HammerMeetNail/time2watch/internal/config"
	"github.com/HammerMeetNail/time2watch/internal/database"
	"github.com/HammerMeetNail/time2watch/internal/handlers"
	"github.com/HammerMeetNail/time2watch/internal/logging"
	"github.com/HammerMeetNail/time2watch/internal/middleware"
	"github.com/HammerMeetNail/time2watch/internal/models"
	"github.com/HammerMeetNail/time2watch/internal/services"
)

const rateLimitPurgeInterval = time.Hour

func main() {
	if err := run(); err != nil {
		logging.Error("Application error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	logger := logging.New()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warn("Unknown LOG_LEVEL; using info", map[string]interface{}{"value": cfg.Log.Level})
	}
	logger.SetLevel(level)
	logging.SetDefaultLevel(level)

	logger.Info("Starting time2watch server...", map[string]interface{}{"env": cfg.Server.Environment})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Connecting to PostgreSQL", map[string]interface{}{
		"host": cfg.Database.Host,
		"port": cfg.Database.Port,
	})
	db, err := database.NewPostgresDB(ctx, cfg.Database.DSN(), database.PoolSize{
		Max: cfg.Database.MaxConns,
		Min: cfg.Database.MinConns,
	})
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()

	version, err := database.Migrate(cfg.Database.DSN(), "migrations")
	if err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	logger.Info("Migrations completed", map[string]interface{}{"version": version})

	logger.Info("Connecting to Redis", map[string]interface{}{"addr": cfg.Redis.Addr()})
	redisDB, err := database.NewRedisDB(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisDB.Close() }()

	// Services
	dbAdapter := services.NewPoolAdapter(db.Pool)

	userService := services.NewUserService(dbAdapter)
	authService := services.NewAuthService(redisDB.Client, []byte(cfg.Session.Secret), cfg.Session.Duration)
	friendService := services.NewFriendService(dbAdapter)
	listService := services.NewListService(dbAdapter, friendService, models.RemovalPolicy(cfg.List.RemovalPolicy))
	pickService := services.NewPickService(dbAdapter, friendService)

	// A nil *EmailService must not be stored in the Mailer interface, otherwise
	// the recover handler would try to send through it.
	var mailer services.Mailer
	if emailService := services.NewEmailService(&cfg.Email); emailService != nil {
		mailer = emailService
	} else if cfg.Email.EchoRecoveredCode {
		logger.Warn("No email provider configured; recovered codes are returned in the response")
	} else {
		logger.Warn("No email provider configured; access code recovery is disabled")
	}

	clientIPs, err := middleware.NewClientIPResolver(cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("parsing trusted proxies: %w", err)
	}

	var searcher catalog.Searcher = catalog.New(cfg.Catalog.APIKey, cfg.Catalog.BaseURL, cfg.Catalog.Language, cfg.Catalog.Timeout)
	if cfg.Catalog.CacheTTL > 0 {
		searcher = catalog.NewCachedSearcher(searcher, redisDB.Client, cfg.Catalog.CacheTTL)
	}
	if cfg.Catalog.APIKey == "" {
		logger.Warn("TMDB_API_KEY is not set; catalog search is disabled")
	}

	limits := newLimiterFactory(cfg.RateLimit.Backend, dbAdapter, redisDB.Client)
	if limits.purger != nil {
		go purgeRateLimits(ctx, limits.purger, logger)
	}

	// Handlers
	healthHandler := handlers.NewHealthHandler(db, redisDB)
	authHandler := handlers.NewAuthHandler(userService, authService, mailer, cfg.Server.Secure, cfg.Session.Duration).
		WithCodeLimiter(limits.limiter(cfg.RateLimit.Login, "ratelimit:code:"), cfg.RateLimit.FailOpen).
		WithCodeEcho(cfg.Email.EchoRecoveredCode)
	profileHandler := handlers.NewProfileHandler(userService)
	friendHandler := handlers.NewFriendHandler(friendService)
	listHandler := handlers.NewListHandler(listService)
	pickHandler := handlers.NewPickHandler(pickService, userService)
	catalogHandler := handlers.NewCatalogHandler(searcher)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(authService)
	csrfMiddleware := middleware.NewCSRFMiddleware(cfg.Server.Secure)
	securityHeaders := middleware.NewSecurityHeaders(cfg.Server.Secure)
	requestLogger := middleware.NewRequestLogger(logger).WithClientIPResolver(clientIPs)

	guard := func(policy config.RateLimitPolicy, prefix string, key middleware.KeyFunc) func(http.Handler) http.Handler {
		rl := middleware.NewRateLimiter(limits.limiter(policy, "ratelimit:"), policy.MaxAttempts, prefix, key, cfg.RateLimit.FailOpen)
		return rl.Middleware
	}
	loginGuard := guard(cfg.RateLimit.Login, "login:", clientIPs.KeyByIP)
	registerGuard := guard(cfg.RateLimit.Register, "register:", clientIPs.KeyByIP)
	recoverGuard := guard(cfg.RateLimit.Recover, "recover:", clientIPs.KeyByIP)
	friendRequestGuard := guard(cfg.RateLimit.FriendRequest, "friend:", clientIPs.KeyByIdentity)

	requireAuth := authMiddleware.RequireAuth
	authed := func(h http.HandlerFunc) http.Handler { return requireAuth(h) }

	mux := http.NewServeMux()

	// Health endpoints (no auth, no rate limit)
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("GET /ready", healthHandler.Ready)
	mux.HandleFunc("GET /live", healthHandler.Live)

	mux.HandleFunc("GET /api/csrf", csrfMiddleware.Token)

	// Auth endpoints
	mux.Handle("POST /api/auth/register", registerGuard(http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST /api/auth/login", loginGuard(http.HandlerFunc(authHandler.Login)))
	mux.Handle("POST /api/auth/recover", recoverGuard(http.HandlerFunc(authHandler.Recover)))
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)
	mux.Handle("GET /api/auth/me", authed(authHandler.Me))

	mux.Handle("GET /api/profile", authed(profileHandler.Get))
	mux.Handle("PUT /api/profile", authed(profileHandler.Update))

	// Friend endpoints
	mux.Handle("GET /api/friends", authed(friendHandler.List))
	mux.Handle("POST /api/friends/requests", requireAuth(friendRequestGuard(http.HandlerFunc(friendHandler.SendRequest))))
	mux.Handle("POST /api/friends/requests/{id}/respond", authed(friendHandler.Respond))
	mux.Handle("DELETE /api/friends/requests/{id}", authed(friendHandler.CancelRequest))
	mux.Handle("DELETE /api/friends/{id}", authed(friendHandler.Remove))

	// Watchlist endpoints
	mux.Handle("GET /api/list", authed(listHandler.List))
	mux.Handle("POST /api/list", authed(listHandler.Add))
	mux.Handle("PATCH /api/list/{id}", authed(listHandler.SetWatched))
	mux.Handle("DELETE /api/list/{id}", authed(listHandler.Remove))
	mux.Handle("GET /api/users/{username}/list", authed(listHandler.FriendList))

	// Pick endpoints
	mux.Handle("POST /api/pick", authed(pickHandler.Solo))
	mux.Handle("POST /api/pick/paired", authed(pickHandler.Paired))
	mux.Handle("GET /api/pick/history", authed(pickHandler.History))

	mux.Handle("GET /api/catalog/search", authed(catalogHandler.Search))

	// Build middleware chain (outermost last)
	var handler http.Handler = mux
	handler = authMiddleware.Authenticate(handler)
	handler = csrfMiddleware.Protect(handler)
	handler = securityHeaders.Apply(handler)
	handler = requestLogger.Apply(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server listening", map[string]interface{}{"addr": addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Server is shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	server.SetKeepAlivesEnabled(false)
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}

// limiterFactory builds one limiter per guard on the configured backend.
type limiterFactory struct {
	backend string
	db      services.Querier
	redis   *redis.Client
	// purger sweeps expired postgres buckets; nil for the other backends.
	purger *services.PostgresLimiter
}

func newLimiterFactory(backend string, db services.Querier, redisClient *redis.Client) *limiterFactory {
	f := &limiterFactory{backend: backend, db: db, redis: redisClient}
	if backend == "postgres" {
		// The window is irrelevant for purging; buckets carry their own expiry.
		f.purger = services.NewPostgresLimiter(db, services.RateLimitPolicy{MaxAttempts: 1, Window: time.Minute})
	}
	return f
}

func (f *limiterFactory) limiter(policy config.RateLimitPolicy, redisPrefix string) services.Limiter {
	p := services.RateLimitPolicy(policy)
	switch f.backend {
	case "redis":
		return services.NewRedisLimiter(f.redis, p, redisPrefix)
	case "memory":
		return services.NewMemoryLimiter(p)
	default:
		return services.NewPostgresLimiter(f.db, p)
	}
}

func purgeRateLimits(ctx context.Context, purger *services.PostgresLimiter, logger *logging.Logger) {
	ticker := time.NewTicker(rateLimitPurgeInterval)
	defer ticker.Stop()

	for {
		n, err := purger.PurgeExpired(ctx)
		if err != nil && ctx.Err() == nil {
			logger.Warn("Failed to purge rate limit buckets", map[string]interface{}{"error": err.Error()})
		} else if n > 0 {
			logger.Debug("Purged rate limit buckets", map[string]interface{}{"count": n})
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
