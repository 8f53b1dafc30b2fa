package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/liamwears/reeldiary/internal/auth"
	"github.com/liamwears/reeldiary/internal/config"
	"github.com/liamwears/reeldiary/internal/database"
	"github.com/liamwears/reeldiary/internal/docstore"
	"github.com/liamwears/reeldiary/internal/events"
	"github.com/liamwears/reeldiary/internal/handlers"
	"github.com/liamwears/reeldiary/internal/metrics"
	"github.com/liamwears/reeldiary/internal/middleware"
	"github.com/liamwears/reeldiary/internal/models"
	"github.com/liamwears/reeldiary/internal/services"
	"github.com/liamwears/reeldiary/internal/telemetry"
)

const version = "0.1.0"

// maxWritesPerMutation is the longest write batch a mutation issues: a
// series, a movie sharing its name, and the user mirror
const maxWritesPerMutation = 3

// writeTimeout leaves room for a ?wait=true mutation whose writes each run
// up to the remote timeout
func writeTimeout(remote time.Duration) time.Duration {
	return max(15*time.Second, maxWritesPerMutation*remote+5*time.Second)
}

// requirePostgres rejects subcommands that would only touch a throwaway
// in-memory store
func requirePostgres(cfg *config.Config, command string) error {
	if cfg.Store.Backend != config.BackendPostgres {
		return fmt.Errorf("%s requires STORE_BACKEND=%s", command, config.BackendPostgres)
	}
	return nil
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(cfg)

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			runMigrations(cfg, logger, os.Args[2:])
			return
		case "import":
			runImport(cfg, logger, os.Args[2:])
			return
		}
	}

	logger.Printf("Starting ReelDiary server in %s mode", cfg.Server.Env)

	ctx := context.Background()

	// Tracing
	traceOut := io.Discard
	if cfg.Logging.TraceStdout {
		traceOut = os.Stdout
	}
	if _, err := telemetry.InitTracer("reeldiary", version, traceOut); err != nil {
		logger.Fatalf("Failed to initialize tracer: %v", err)
	}

	// Document store
	store, db := openStore(ctx, cfg, logger)
	if db != nil {
		if err := database.NewMigrator(db.Pool).Up(ctx); err != nil {
			logger.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Initialize Redis connection
	redisClient, err := database.NewRedisClient(ctx, database.RedisConfig{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       0,
		TLS:      cfg.Redis.TLS,
	})
	if err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}

	sessionStore := database.NewSessionStore(redisClient, cfg.Session.TTL)
	colorCache := database.NewColorCache(redisClient, 0)

	publisher := events.NewPublisher(cfg.NATS.URL, logger)
	m := metrics.NewMetrics()

	// Initialize services
	policy := services.FailOpen
	if cfg.FailClosed() {
		policy = services.FailClosed
	}
	timeout := cfg.Sync.RemoteTimeout

	catalog := services.NewCatalog()
	hydrator := services.NewHydrator(store, services.HydratorConfig{
		Timeout:     timeout,
		Concurrency: cfg.Sync.HydrationConcurrency,
	}, m, logger)
	accounts := services.NewAccountService(catalog, hydrator, store, newAuthProvider(cfg, logger), timeout, logger)
	diary := services.NewDiaryService(catalog, store, publisher, services.DiaryConfig{
		Policy:  policy,
		Timeout: timeout,
	}, m, logger)
	accounts.TrackWrites(diary)
	posters := services.NewPosterService(colorCache, timeout, logger)

	var importer *services.Importer
	if cfg.TMDB.APIKey != "" {
		importer = services.NewImporter(newTMDBService(cfg), store, timeout, logger).WithCatalog(hydrator, catalog)
	}

	if err := accounts.EnsureCatalog(ctx); err != nil {
		// Retried on the next login
		logger.Printf("Failed to hydrate catalog at startup: %v", err)
	}

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(sessionStore, accounts, "session", cfg.Session.TTL, cfg.IsProduction())

	// Initialize rate limiter (100 req/min in production, relaxed elsewhere)
	maxRequests := 1000
	if cfg.IsProduction() {
		maxRequests = 100
	}
	rateLimiter := middleware.NewRateLimiter(redisClient.Client, maxRequests, time.Minute, cfg.IsProduction(), logger)

	router := &handlers.Router{
		Auth:           handlers.NewAuthHandler(accounts, sessionStore, authMiddleware, logger),
		Catalog:        handlers.NewCatalogHandler(catalog, logger),
		Diary:          handlers.NewDiaryHandler(diary, logger),
		TMDB:           handlers.NewTMDBHandler(importer, posters, logger),
		AuthMiddleware: authMiddleware,
		RateLimiter:    rateLimiter,
		Health:         healthHandler(db, redisClient),
	}

	// Create HTTP server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router.Handler(logger, m),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout(timeout),
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Printf("Server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("Server forced to shutdown: %v", err)
	}

	// Let background writes finish before the store goes away
	diary.Wait()

	if err := publisher.Close(); err != nil {
		logger.Printf("Failed to close event publisher: %v", err)
	}
	telemetry.ShutdownTracer(shutdownCtx)
	if db != nil {
		db.Close()
	}
	if err := redisClient.Close(); err != nil {
		logger.Printf("Failed to close Redis: %v", err)
	}

	logger.Println("Server exited")
}

func newLogger(cfg *config.Config) *log.Logger {
	var out io.Writer = os.Stdout
	if cfg.Logging.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.Logging.File,
			MaxSize:    cfg.Logging.MaxSizeMB,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		})
	}
	return log.New(out, "[reeldiary] ", log.LstdFlags|log.Lshortfile)
}

// openStore returns the configured document store. db is nil for the
// memory backend.
func openStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (docstore.Store, *database.DB) {
	if cfg.Store.Backend == config.BackendMemory {
		logger.Println("Using in-memory document store")
		return docstore.NewMemory(), nil
	}

	db, err := database.New(ctx, database.Config{
		URL: cfg.Store.DatabaseURL,
	})
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	return db.Documents(), db
}

func newAuthProvider(cfg *config.Config, logger *log.Logger) auth.Provider {
	if cfg.Auth.TokenURL == "" {
		logger.Println("Using in-process credential provider")
		return auth.NewMemoryProvider()
	}
	return auth.NewOAuthProvider(auth.OAuthConfig{
		TokenURL:     cfg.Auth.TokenURL,
		SignupURL:    cfg.Auth.SignupURL,
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		Timeout:      cfg.Sync.RemoteTimeout,
	})
}

func newTMDBService(cfg *config.Config) *services.TMDBService {
	return services.NewTMDBService(services.TMDBConfig{
		APIKey:       cfg.TMDB.APIKey,
		BaseURL:      cfg.TMDB.BaseURL,
		ImageBaseURL: cfg.TMDB.ImageBaseURL,
		Timeout:      cfg.Sync.RemoteTimeout,
	})
}

func healthHandler(db *database.DB, redisClient *database.RedisClient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		dbStatus := "up"
		if db == nil {
			dbStatus = "memory"
		} else if err := db.Health(r.Context()); err != nil {
			dbStatus = "down"
		}
		redisStatus := "up"
		if err := redisClient.Health(r.Context()); err != nil {
			redisStatus = "down"
		}

		if dbStatus == "down" || redisStatus == "down" {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status":"unhealthy","database":"%s","redis":"%s"}`, dbStatus, redisStatus)
			return
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","database":"%s","redis":"%s"}`, dbStatus, redisStatus)
	}
}

// runMigrations runs database migrations: migrate [up|down|status]
func runMigrations(cfg *config.Config, logger *log.Logger, args []string) {
	if err := requirePostgres(cfg, "migrate"); err != nil {
		logger.Fatal(err)
	}

	ctx := context.Background()
	db, err := database.New(ctx, database.Config{
		URL: cfg.Store.DatabaseURL,
	})
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	migrator := database.NewMigrator(db.Pool)

	cmd := "up"
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "up":
		if err := migrator.Up(ctx); err != nil {
			logger.Fatalf("Failed to run migrations: %v", err)
		}
		logger.Println("Migrations completed successfully")
	case "down":
		if err := migrator.Down(ctx); err != nil {
			logger.Fatalf("Failed to roll back migration: %v", err)
		}
		logger.Println("Rolled back last migration")
	case "status":
		migrations, err := migrator.Status(ctx)
		if err != nil {
			logger.Fatalf("Failed to read migration status: %v", err)
		}
		for _, mg := range migrations {
			state := "pending"
			if mg.Applied {
				state = "applied"
			}
			fmt.Printf("%s  %-40s %s\n", mg.Version, mg.Name, state)
		}
	default:
		logger.Fatalf("Unknown migrate command %q (want up, down or status)", cmd)
	}
}

// runImport stores one TMDB title: import movie|tv <tmdb-id>
func runImport(cfg *config.Config, logger *log.Logger, args []string) {
	kind, tmdbID, err := parseImport(cfg, args)
	if err != nil {
		logger.Fatal(err)
	}

	ctx := context.Background()
	store, db := openStore(ctx, cfg, logger)
	if db != nil {
		defer db.Close()
	}

	importer := services.NewImporter(newTMDBService(cfg), store, cfg.Sync.RemoteTimeout, logger)
	name, err := importer.Import(ctx, kind, tmdbID)
	if err != nil {
		logger.Fatalf("Failed to import %s %d: %v", kind, tmdbID, err)
	}
	logger.Printf("Imported %s/%s", kind, name)
}

func parseImport(cfg *config.Config, args []string) (models.Kind, int, error) {
	if len(args) != 2 {
		return "", 0, errors.New("usage: import movie|tv <tmdb-id>")
	}
	if err := requirePostgres(cfg, "import"); err != nil {
		return "", 0, err
	}
	if cfg.TMDB.APIKey == "" {
		return "", 0, errors.New("TMDB_KEY is required for import")
	}

	var kind models.Kind
	switch args[0] {
	case "movie":
		kind = models.KindMovies
	case "tv":
		kind = models.KindSeries
	default:
		return "", 0, fmt.Errorf("unknown import type %q (want movie or tv)", args[0])
	}
	tmdbID, err := strconv.Atoi(args[1])
	if err != nil || tmdbID <= 0 {
		return "", 0, fmt.Errorf("invalid TMDB id %q", args[1])
	}
	return kind, tmdbID, nil
}
