// Package main is the entry point for the Foodie API server.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/load28/foodie/internal/auth"
	"github.com/load28/foodie/internal/cache"
	"github.com/load28/foodie/internal/config"
	"github.com/load28/foodie/internal/database"
	"github.com/load28/foodie/internal/handler"
	"github.com/load28/foodie/internal/middleware"
	"github.com/load28/foodie/internal/repository"
	"github.com/load28/foodie/internal/search"
	"github.com/load28/foodie/internal/service"
	"github.com/load28/foodie/internal/session"
	"github.com/load28/foodie/internal/storage"
)

func main() {
	// Setup structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Info("Starting Foodie API",
		slog.String("environment", cfg.Server.Environment),
		slog.Int("port", cfg.Server.Port),
	)

	// Connect to PostgreSQL
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	// Run migrations
	if err := db.RunMigrations(cfg.Database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Database migrations completed")

	// Connect to Redis
	rdb, err := database.NewRedis(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()
	logger.Info("Connected to Redis")

	ctx := context.Background()

	// Object storage for image renditions
	store, err := storage.NewObjectStore(ctx, cfg.AWS)
	if err != nil {
		log.Fatalf("Failed to configure object storage: %v", err)
	}

	// Search cluster; the index is created on first boot
	searchClient, err := search.NewClient(cfg.Search)
	if err != nil {
		log.Fatalf("Failed to connect to Elasticsearch: %v", err)
	}
	if err := searchClient.EnsureIndex(ctx); err != nil {
		log.Fatalf("Failed to ensure search index: %v", err)
	}
	searchService := search.NewService(searchClient)
	logger.Info("Search index ready", slog.String("index", searchClient.Index()))

	// Repositories
	pool := db.Pool()
	userRepo := repository.NewUserRepository(pool)
	providerRepo := repository.NewProviderRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	postRepo := repository.NewPostRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)
	friendRepo := repository.NewFriendRepository(pool)

	// Auth plumbing
	sessions := session.NewStore(rdb, cfg.Auth.SessionTTL)
	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry)
	cipher, err := auth.NewTokenCipher(cfg.Auth.OAuthEncryptionKey)
	if err != nil {
		log.Fatalf("Failed to initialize token cipher: %v", err)
	}
	states := auth.NewStateManager(rdb)
	kakao := auth.NewKakaoClient(cfg.Kakao)

	// Services
	friendCache := cache.NewFriendCache(rdb)
	authService := service.NewAuthService(userRepo, providerRepo, auditRepo, postRepo, friendRepo, sessions, tokens, cipher, states, kakao, searchService, friendCache, logger)
	friendService := service.NewFriendService(friendRepo, userRepo, postRepo, friendCache, logger)
	postService := service.NewPostService(postRepo, commentRepo, userRepo, store, searchService, logger)

	// Handlers
	authHandler := handler.NewAuthHandler(authService)
	postHandler := handler.NewPostHandler(postService)
	friendHandler := handler.NewFriendHandler(friendService)
	userHandler := handler.NewUserHandler(postService)
	searchHandler := handler.NewSearchHandler(searchService, friendService)

	// Setup router
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())
	r.Use(middleware.Metrics())
	r.Use(chimiddleware.Timeout(30 * time.Second))

	// Health check endpoints (no auth required)
	r.Get("/health", healthHandler())
	r.Get("/ready", readyHandler(db, rdb, searchClient))
	r.Handle("/metrics", promhttp.Handler())

	// API v1 routes
	authMW := middleware.Auth(sessions, tokens)
	r.Route("/v1", func(r chi.Router) {
		r.Mount("/auth", authHandler.Routes(authMW))

		r.Group(func(r chi.Router) {
			r.Use(authMW)

			r.Mount("/posts", postHandler.Routes())
			r.Mount("/friends", friendHandler.Routes())
			r.Mount("/users", userHandler.Routes())
			r.Mount("/search", searchHandler.Routes())
		})
	})

	// Create server
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  time.Minute,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("Shutting down server", slog.String("signal", sig.String()))

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	logger.Info("Server stopped gracefully")
}

// healthHandler returns a simple health check that always succeeds if the server is running.
func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}
}

// readyHandler returns a readiness check that verifies backing services.
func readyHandler(db *database.Postgres, rdb *database.Redis, es *search.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")

		if err := db.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"error","component":"database"}`))
			return
		}

		if err := rdb.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"error","component":"redis"}`))
			return
		}

		if err := es.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"error","component":"search"}`))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","database":"connected","redis":"connected","search":"connected"}`))
	}
}
