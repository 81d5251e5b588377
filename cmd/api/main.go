package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campuskeep/lostfound/internal/database"
	"github.com/campuskeep/lostfound/internal/http/handlers"
	mw "github.com/campuskeep/lostfound/internal/http/middleware"
	"github.com/campuskeep/lostfound/internal/notify"
	"github.com/campuskeep/lostfound/internal/repo/postgres"
	"github.com/campuskeep/lostfound/internal/service"
	"github.com/campuskeep/lostfound/internal/uploads"
	"github.com/campuskeep/lostfound/pkg/config"
	"github.com/campuskeep/lostfound/pkg/events"
	"github.com/campuskeep/lostfound/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx := context.Background()

	if err := database.Migrate(ctx, cfg.Database.URL); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	pool, err := database.Connect(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	var redisClient *redis.Client
	if opts, err := redis.ParseURL(cfg.Redis.URL); err == nil {
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	} else {
		logger.Warn("Invalid REDIS_URL, rate limiting disabled", "error", err)
	}

	var eventBus events.EventBus
	if cfg.NATS.URL != "" {
		bus, err := events.NewNATSEventBus(cfg.NATS.URL)
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		eventBus = bus
	} else {
		eventBus = events.NewNoopEventBus()
	}
	defer eventBus.Close()

	userRepo := postgres.NewUserRepository(pool)
	itemRepo := postgres.NewItemRepository(pool)

	dispatcher := notify.FromConfig(cfg)
	provider := notify.ProviderFromConfig(cfg)

	authService := service.NewAuthService(userRepo, dispatcher, provider, eventBus, cfg)
	itemService := service.NewItemService(itemRepo, eventBus)
	photoStore := uploads.NewStore(cfg.Uploads.Dir, cfg.Uploads.MaxBytes)

	h := handlers.New(authService, itemService, photoStore, cfg)

	codeLimiter := mw.NewRateLimiter(redisClient, mw.RateLimitConfig{
		Requests: 5,
		Window:   time.Minute,
	})

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)

		// One-time-code endpoints are throttled per IP to keep 6-digit
		// codes from being brute-forced.
		r.Group(func(r chi.Router) {
			r.Use(codeLimiter.Middleware())
			r.Post("/verify-email", h.VerifyEmail)
			r.Post("/resend-email-code", h.ResendEmailCode)
			r.Post("/forgot-password", h.ForgotPassword)
			r.Post("/verify-reset-code", h.VerifyResetCode)
			r.Post("/reset-password", h.ResetPassword)
		})
	})

	r.Route("/items", func(r chi.Router) {
		r.Get("/", h.ListRecentItems)
		r.Get("/search", h.SearchItems)
		r.Get("/{id}", h.GetItem)

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireJWT(cfg.Auth.JWTSecret))
			r.Post("/", h.ReportItem)
			r.Patch("/{id}/status", h.UpdateItemStatus)
		})
	})

	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.Uploads.Dir))))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting lost & found API", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-sigChan:
		case <-gctx.Done():
			return nil
		}

		logger.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}
