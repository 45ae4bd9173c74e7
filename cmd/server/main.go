// cmd/server is the application entry point.
// It wires together all layers and starts the HTTP server.
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

	"github.com/Shivanand-hulikatti/event-booking/internal/auth"
	"github.com/Shivanand-hulikatti/event-booking/internal/cache"
	"github.com/Shivanand-hulikatti/event-booking/internal/config"
	"github.com/Shivanand-hulikatti/event-booking/internal/database"
	"github.com/Shivanand-hulikatti/event-booking/internal/handler"
	"github.com/Shivanand-hulikatti/event-booking/internal/logger"
	"github.com/Shivanand-hulikatti/event-booking/internal/messaging"
	"github.com/Shivanand-hulikatti/event-booking/internal/metrics"
	"github.com/Shivanand-hulikatti/event-booking/internal/repository"
	"github.com/Shivanand-hulikatti/event-booking/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type stores struct {
	events  service.EventStore
	ledger  service.LedgerStore
	reviews service.ReviewStore
	close   func()
}

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	ctx := context.Background()

	// ── 1. Storage ────────────────────────────────────────────────────────
	st, err := openStores(ctx, cfg)
	if err != nil {
		logger.Fatal("storage init failed", "store", cfg.Store, "error", err)
	}
	defer st.close()
	log.Info("storage ready", "store", cfg.Store)

	// ── 2. Optional collaborators ─────────────────────────────────────────
	opts := []service.BookingOption{
		service.WithMaxAttempts(cfg.Booking.MaxAttempts),
	}

	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, service.WithMetrics(metrics.New(reg)))
		metricsHandler = metrics.Handler(reg)
	}

	if cfg.Redis.Addr != "" {
		seats, err := cache.New(ctx, cfg.Redis)
		if err != nil {
			log.Warn("seats cache disabled", "error", err)
		} else {
			defer seats.Close()
			opts = append(opts, service.WithSeatsCache(seats))
			log.Info("seats cache enabled", "addr", cfg.Redis.Addr)
		}
	}

	if cfg.AMQPURL != "" {
		pub, err := messaging.Dial(cfg.AMQPURL)
		if err != nil {
			log.Warn("booking events disabled", "error", err)
		} else {
			defer pub.Close()
			opts = append(opts, service.WithPublisher(pub))
			log.Info("booking events enabled")
		}
	}

	if cfg.Auth.AdminPasswordHash == "" {
		log.Warn("ADMIN_PASSWORD_HASH not set; admin login disabled")
	}

	// ── 3. Wire up layers ─────────────────────────────────────────────────
	clock := service.SystemClock()
	bookingSvc := service.NewBookingService(st.ledger, opts...)
	eventSvc := service.NewEventService(st.events, bookingSvc, clock)
	gate := service.NewReviewGate(st.ledger, service.ReviewPolicy{
		RequireActiveBooking: cfg.Booking.ReviewRequiresActiveBooking,
	})
	reviewSvc := service.NewReviewService(st.events, st.reviews, gate, clock)

	router := handler.NewRouter(handler.RouterConfig{
		Events:   handler.NewEventHandler(eventSvc),
		Bookings: handler.NewBookingHandler(bookingSvc),
		Reviews:  handler.NewReviewHandler(reviewSvc),
		Auth: handler.NewAuthHandler(
			auth.NewAdminAuthenticator(cfg.Auth.AdminEmail, cfg.Auth.AdminPasswordHash),
			auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		),
		Verifier: auth.NewVerifier(cfg.Auth.JWTSecret),
		Metrics:  metricsHandler,
	})

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Run in background goroutine so we can listen for shutdown signal.
	go func() {
		log.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", "error", err)
		}
	}()

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		return
	}
	log.Info("server stopped")
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.Store {
	case config.StoreMemory:
		mem := repository.NewMemoryStore(cfg.Booking.LockTimeout)
		return &stores{events: mem, ledger: mem, reviews: mem, close: func() {}}, nil

	case config.StorePostgres:
		pool, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return &stores{
			events:  repository.NewEventRepository(pool),
			ledger:  repository.NewBookingRepository(pool, cfg.Booking.LockTimeout),
			reviews: repository.NewReviewRepository(pool),
			close:   pool.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown STORE %q", cfg.Store)
	}
}
