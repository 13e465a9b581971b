package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/carpool/config"
	"github.com/Domenick1991/carpool/internal/bootstrap"
	"github.com/Domenick1991/carpool/internal/cache"
	"github.com/Domenick1991/carpool/internal/docstore"
	"github.com/Domenick1991/carpool/internal/notify"
	"github.com/Domenick1991/carpool/internal/repository"
	"github.com/Domenick1991/carpool/internal/service/bookings"
	"github.com/Domenick1991/carpool/internal/service/rides"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	store := docstore.NewPostgresStore(pool)
	if err := store.Init(ctx); err != nil {
		log.Fatalf("init document store: %v", err)
	}

	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Rides.CacheTTLSeconds)*time.Second)

	rideRepo := repository.NewRideRepository(store)
	bookingRepo := repository.NewBookingRepository(store)
	notificationRepo := repository.NewNotificationRepository(store)
	outbox := notify.NewOutbox(notificationRepo)

	grace := time.Duration(cfg.Rides.ExpiryGraceMinutes) * time.Minute
	rideService := rides.NewRideService(rideRepo, bookingRepo, redisCache, outbox, grace)
	bookingService := bookings.NewBookingService(
		bookingRepo,
		rideRepo,
		rideService,
		redisCache,
		outbox,
		time.Duration(cfg.Rides.BookingLockSeconds)*time.Second,
		grace,
	)

	if err := bootstrap.Run(ctx, cfg, rideService, bookingService, store); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
