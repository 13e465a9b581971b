package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/carpool/config"
	"github.com/Domenick1991/carpool/internal/docstore"
	"github.com/Domenick1991/carpool/internal/email"
	"github.com/Domenick1991/carpool/internal/kafka"
	"github.com/Domenick1991/carpool/internal/notify"
	"github.com/Domenick1991/carpool/internal/repository"
	"github.com/Domenick1991/carpool/internal/service/rides"
	"github.com/jackc/pgx/v5/pgxpool"
	kafkaGo "github.com/segmentio/kafka-go"
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

	rideRepo := repository.NewRideRepository(store)
	bookingRepo := repository.NewBookingRepository(store)
	notificationRepo := repository.NewNotificationRepository(store)
	outbox := notify.NewOutbox(notificationRepo)

	grace := time.Duration(cfg.Rides.ExpiryGraceMinutes) * time.Minute
	rideService := rides.NewRideService(rideRepo, bookingRepo, nil, outbox, grace)

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	dispatcher := notify.NewDispatcher(
		notificationRepo,
		producer,
		cfg.Kafka.NotificationsTopic,
		time.Duration(cfg.Worker.OutboxPollSeconds)*time.Second,
	)
	go func() {
		if err := dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("dispatcher stopped: %v", err)
		}
	}()

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
	defer consumer.Close()

	emailSender := email.NewSender()
	go func() {
		if err := consumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
			var event kafka.NotificationEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				log.Printf("decode event error: %v", err)
				return nil
			}
			return emailSender.Send(ctx, event)
		}); err != nil && ctx.Err() == nil {
			log.Printf("consumer stopped: %v", err)
		}
	}()

	expiryTicker := time.NewTicker(time.Duration(cfg.Worker.ExpirySweepMinutes) * time.Minute)
	defer expiryTicker.Stop()
	completeTicker := time.NewTicker(time.Duration(cfg.Worker.AutoCompleteSweepMinutes) * time.Minute)
	defer completeTicker.Stop()

	for {
		select {
		case <-expiryTicker.C:
			expired, err := rideService.ExpireOverdueRides(ctx)
			if err != nil {
				log.Printf("expire rides error: %v", err)
				continue
			}
			if len(expired) > 0 {
				log.Printf("expired %d rides", len(expired))
			}
		case <-completeTicker.C:
			completed, err := rideService.AutoCompleteDueRides(ctx)
			if err != nil {
				log.Printf("auto-complete rides error: %v", err)
				continue
			}
			if len(completed) > 0 {
				log.Printf("auto-completed %d rides", len(completed))
			}
		case <-ctx.Done():
			log.Printf("shutting down")
			return
		}
	}
}
