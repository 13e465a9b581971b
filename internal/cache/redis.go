package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Domenick1991/carpool/config"
	"github.com/Domenick1991/carpool/internal/domain"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client   *redis.Client
	ridesTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, ridesTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:   redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		ridesTTL: ridesTTL,
	}
}

// AcquireRideLock takes the per-ride booking lock. Booking creation runs
// read-verify-write under it so two passengers cannot spend the same seats.
func (c *RedisCache) AcquireRideLock(ctx context.Context, rideID string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, rideLockKey(rideID), "locked", ttl).Result()
}

func (c *RedisCache) ReleaseRideLock(ctx context.Context, rideID string) error {
	return c.client.Del(ctx, rideLockKey(rideID)).Err()
}

func (c *RedisCache) GetAvailableRides(ctx context.Context) ([]domain.Ride, error) {
	data, err := c.client.Get(ctx, availableRidesKey()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var rides []domain.Ride
	if err := json.Unmarshal(data, &rides); err != nil {
		return nil, err
	}
	return rides, nil
}

func (c *RedisCache) SetAvailableRides(ctx context.Context, rides []domain.Ride) error {
	payload, err := json.Marshal(rides)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, availableRidesKey(), payload, c.ridesTTL).Err()
}

func (c *RedisCache) InvalidateAvailableRides(ctx context.Context) error {
	return c.client.Del(ctx, availableRidesKey()).Err()
}

func availableRidesKey() string {
	return "cache:rides:available"
}

func rideLockKey(rideID string) string {
	return fmt.Sprintf("lock:ride:%s", rideID)
}
