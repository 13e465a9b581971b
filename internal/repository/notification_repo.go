package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/carpool/internal/docstore"
	"github.com/Domenick1991/carpool/internal/domain"
)

const notificationsCollection = "notifications"

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListByUser(ctx context.Context, userID string) ([]domain.Notification, error)
	ListUndelivered(ctx context.Context, limit int) ([]domain.Notification, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	// WatchUndelivered streams newly written undelivered notifications.
	WatchUndelivered(ctx context.Context, fn func(domain.Notification)) (docstore.CancelFunc, error)
}

type DocNotificationRepository struct {
	store docstore.Store
}

func NewNotificationRepository(store docstore.Store) NotificationRepository {
	return &DocNotificationRepository{store: store}
}

func (r *DocNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	id, err := r.store.Create(ctx, notificationsCollection, n.ID, n)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	n.ID = id
	return nil
}

func (r *DocNotificationRepository) ListByUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	return r.query(ctx, docstore.Query{
		Where:       []docstore.Where{{Field: "userId", Op: docstore.OpEqual, Value: userID}},
		OrderBy:     "createdAt",
		OrderAsTime: true,
		Desc:        true,
	})
}

func (r *DocNotificationRepository) ListUndelivered(ctx context.Context, limit int) ([]domain.Notification, error) {
	return r.query(ctx, docstore.Query{
		Where:       []docstore.Where{{Field: "delivered", Op: docstore.OpEqual, Value: false}},
		OrderBy:     "createdAt",
		OrderAsTime: true,
		Limit:       limit,
	})
}

func (r *DocNotificationRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	err := r.store.Update(ctx, notificationsCollection, id, map[string]any{
		"delivered":   true,
		"deliveredAt": at,
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("notification %s: %w", id, domain.ErrNotFound)
	}
	return err
}

func (r *DocNotificationRepository) WatchUndelivered(ctx context.Context, fn func(domain.Notification)) (docstore.CancelFunc, error) {
	where := []docstore.Where{{Field: "delivered", Op: docstore.OpEqual, Value: false}}
	return r.store.Subscribe(ctx, notificationsCollection, where, func(ev docstore.Event) {
		if ev.Type != docstore.EventCreated {
			return
		}
		var n domain.Notification
		if err := json.Unmarshal(ev.Doc, &n); err != nil {
			return
		}
		fn(n)
	})
}

func (r *DocNotificationRepository) query(ctx context.Context, q docstore.Query) ([]domain.Notification, error) {
	raws, err := r.store.Query(ctx, notificationsCollection, q)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Notification, 0, len(raws))
	for _, raw := range raws {
		var n domain.Notification
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("decode notification: %w", err)
		}
		out = append(out, n)
	}
	return out, nil
}

var _ NotificationRepository = (*DocNotificationRepository)(nil)
