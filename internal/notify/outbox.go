package notify

import (
	"context"

	"github.com/Domenick1991/carpool/internal/domain"
	"github.com/Domenick1991/carpool/internal/repository"
)

// Outbox records notifications for later delivery. Writing the record is
// the only part that happens inside a domain operation; delivery belongs
// to the Dispatcher.
type Outbox struct {
	notifications repository.NotificationRepository
}

func NewOutbox(notifications repository.NotificationRepository) *Outbox {
	return &Outbox{notifications: notifications}
}

func (o *Outbox) Notify(ctx context.Context, userID string, typ domain.NotificationType, title, message, relatedID string) error {
	return o.notifications.Create(ctx, &domain.Notification{
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Message:   message,
		RelatedID: relatedID,
	})
}
