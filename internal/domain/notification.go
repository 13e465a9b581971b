package domain

import "time"

type NotificationType string

const (
	NotificationBookingCreated   NotificationType = "booking_created"
	NotificationBookingCancelled NotificationType = "booking_cancelled"
	NotificationRideCancelled    NotificationType = "ride_cancelled"
	NotificationRideCompleted    NotificationType = "ride_completed"
)

// Notification is an outbox record: state transitions append one, the
// dispatcher delivers it out of band and marks it delivered. A failed
// delivery never fails the transition that produced it.
type Notification struct {
	ID          string           `json:"id"`
	UserID      string           `json:"userId"`
	Type        NotificationType `json:"type"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	RelatedID   string           `json:"relatedId,omitempty"`
	Delivered   bool             `json:"delivered"`
	DeliveredAt *time.Time       `json:"deliveredAt,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}
