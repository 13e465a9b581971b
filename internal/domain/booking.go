package domain

import "time"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

func (s BookingStatus) Terminal() bool {
	return s == BookingStatusCancelled || s == BookingStatusCompleted
}

type Booking struct {
	ID          string `json:"id"`
	RideID      string `json:"rideId"`
	PassengerID string `json:"passengerId"`
	SeatsBooked int    `json:"seatsBooked"`
	// Price at booking time, in the smallest currency unit. Fixed for the
	// life of the booking even if the ride is later repriced.
	AmountToPayDriver int64         `json:"amountToPayDriver"`
	Status            BookingStatus `json:"status"`
	BookedAt          time.Time     `json:"bookedAt"`

	CancelledAt        *time.Time `json:"cancelledAt,omitempty"`
	CancellationReason string     `json:"cancellationReason,omitempty"`
	CancelledBy        string     `json:"cancelledBy,omitempty"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
