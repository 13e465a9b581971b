package bookings

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Domenick1991/carpool/internal/domain"
	"github.com/Domenick1991/carpool/internal/repository"
)

type BookingUseCase interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error)
	GetBooking(ctx context.Context, id string) (*domain.Booking, error)
	ListBookingsByPassenger(ctx context.Context, passengerID string) ([]domain.Booking, error)
	ListBookingsByRide(ctx context.Context, rideID string) ([]domain.Booking, error)
	CancelBooking(ctx context.Context, input CancelBookingInput) (*domain.Booking, error)
}

// Cache supplies the per-ride lock that makes seat reservation atomic.
type Cache interface {
	AcquireRideLock(ctx context.Context, rideID string, ttl time.Duration) (bool, error)
	ReleaseRideLock(ctx context.Context, rideID string) error
}

// SeatReconciler recomputes a ride's availableSeats from its confirmed
// bookings. Implemented by the ride service.
type SeatReconciler interface {
	RecalculateAvailableSeats(ctx context.Context, rideID string) (*domain.Ride, error)
}

type Notifier interface {
	Notify(ctx context.Context, userID string, typ domain.NotificationType, title, message, relatedID string) error
}

type CreateBookingInput struct {
	RideID      string `json:"ride_id"`
	PassengerID string `json:"passenger_id"`
	Seats       int    `json:"seats"`
}

type CancelBookingInput struct {
	BookingID string
	Reason    string
	ActorID   string
	ActorRole domain.Role
}

type BookingService struct {
	bookings   repository.BookingRepository
	rides      repository.RideRepository
	reconciler SeatReconciler
	cache      Cache
	notifier   Notifier
	lockTTL    time.Duration
	grace      time.Duration
	now        func() time.Time
}

type BookingServiceOption func(*BookingService)

func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) { s.now = now }
}

func NewBookingService(
	bookings repository.BookingRepository,
	rides repository.RideRepository,
	reconciler SeatReconciler,
	cache Cache,
	notifier Notifier,
	lockTTL, grace time.Duration,
	opts ...BookingServiceOption,
) *BookingService {
	s := &BookingService{
		bookings:   bookings,
		rides:      rides,
		reconciler: reconciler,
		cache:      cache,
		notifier:   notifier,
		lockTTL:    lockTTL,
		grace:      grace,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateBooking reserves seats. The capacity check and the booking write
// run under the per-ride lock, so two concurrent requests cannot both spend
// the last seat; a held lock surfaces as a retryable conflict.
func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	if input.Seats <= 0 {
		return nil, fmt.Errorf("%w: seats must be positive", domain.ErrValidation)
	}

	locked := false
	if s.cache != nil {
		ok, err := s.cache.AcquireRideLock(ctx, input.RideID, s.lockTTL)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: ride is being booked, retry shortly", domain.ErrConflict)
		}
		locked = true
		defer func() {
			if locked {
				_ = s.cache.ReleaseRideLock(ctx, input.RideID)
			}
		}()
	}

	ride, err := s.rides.Get(ctx, input.RideID)
	if err != nil {
		return nil, err
	}
	if !ride.Status.Bookable() {
		return nil, fmt.Errorf("%w: ride is not open for booking", domain.ErrValidation)
	}
	if s.now().After(ride.ExpiresAt(s.grace)) {
		return nil, fmt.Errorf("%w: ride has already departed", domain.ErrValidation)
	}
	if ride.DriverID == input.PassengerID {
		return nil, fmt.Errorf("%w: drivers cannot book their own ride", domain.ErrValidation)
	}
	if input.Seats > ride.AvailableSeats {
		return nil, fmt.Errorf("%w: only %d seat(s) available", domain.ErrValidation, ride.AvailableSeats)
	}

	existing, err := s.bookings.ListByRideAndStatus(ctx, input.RideID, domain.BookingStatusConfirmed)
	if err != nil {
		return nil, err
	}
	for _, b := range existing {
		if b.PassengerID == input.PassengerID {
			return nil, fmt.Errorf("%w: you already have a booking on this ride", domain.ErrConflict)
		}
	}

	booking := &domain.Booking{
		RideID:            input.RideID,
		PassengerID:       input.PassengerID,
		SeatsBooked:       input.Seats,
		AmountToPayDriver: int64(input.Seats) * ride.CostPerSeat,
		Status:            domain.BookingStatusConfirmed,
		BookedAt:          s.now(),
	}
	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, err
	}

	if _, err := s.reconciler.RecalculateAvailableSeats(ctx, input.RideID); err != nil {
		log.Printf("bookings: reconcile seats for ride %s: %v", input.RideID, err)
	}
	s.notify(ctx, ride.DriverID, domain.NotificationBookingCreated,
		"New booking",
		fmt.Sprintf("A passenger booked %d seat(s) on your ride.", input.Seats),
		booking.ID)
	return booking, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	return s.bookings.Get(ctx, id)
}

func (s *BookingService) ListBookingsByPassenger(ctx context.Context, passengerID string) ([]domain.Booking, error) {
	return s.bookings.ListByPassenger(ctx, passengerID)
}

func (s *BookingService) ListBookingsByRide(ctx context.Context, rideID string) ([]domain.Booking, error) {
	return s.bookings.ListByRide(ctx, rideID)
}

// CancelBooking releases the seats and tells the counterparty. Cancelling a
// booking that is already cancelled or completed is a no-op returning the
// current state.
func (s *BookingService) CancelBooking(ctx context.Context, input CancelBookingInput) (*domain.Booking, error) {
	booking, err := s.bookings.Get(ctx, input.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status.Terminal() {
		return booking, nil
	}

	ride, err := s.rides.Get(ctx, booking.RideID)
	if err != nil {
		return nil, err
	}

	switch input.ActorRole {
	case domain.RolePassenger:
		if booking.PassengerID != input.ActorID {
			return nil, fmt.Errorf("%w: booking belongs to another passenger", domain.ErrForbidden)
		}
	case domain.RoleDriver:
		if ride.DriverID != input.ActorID {
			return nil, fmt.Errorf("%w: ride belongs to another driver", domain.ErrForbidden)
		}
	default:
		return nil, fmt.Errorf("%w: unknown actor role %q", domain.ErrForbidden, input.ActorRole)
	}

	updated, err := s.bookings.Update(ctx, booking.ID, map[string]any{
		"status":             domain.BookingStatusCancelled,
		"cancelledAt":        s.now(),
		"cancellationReason": input.Reason,
		"cancelledBy":        string(input.ActorRole),
	})
	if err != nil {
		return nil, err
	}

	// Exactly one notification, to the party that did not act.
	if input.ActorRole == domain.RolePassenger {
		s.notify(ctx, ride.DriverID, domain.NotificationBookingCancelled,
			"Booking cancelled",
			fmt.Sprintf("A passenger cancelled their booking: %s", input.Reason),
			booking.ID)
	} else {
		s.notify(ctx, booking.PassengerID, domain.NotificationBookingCancelled,
			"Booking cancelled",
			fmt.Sprintf("The driver cancelled your booking: %s", input.Reason),
			booking.ID)
	}

	if _, err := s.reconciler.RecalculateAvailableSeats(ctx, booking.RideID); err != nil {
		log.Printf("bookings: reconcile seats for ride %s: %v", booking.RideID, err)
	}
	return updated, nil
}

func (s *BookingService) notify(ctx context.Context, userID string, typ domain.NotificationType, title, message, relatedID string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userID, typ, title, message, relatedID); err != nil {
		log.Printf("bookings: notify %s about %s: %v", userID, typ, err)
	}
}

var _ BookingUseCase = (*BookingService)(nil)
