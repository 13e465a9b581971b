package rides

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Domenick1991/carpool/internal/domain"
	"github.com/Domenick1991/carpool/internal/repository"
)

type RideUseCase interface {
	CreateRide(ctx context.Context, input CreateRideInput) (*domain.Ride, error)
	GetRide(ctx context.Context, id string) (*domain.Ride, error)
	ListRidesByDriver(ctx context.Context, driverID string) ([]domain.Ride, error)
	ListAvailableRides(ctx context.Context, filter AvailableRidesFilter) ([]domain.Ride, error)
	DriverReachedPickup(ctx context.Context, rideID, driverID string) (*domain.Ride, error)
	PassengerArrived(ctx context.Context, rideID, driverID string) (*domain.Ride, error)
	StartTrip(ctx context.Context, rideID, driverID, estimatedArrival string) (*domain.Ride, error)
	ArriveAtDestination(ctx context.Context, rideID, driverID string) (*domain.Ride, error)
	CollectPayment(ctx context.Context, rideID, driverID string) (*domain.Ride, error)
	CancelRide(ctx context.Context, rideID, reason, driverID string) (*domain.Ride, error)
	RecalculateAvailableSeats(ctx context.Context, rideID string) (*domain.Ride, error)
	ExpireOverdueRides(ctx context.Context) ([]domain.Ride, error)
	AutoCompleteDueRides(ctx context.Context) ([]domain.Ride, error)
}

type Cache interface {
	GetAvailableRides(ctx context.Context) ([]domain.Ride, error)
	SetAvailableRides(ctx context.Context, rides []domain.Ride) error
	InvalidateAvailableRides(ctx context.Context) error
}

type Notifier interface {
	Notify(ctx context.Context, userID string, typ domain.NotificationType, title, message, relatedID string) error
}

type CreateRideInput struct {
	DriverID      string           `json:"driver_id"`
	VehicleID     string           `json:"vehicle_id"`
	StartLocation domain.Location  `json:"start_location"`
	EndLocation   domain.Location  `json:"end_location"`
	Direction     domain.Direction `json:"direction"`
	DepartureTime time.Time        `json:"departure_time"`
	TotalSeats    int              `json:"total_seats"`
	CostPerSeat   int64            `json:"cost_per_seat"`
}

type AvailableRidesFilter struct {
	Direction domain.Direction
}

type RideService struct {
	rides    repository.RideRepository
	bookings repository.BookingRepository
	cache    Cache
	notifier Notifier
	grace    time.Duration
	now      func() time.Time
}

type RideServiceOption func(*RideService)

func WithClock(now func() time.Time) RideServiceOption {
	return func(s *RideService) { s.now = now }
}

func NewRideService(
	rides repository.RideRepository,
	bookings repository.BookingRepository,
	cache Cache,
	notifier Notifier,
	grace time.Duration,
	opts ...RideServiceOption,
) *RideService {
	s := &RideService{
		rides:    rides,
		bookings: bookings,
		cache:    cache,
		notifier: notifier,
		grace:    grace,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RideService) CreateRide(ctx context.Context, input CreateRideInput) (*domain.Ride, error) {
	if input.TotalSeats <= 0 {
		return nil, fmt.Errorf("%w: total seats must be positive", domain.ErrValidation)
	}
	if input.CostPerSeat < 0 {
		return nil, fmt.Errorf("%w: cost per seat cannot be negative", domain.ErrValidation)
	}
	if !input.DepartureTime.After(s.now()) {
		return nil, fmt.Errorf("%w: departure time must be in the future", domain.ErrValidation)
	}
	if input.StartLocation.ID == input.EndLocation.ID {
		return nil, fmt.Errorf("%w: start and end location must differ", domain.ErrValidation)
	}
	if !input.Direction.Valid() {
		return nil, fmt.Errorf("%w: unknown direction %q", domain.ErrValidation, input.Direction)
	}

	ride := &domain.Ride{
		DriverID:       input.DriverID,
		VehicleID:      input.VehicleID,
		StartLocation:  input.StartLocation,
		EndLocation:    input.EndLocation,
		Direction:      input.Direction,
		DepartureTime:  input.DepartureTime,
		TotalSeats:     input.TotalSeats,
		AvailableSeats: input.TotalSeats,
		CostPerSeat:    input.CostPerSeat,
		Status:         domain.RideStatusAvailable,
	}
	if err := s.rides.Create(ctx, ride); err != nil {
		return nil, err
	}
	s.invalidateCache(ctx)
	return ride, nil
}

func (s *RideService) GetRide(ctx context.Context, id string) (*domain.Ride, error) {
	return s.rides.Get(ctx, id)
}

func (s *RideService) ListRidesByDriver(ctx context.Context, driverID string) ([]domain.Ride, error) {
	return s.rides.ListByDriver(ctx, driverID)
}

func (s *RideService) ListAvailableRides(ctx context.Context, filter AvailableRidesFilter) ([]domain.Ride, error) {
	unfiltered := filter == AvailableRidesFilter{}
	if s.cache != nil && unfiltered {
		if cached, err := s.cache.GetAvailableRides(ctx); err == nil && cached != nil {
			return cached, nil
		}
	}

	rides, err := s.rides.ListAvailable(ctx, s.now().Add(-s.grace), filter.Direction)
	if err != nil {
		return nil, err
	}
	if s.cache != nil && unfiltered {
		_ = s.cache.SetAvailableRides(ctx, rides)
	}
	return rides, nil
}

func (s *RideService) DriverReachedPickup(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	return s.transition(ctx, rideID, driverID, domain.RideStatusDriverReachedPickup, map[string]any{
		"pickupReachedAt": s.now(),
	})
}

func (s *RideService) PassengerArrived(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	return s.transition(ctx, rideID, driverID, domain.RideStatusPassengerArrived, map[string]any{
		"passengerArrivedAt": s.now(),
	})
}

func (s *RideService) StartTrip(ctx context.Context, rideID, driverID, estimatedArrival string) (*domain.Ride, error) {
	if _, err := domain.ParseETA(estimatedArrival, s.now()); err != nil {
		return nil, err
	}
	return s.transition(ctx, rideID, driverID, domain.RideStatusTripStarted, map[string]any{
		"tripStartedAt":        s.now(),
		"estimatedArrivalTime": estimatedArrival,
	})
}

func (s *RideService) ArriveAtDestination(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	return s.transition(ctx, rideID, driverID, domain.RideStatusDestinationReached, map[string]any{
		"destinationReachedAt": s.now(),
	})
}

// CollectPayment closes out the ride: status COMPLETED, and every confirmed
// booking on it flips to completed with the passenger notified.
func (s *RideService) CollectPayment(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	now := s.now()
	ride, err := s.transition(ctx, rideID, driverID, domain.RideStatusCompleted, map[string]any{
		"paymentCollected": true,
		"rideCompletedAt":  now,
	})
	if err != nil {
		return nil, err
	}

	confirmed, err := s.bookings.ListByRideAndStatus(ctx, rideID, domain.BookingStatusConfirmed)
	if err != nil {
		return nil, err
	}
	for _, b := range confirmed {
		if _, err := s.bookings.Update(ctx, b.ID, map[string]any{
			"status":      domain.BookingStatusCompleted,
			"completedAt": now,
		}); err != nil {
			log.Printf("rides: complete booking %s on ride %s: %v", b.ID, rideID, err)
			continue
		}
		s.notify(ctx, b.PassengerID, domain.NotificationRideCompleted,
			"Ride completed",
			"Your ride has been completed. Please rate your driver.",
			rideID)
	}
	return ride, nil
}

// CancelRide is driver-initiated and only legal before execution starts.
// Every active booking on the ride is cancelled and its passenger told why;
// the driver gets a single confirmation.
func (s *RideService) CancelRide(ctx context.Context, rideID, reason, driverID string) (*domain.Ride, error) {
	ride, err := s.rides.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.DriverID != driverID {
		return nil, fmt.Errorf("%w: only the driver can cancel this ride", domain.ErrForbidden)
	}
	if !ride.Status.Bookable() {
		return nil, fmt.Errorf("%w: cannot cancel a ride in status %s", domain.ErrInvalidTransition, ride.Status)
	}

	now := s.now()
	updated, err := s.rides.Update(ctx, rideID, map[string]any{
		"status":             domain.RideStatusExpired,
		"cancelledAt":        now,
		"cancellationReason": reason,
		"cancelledBy":        driverID,
	})
	if err != nil {
		return nil, err
	}
	s.invalidateCache(ctx)

	active, err := s.bookings.ListByRideAndStatus(ctx, rideID,
		domain.BookingStatusConfirmed, domain.BookingStatusPending)
	if err != nil {
		return nil, err
	}
	cascadeReason := "Ride cancelled by driver: " + reason
	for _, b := range active {
		if _, err := s.bookings.Update(ctx, b.ID, map[string]any{
			"status":             domain.BookingStatusCancelled,
			"cancelledAt":        now,
			"cancellationReason": cascadeReason,
			"cancelledBy":        string(domain.RoleDriver),
		}); err != nil {
			log.Printf("rides: cancel booking %s on ride %s: %v", b.ID, rideID, err)
			continue
		}
		s.notify(ctx, b.PassengerID, domain.NotificationRideCancelled,
			"Ride cancelled", cascadeReason, rideID)
	}
	s.notify(ctx, driverID, domain.NotificationRideCancelled,
		"Ride cancelled",
		fmt.Sprintf("Your ride was cancelled and %d passenger(s) were informed.", len(active)),
		rideID)
	return updated, nil
}

// RecalculateAvailableSeats is the only writer of availableSeats after ride
// creation. It derives the seat count from confirmed bookings and flips
// between AVAILABLE and BOOKED; any other status is left alone. Safe to
// call redundantly.
func (s *RideService) RecalculateAvailableSeats(ctx context.Context, rideID string) (*domain.Ride, error) {
	ride, err := s.rides.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}

	confirmed, err := s.bookings.ListByRideAndStatus(ctx, rideID, domain.BookingStatusConfirmed)
	if err != nil {
		return nil, err
	}
	booked := 0
	for _, b := range confirmed {
		booked += b.SeatsBooked
	}

	available := ride.TotalSeats - booked
	if available < 0 {
		log.Printf("rides: ride %s oversubscribed (%d seats over %d), clamping", rideID, booked, ride.TotalSeats)
		available = 0
	}

	patch := map[string]any{}
	if available != ride.AvailableSeats {
		patch["availableSeats"] = available
	}
	switch {
	case ride.Status == domain.RideStatusAvailable && booked > 0:
		patch["status"] = domain.RideStatusBooked
	case ride.Status == domain.RideStatusBooked && booked == 0:
		patch["status"] = domain.RideStatusAvailable
	}
	if len(patch) == 0 {
		return ride, nil
	}

	updated, err := s.rides.Update(ctx, rideID, patch)
	if err != nil {
		return nil, err
	}
	s.invalidateCache(ctx)
	return updated, nil
}

// ExpireOverdueRides flips AVAILABLE rides past departure plus grace to
// EXPIRED. Rides that moved past AVAILABLE since the query are skipped, so
// a booking that wins the race is never re-expired.
func (s *RideService) ExpireOverdueRides(ctx context.Context) ([]domain.Ride, error) {
	overdue, err := s.rides.ListExpiredBefore(ctx, s.now().Add(-s.grace))
	if err != nil {
		return nil, err
	}

	var expired []domain.Ride
	for _, r := range overdue {
		current, err := s.rides.Get(ctx, r.ID)
		if err != nil {
			log.Printf("rides: expire ride %s: %v", r.ID, err)
			continue
		}
		if current.Status != domain.RideStatusAvailable {
			continue
		}
		updated, err := s.rides.Update(ctx, r.ID, map[string]any{
			"status": domain.RideStatusExpired,
		})
		if err != nil {
			log.Printf("rides: expire ride %s: %v", r.ID, err)
			continue
		}
		expired = append(expired, *updated)
	}
	if len(expired) > 0 {
		s.invalidateCache(ctx)
	}
	return expired, nil
}

// AutoCompleteDueRides closes out active rides whose driver-entered ETA has
// passed, as if the driver had reported arrival and collected payment.
// Terminal rides are never touched, so repeated sweeps are no-ops.
func (s *RideService) AutoCompleteDueRides(ctx context.Context) ([]domain.Ride, error) {
	candidates, err := s.rides.ListAutoCompletable(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var completed []domain.Ride
	for _, r := range candidates {
		if r.EstimatedArrivalTime == "" {
			continue
		}
		arrival, err := domain.ParseETA(r.EstimatedArrivalTime, r.DepartureTime)
		if err != nil {
			log.Printf("rides: ride %s has unparseable ETA %q", r.ID, r.EstimatedArrivalTime)
			continue
		}
		if now.Before(arrival) {
			continue
		}

		if r.Status == domain.RideStatusTripStarted {
			if _, err := s.transition(ctx, r.ID, "", domain.RideStatusDestinationReached, map[string]any{
				"destinationReachedAt": now,
			}); err != nil {
				log.Printf("rides: auto-arrive ride %s: %v", r.ID, err)
				continue
			}
		}
		ride, err := s.CollectPayment(ctx, r.ID, "")
		if err != nil {
			log.Printf("rides: auto-complete ride %s: %v", r.ID, err)
			continue
		}
		completed = append(completed, *ride)
	}
	return completed, nil
}

// transition enforces the lifecycle order: the target status must be
// reachable from the ride's current status. An empty driverID is the
// system actor (sweeps) and skips the ownership check.
func (s *RideService) transition(ctx context.Context, rideID, driverID string, to domain.RideStatus, patch map[string]any) (*domain.Ride, error) {
	ride, err := s.rides.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if driverID != "" && ride.DriverID != driverID {
		return nil, fmt.Errorf("%w: ride belongs to another driver", domain.ErrForbidden)
	}
	if !domain.CanTransitionRide(ride.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, ride.Status, to)
	}

	patch["status"] = to
	updated, err := s.rides.Update(ctx, rideID, patch)
	if err != nil {
		return nil, err
	}
	s.invalidateCache(ctx)
	return updated, nil
}

func (s *RideService) notify(ctx context.Context, userID string, typ domain.NotificationType, title, message, relatedID string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userID, typ, title, message, relatedID); err != nil {
		log.Printf("rides: notify %s about %s: %v", userID, typ, err)
	}
}

func (s *RideService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAvailableRides(ctx); err != nil {
		log.Printf("rides: invalidate rides cache: %v", err)
	}
}

var _ RideUseCase = (*RideService)(nil)
