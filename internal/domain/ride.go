package domain

import "time"

type RideStatus string

const (
	RideStatusAvailable           RideStatus = "AVAILABLE"
	RideStatusBooked              RideStatus = "BOOKED"
	RideStatusDriverReachedPickup RideStatus = "DRIVER_REACHED_PICKUP"
	RideStatusPassengerArrived    RideStatus = "PASSENGER_ARRIVED"
	RideStatusTripStarted         RideStatus = "TRIP_STARTED"
	RideStatusDestinationReached  RideStatus = "DESTINATION_REACHED"
	RideStatusCompleted           RideStatus = "COMPLETED"
	RideStatusExpired             RideStatus = "EXPIRED"
)

// EXPIRED is the single terminal state for rides that never ran: both the
// expiry sweep and a driver cancellation land here, CancelledBy tells them
// apart.
var validRideTransitions = map[RideStatus][]RideStatus{
	RideStatusAvailable:           {RideStatusBooked, RideStatusExpired},
	RideStatusBooked:              {RideStatusAvailable, RideStatusDriverReachedPickup, RideStatusExpired},
	RideStatusDriverReachedPickup: {RideStatusPassengerArrived},
	RideStatusPassengerArrived:    {RideStatusTripStarted},
	RideStatusTripStarted:         {RideStatusDestinationReached},
	RideStatusDestinationReached:  {RideStatusCompleted},
	RideStatusCompleted:           {},
	RideStatusExpired:             {},
}

func CanTransitionRide(from, to RideStatus) bool {
	for _, next := range validRideTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s RideStatus) Terminal() bool {
	return s == RideStatusCompleted || s == RideStatusExpired
}

// Bookable reports whether passengers may still reserve seats.
func (s RideStatus) Bookable() bool {
	return s == RideStatusAvailable || s == RideStatusBooked
}

type Direction string

const (
	DirectionToOffice   Direction = "to_office"
	DirectionFromOffice Direction = "from_office"
)

func (d Direction) Valid() bool {
	return d == DirectionToOffice || d == DirectionFromOffice
}

type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
	RoleSystem    Role = "system"
)

type Location struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

type Ride struct {
	ID             string     `json:"id"`
	DriverID       string     `json:"driverId"`
	VehicleID      string     `json:"vehicleId"`
	StartLocation  Location   `json:"startLocation"`
	EndLocation    Location   `json:"endLocation"`
	Direction      Direction  `json:"direction"`
	DepartureTime  time.Time  `json:"departureTime"`
	TotalSeats     int        `json:"totalSeats"`
	AvailableSeats int        `json:"availableSeats"`
	CostPerSeat    int64      `json:"costPerSeat"`
	Status         RideStatus `json:"status"`

	PickupReachedAt      *time.Time `json:"pickupReachedAt,omitempty"`
	PassengerArrivedAt   *time.Time `json:"passengerArrivedAt,omitempty"`
	TripStartedAt        *time.Time `json:"tripStartedAt,omitempty"`
	EstimatedArrivalTime string     `json:"estimatedArrivalTime,omitempty"`
	DestinationReachedAt *time.Time `json:"destinationReachedAt,omitempty"`
	RideCompletedAt      *time.Time `json:"rideCompletedAt,omitempty"`
	PaymentCollected     bool       `json:"paymentCollected"`

	CancelledAt        *time.Time `json:"cancelledAt,omitempty"`
	CancellationReason string     `json:"cancellationReason,omitempty"`
	CancelledBy        string     `json:"cancelledBy,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ExpiresAt is the instant after which an unbooked ride is considered dead.
func (r *Ride) ExpiresAt(grace time.Duration) time.Time {
	return r.DepartureTime.Add(grace)
}
