package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Domenick1991/carpool/internal/docstore"
	"github.com/Domenick1991/carpool/internal/domain"
)

const bookingsCollection = "bookings"

type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	Get(ctx context.Context, id string) (*domain.Booking, error)
	ListByPassenger(ctx context.Context, passengerID string) ([]domain.Booking, error)
	ListByRide(ctx context.Context, rideID string) ([]domain.Booking, error)
	ListByRideAndStatus(ctx context.Context, rideID string, statuses ...domain.BookingStatus) ([]domain.Booking, error)
	Update(ctx context.Context, id string, patch map[string]any) (*domain.Booking, error)
}

type DocBookingRepository struct {
	store docstore.Store
}

func NewBookingRepository(store docstore.Store) BookingRepository {
	return &DocBookingRepository{store: store}
}

func (r *DocBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	id, err := r.store.Create(ctx, bookingsCollection, booking.ID, booking)
	if err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	created, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	*booking = *created
	return nil
}

func (r *DocBookingRepository) Get(ctx context.Context, id string) (*domain.Booking, error) {
	raw, err := r.store.Get(ctx, bookingsCollection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return decodeBooking(raw)
}

func (r *DocBookingRepository) ListByPassenger(ctx context.Context, passengerID string) ([]domain.Booking, error) {
	return r.query(ctx, docstore.Query{
		Where:       []docstore.Where{{Field: "passengerId", Op: docstore.OpEqual, Value: passengerID}},
		OrderBy:     "bookedAt",
		OrderAsTime: true,
		Desc:        true,
	})
}

func (r *DocBookingRepository) ListByRide(ctx context.Context, rideID string) ([]domain.Booking, error) {
	return r.query(ctx, docstore.Query{
		Where: []docstore.Where{{Field: "rideId", Op: docstore.OpEqual, Value: rideID}},
	})
}

func (r *DocBookingRepository) ListByRideAndStatus(ctx context.Context, rideID string, statuses ...domain.BookingStatus) ([]domain.Booking, error) {
	vals := make([]string, 0, len(statuses))
	for _, s := range statuses {
		vals = append(vals, string(s))
	}
	return r.query(ctx, docstore.Query{
		Where: []docstore.Where{
			{Field: "rideId", Op: docstore.OpEqual, Value: rideID},
			{Field: "status", Op: docstore.OpIn, Value: vals},
		},
	})
}

func (r *DocBookingRepository) Update(ctx context.Context, id string, patch map[string]any) (*domain.Booking, error) {
	err := r.store.Update(ctx, bookingsCollection, id, patch)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update booking %s: %w", id, err)
	}
	return r.Get(ctx, id)
}

func (r *DocBookingRepository) query(ctx context.Context, q docstore.Query) ([]domain.Booking, error) {
	raws, err := r.store.Query(ctx, bookingsCollection, q)
	if err != nil {
		return nil, err
	}
	bookings := make([]domain.Booking, 0, len(raws))
	for _, raw := range raws {
		b, err := decodeBooking(raw)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, nil
}

func decodeBooking(raw json.RawMessage) (*domain.Booking, error) {
	var b domain.Booking
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decode booking: %w", err)
	}
	return &b, nil
}

var _ BookingRepository = (*DocBookingRepository)(nil)
