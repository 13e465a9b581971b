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

const ridesCollection = "rides"

type RideRepository interface {
	Create(ctx context.Context, ride *domain.Ride) error
	Get(ctx context.Context, id string) (*domain.Ride, error)
	ListByDriver(ctx context.Context, driverID string) ([]domain.Ride, error)
	// ListAvailable returns AVAILABLE rides whose departure is after
	// cutoff (now minus the expiry grace), soonest first. Direction is
	// optional.
	ListAvailable(ctx context.Context, cutoff time.Time, direction domain.Direction) ([]domain.Ride, error)
	// ListExpiredBefore returns AVAILABLE rides whose departure is before
	// cutoff, i.e. candidates for the expiry sweep.
	ListExpiredBefore(ctx context.Context, cutoff time.Time) ([]domain.Ride, error)
	// ListAutoCompletable returns rides in the execution states the
	// ETA-based auto-completion may close out.
	ListAutoCompletable(ctx context.Context) ([]domain.Ride, error)
	Update(ctx context.Context, id string, patch map[string]any) (*domain.Ride, error)
}

type DocRideRepository struct {
	store docstore.Store
}

func NewRideRepository(store docstore.Store) RideRepository {
	return &DocRideRepository{store: store}
}

func (r *DocRideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	id, err := r.store.Create(ctx, ridesCollection, ride.ID, ride)
	if err != nil {
		return fmt.Errorf("create ride: %w", err)
	}
	created, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	*ride = *created
	return nil
}

func (r *DocRideRepository) Get(ctx context.Context, id string) (*domain.Ride, error) {
	raw, err := r.store.Get(ctx, ridesCollection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, fmt.Errorf("ride %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return decodeRide(raw)
}

func (r *DocRideRepository) ListByDriver(ctx context.Context, driverID string) ([]domain.Ride, error) {
	return r.query(ctx, docstore.Query{
		Where:       []docstore.Where{{Field: "driverId", Op: docstore.OpEqual, Value: driverID}},
		OrderBy:     "departureTime",
		OrderAsTime: true,
		Desc:        true,
	})
}

func (r *DocRideRepository) ListAvailable(ctx context.Context, cutoff time.Time, direction domain.Direction) ([]domain.Ride, error) {
	where := []docstore.Where{
		{Field: "status", Op: docstore.OpEqual, Value: string(domain.RideStatusAvailable)},
		{Field: "departureTime", Op: docstore.OpGreater, Value: cutoff},
	}
	if direction != "" {
		where = append(where, docstore.Where{Field: "direction", Op: docstore.OpEqual, Value: string(direction)})
	}
	return r.query(ctx, docstore.Query{Where: where, OrderBy: "departureTime", OrderAsTime: true})
}

func (r *DocRideRepository) ListExpiredBefore(ctx context.Context, cutoff time.Time) ([]domain.Ride, error) {
	return r.query(ctx, docstore.Query{
		Where: []docstore.Where{
			{Field: "status", Op: docstore.OpEqual, Value: string(domain.RideStatusAvailable)},
			{Field: "departureTime", Op: docstore.OpLess, Value: cutoff},
		},
	})
}

func (r *DocRideRepository) ListAutoCompletable(ctx context.Context) ([]domain.Ride, error) {
	return r.query(ctx, docstore.Query{
		Where: []docstore.Where{
			{Field: "status", Op: docstore.OpIn, Value: []string{
				string(domain.RideStatusTripStarted),
				string(domain.RideStatusDestinationReached),
			}},
		},
	})
}

func (r *DocRideRepository) Update(ctx context.Context, id string, patch map[string]any) (*domain.Ride, error) {
	err := r.store.Update(ctx, ridesCollection, id, patch)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, fmt.Errorf("ride %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update ride %s: %w", id, err)
	}
	return r.Get(ctx, id)
}

func (r *DocRideRepository) query(ctx context.Context, q docstore.Query) ([]domain.Ride, error) {
	raws, err := r.store.Query(ctx, ridesCollection, q)
	if err != nil {
		return nil, err
	}
	rides := make([]domain.Ride, 0, len(raws))
	for _, raw := range raws {
		ride, err := decodeRide(raw)
		if err != nil {
			return nil, err
		}
		rides = append(rides, *ride)
	}
	return rides, nil
}

func decodeRide(raw json.RawMessage) (*domain.Ride, error) {
	var ride domain.Ride
	if err := json.Unmarshal(raw, &ride); err != nil {
		return nil, fmt.Errorf("decode ride: %w", err)
	}
	return &ride, nil
}

var _ RideRepository = (*DocRideRepository)(nil)
