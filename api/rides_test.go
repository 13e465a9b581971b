package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Domenick1991/carpool/internal/domain"
	"github.com/Domenick1991/carpool/internal/service/rides"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockRideUseCase is a mock implementation of rides.RideUseCase
type MockRideUseCase struct {
	mock.Mock
}

func (m *MockRideUseCase) CreateRide(ctx context.Context, input rides.CreateRideInput) (*domain.Ride, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ride), args.Error(1)
}

func (m *MockRideUseCase) GetRide(ctx context.Context, id string) (*domain.Ride, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ride), args.Error(1)
}

func (m *MockRideUseCase) ListRidesByDriver(ctx context.Context, driverID string) ([]domain.Ride, error) {
	args := m.Called(ctx, driverID)
	return args.Get(0).([]domain.Ride), args.Error(1)
}

func (m *MockRideUseCase) ListAvailableRides(ctx context.Context, filter rides.AvailableRidesFilter) ([]domain.Ride, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Ride), args.Error(1)
}

func (m *MockRideUseCase) DriverReachedPickup(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	args := m.Called(ctx, rideID, driverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ride), args.Error(1)
}

func (m *MockRideUseCase) PassengerArrived(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	args := m.Called(ctx, rideID, driverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ride), args.Error(1)
}

func (m *MockRideUseCase) StartTrip(ctx context.Context, rideID, driverID, estimatedArrival string) (*domain.Ride, error) {
	args := m.Called(ctx, rideID, driverID, estimatedArrival)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ride), args.Error(1)
}

func (m *MockRideUseCase) ArriveAtDestination(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	args := m.Called(ctx, rideID, driverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ride), args.Error(1)
}

func (m *MockRideUseCase) CollectPayment(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	args := m.Called(ctx, rideID, driverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ride), args.Error(1)
}

func (m *MockRideUseCase) CancelRide(ctx context.Context, rideID, reason, driverID string) (*domain.Ride, error) {
	args := m.Called(ctx, rideID, reason, driverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ride), args.Error(1)
}

func (m *MockRideUseCase) RecalculateAvailableSeats(ctx context.Context, rideID string) (*domain.Ride, error) {
	args := m.Called(ctx, rideID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ride), args.Error(1)
}

func (m *MockRideUseCase) ExpireOverdueRides(ctx context.Context) ([]domain.Ride, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Ride), args.Error(1)
}

func (m *MockRideUseCase) AutoCompleteDueRides(ctx context.Context) ([]domain.Ride, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Ride), args.Error(1)
}

// authedContext mirrors what auth.Middleware puts on the request context.
func authedContext(w *httptest.ResponseRecorder, userID string, role domain.Role) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(w)
	c.Set("auth.userID", userID)
	c.Set("auth.role", role)
	return c
}

func TestRideHandler_create(t *testing.T) {
	mockService := &MockRideUseCase{}
	handler := NewRideHandler(mockService)

	w := httptest.NewRecorder()
	c := authedContext(w, "driver-1", domain.RoleDriver)

	departure := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	req := createRideRequest{
		VehicleID:     "vehicle-1",
		StartLocation: domain.Location{ID: "loc-a", Name: "Sector 21"},
		EndLocation:   domain.Location{ID: "loc-b", Name: "Tech Park"},
		Direction:     string(domain.DirectionToOffice),
		DepartureTime: departure,
		TotalSeats:    3,
		CostPerSeat:   80,
	}
	body, _ := json.Marshal(req)
	c.Request = httptest.NewRequest("POST", "/rides", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	ride := &domain.Ride{
		ID:             "ride-1",
		DriverID:       "driver-1",
		Status:         domain.RideStatusAvailable,
		TotalSeats:     3,
		AvailableSeats: 3,
	}
	mockService.On("CreateRide", c.Request.Context(), rides.CreateRideInput{
		DriverID:      "driver-1",
		VehicleID:     "vehicle-1",
		StartLocation: req.StartLocation,
		EndLocation:   req.EndLocation,
		Direction:     domain.DirectionToOffice,
		DepartureTime: departure,
		TotalSeats:    3,
		CostPerSeat:   80,
	}).Return(ride, nil)

	handler.create(c)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response domain.Ride
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "ride-1", response.ID)
	assert.Equal(t, domain.RideStatusAvailable, response.Status)

	mockService.AssertExpectations(t)
}

func TestRideHandler_createValidationError(t *testing.T) {
	mockService := &MockRideUseCase{}
	handler := NewRideHandler(mockService)

	w := httptest.NewRecorder()
	c := authedContext(w, "driver-1", domain.RoleDriver)

	body, _ := json.Marshal(createRideRequest{Direction: "sideways"})
	c.Request = httptest.NewRequest("POST", "/rides", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	mockService.On("CreateRide", c.Request.Context(), mock.Anything).
		Return(nil, fmt.Errorf("%w: unknown direction", domain.ErrValidation))

	handler.create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertExpectations(t)
}

func TestRideHandler_getNotFound(t *testing.T) {
	mockService := &MockRideUseCase{}
	handler := NewRideHandler(mockService)

	w := httptest.NewRecorder()
	c := authedContext(w, "driver-1", domain.RoleDriver)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	c.Request = httptest.NewRequest("GET", "/rides/missing", nil)

	mockService.On("GetRide", c.Request.Context(), "missing").Return(nil, domain.ErrNotFound)

	handler.get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockService.AssertExpectations(t)
}

func TestRideHandler_listAvailablePassesDirection(t *testing.T) {
	mockService := &MockRideUseCase{}
	handler := NewRideHandler(mockService)

	w := httptest.NewRecorder()
	c := authedContext(w, "passenger-1", domain.RolePassenger)
	c.Request = httptest.NewRequest("GET", "/rides?direction=to_office", nil)

	mockService.On("ListAvailableRides", c.Request.Context(),
		rides.AvailableRidesFilter{Direction: domain.DirectionToOffice}).
		Return([]domain.Ride{{ID: "ride-1"}}, nil)

	handler.listAvailable(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestRideHandler_startTrip(t *testing.T) {
	mockService := &MockRideUseCase{}
	handler := NewRideHandler(mockService)

	w := httptest.NewRecorder()
	c := authedContext(w, "driver-1", domain.RoleDriver)
	c.Params = gin.Params{{Key: "id", Value: "ride-1"}}

	body, _ := json.Marshal(startTripRequest{EstimatedArrival: "10:30 AM"})
	c.Request = httptest.NewRequest("POST", "/rides/ride-1/start", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	ride := &domain.Ride{ID: "ride-1", Status: domain.RideStatusTripStarted, EstimatedArrivalTime: "10:30 AM"}
	mockService.On("StartTrip", c.Request.Context(), "ride-1", "driver-1", "10:30 AM").Return(ride, nil)

	handler.startTrip(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response domain.Ride
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, domain.RideStatusTripStarted, response.Status)

	mockService.AssertExpectations(t)
}

func TestRideHandler_pickupReachedForbidden(t *testing.T) {
	mockService := &MockRideUseCase{}
	handler := NewRideHandler(mockService)

	w := httptest.NewRecorder()
	c := authedContext(w, "driver-2", domain.RoleDriver)
	c.Params = gin.Params{{Key: "id", Value: "ride-1"}}
	c.Request = httptest.NewRequest("POST", "/rides/ride-1/pickup-reached", nil)

	mockService.On("DriverReachedPickup", c.Request.Context(), "ride-1", "driver-2").
		Return(nil, domain.ErrForbidden)

	handler.pickupReached(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	mockService.AssertExpectations(t)
}

func TestRideHandler_cancel(t *testing.T) {
	mockService := &MockRideUseCase{}
	handler := NewRideHandler(mockService)

	w := httptest.NewRecorder()
	c := authedContext(w, "driver-1", domain.RoleDriver)
	c.Params = gin.Params{{Key: "id", Value: "ride-1"}}

	body, _ := json.Marshal(cancelRideRequest{Reason: "flat tire"})
	c.Request = httptest.NewRequest("POST", "/rides/ride-1/cancel", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	ride := &domain.Ride{ID: "ride-1", Status: domain.RideStatusExpired, CancellationReason: "flat tire"}
	mockService.On("CancelRide", c.Request.Context(), "ride-1", "flat tire", "driver-1").Return(ride, nil)

	handler.cancel(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response domain.Ride
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, domain.RideStatusExpired, response.Status)

	mockService.AssertExpectations(t)
}
