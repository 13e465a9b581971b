package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Domenick1991/carpool/internal/domain"
	"github.com/Domenick1991/carpool/internal/service/bookings"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockBookingUseCase is a mock implementation of bookings.BookingUseCase
type MockBookingUseCase struct {
	mock.Mock
}

func (m *MockBookingUseCase) CreateBooking(ctx context.Context, input bookings.CreateBookingInput) (*domain.Booking, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) ListBookingsByPassenger(ctx context.Context, passengerID string) ([]domain.Booking, error) {
	args := m.Called(ctx, passengerID)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) ListBookingsByRide(ctx context.Context, rideID string) ([]domain.Booking, error) {
	args := m.Called(ctx, rideID)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) CancelBooking(ctx context.Context, input bookings.CancelBookingInput) (*domain.Booking, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func TestBookingHandler_create(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)

	w := httptest.NewRecorder()
	c := authedContext(w, "passenger-1", domain.RolePassenger)

	body, _ := json.Marshal(createBookingRequest{RideID: "ride-1", Seats: 2})
	c.Request = httptest.NewRequest("POST", "/bookings", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	booking := &domain.Booking{
		ID:                "booking-1",
		RideID:            "ride-1",
		PassengerID:       "passenger-1",
		SeatsBooked:       2,
		AmountToPayDriver: 160,
		Status:            domain.BookingStatusConfirmed,
	}
	mockService.On("CreateBooking", c.Request.Context(), bookings.CreateBookingInput{
		RideID:      "ride-1",
		PassengerID: "passenger-1",
		Seats:       2,
	}).Return(booking, nil)

	handler.create(c)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response domain.Booking
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "booking-1", response.ID)
	assert.Equal(t, domain.BookingStatusConfirmed, response.Status)
	assert.Equal(t, int64(160), response.AmountToPayDriver)

	mockService.AssertExpectations(t)
}

func TestBookingHandler_createConflict(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)

	w := httptest.NewRecorder()
	c := authedContext(w, "passenger-1", domain.RolePassenger)

	body, _ := json.Marshal(createBookingRequest{RideID: "ride-1", Seats: 1})
	c.Request = httptest.NewRequest("POST", "/bookings", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	mockService.On("CreateBooking", c.Request.Context(), mock.Anything).
		Return(nil, fmt.Errorf("%w: ride is being booked, retry shortly", domain.ErrConflict))

	handler.create(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	mockService.AssertExpectations(t)
}

func TestBookingHandler_listMine(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)

	w := httptest.NewRecorder()
	c := authedContext(w, "passenger-1", domain.RolePassenger)
	c.Request = httptest.NewRequest("GET", "/bookings", nil)

	mockService.On("ListBookingsByPassenger", c.Request.Context(), "passenger-1").
		Return([]domain.Booking{{ID: "booking-1"}, {ID: "booking-2"}}, nil)

	handler.listMine(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response []domain.Booking
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Len(t, response, 2)

	mockService.AssertExpectations(t)
}

func TestBookingHandler_cancelPassesActor(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)

	w := httptest.NewRecorder()
	c := authedContext(w, "passenger-1", domain.RolePassenger)
	c.Params = gin.Params{{Key: "id", Value: "booking-1"}}

	body, _ := json.Marshal(cancelBookingRequest{Reason: "plans changed"})
	c.Request = httptest.NewRequest("DELETE", "/bookings/booking-1", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	booking := &domain.Booking{ID: "booking-1", Status: domain.BookingStatusCancelled}
	mockService.On("CancelBooking", c.Request.Context(), bookings.CancelBookingInput{
		BookingID: "booking-1",
		Reason:    "plans changed",
		ActorID:   "passenger-1",
		ActorRole: domain.RolePassenger,
	}).Return(booking, nil)

	handler.cancel(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response domain.Booking
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, response.Status)

	mockService.AssertExpectations(t)
}

func TestBookingHandler_cancelForbidden(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)

	w := httptest.NewRecorder()
	c := authedContext(w, "passenger-2", domain.RolePassenger)
	c.Params = gin.Params{{Key: "id", Value: "booking-1"}}

	body, _ := json.Marshal(cancelBookingRequest{Reason: "not mine"})
	c.Request = httptest.NewRequest("DELETE", "/bookings/booking-1", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	mockService.On("CancelBooking", c.Request.Context(), mock.Anything).
		Return(nil, fmt.Errorf("%w: booking belongs to another passenger", domain.ErrForbidden))

	handler.cancel(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	mockService.AssertExpectations(t)
}
