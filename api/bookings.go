package api

import (
	"net/http"

	"github.com/Domenick1991/carpool/internal/auth"
	"github.com/Domenick1991/carpool/internal/service/bookings"
	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	service bookings.BookingUseCase
}

type createBookingRequest struct {
	RideID string `json:"ride_id"`
	Seats  int    `json:"seats"`
}

type cancelBookingRequest struct {
	Reason string `json:"reason"`
}

func NewBookingHandler(service bookings.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.create)
	router.GET("/", h.listMine)
	router.GET("/:id", h.get)
	router.GET("/ride/:rideId", h.listByRide)
	router.DELETE("/:id", h.cancel)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	booking, err := h.service.CreateBooking(c.Request.Context(), bookings.CreateBookingInput{
		RideID:      req.RideID,
		PassengerID: auth.UserID(c),
		Seats:       req.Seats,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

func (h *BookingHandler) get(c *gin.Context) {
	booking, err := h.service.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

func (h *BookingHandler) listMine(c *gin.Context) {
	list, err := h.service.ListBookingsByPassenger(c.Request.Context(), auth.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *BookingHandler) listByRide(c *gin.Context) {
	list, err := h.service.ListBookingsByRide(c.Request.Context(), c.Param("rideId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *BookingHandler) cancel(c *gin.Context) {
	var req cancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	booking, err := h.service.CancelBooking(c.Request.Context(), bookings.CancelBookingInput{
		BookingID: c.Param("id"),
		Reason:    req.Reason,
		ActorID:   auth.UserID(c),
		ActorRole: auth.Role(c),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}
