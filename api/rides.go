package api

import (
	"net/http"
	"time"

	"github.com/Domenick1991/carpool/internal/auth"
	"github.com/Domenick1991/carpool/internal/domain"
	"github.com/Domenick1991/carpool/internal/service/rides"
	"github.com/gin-gonic/gin"
)

type RideHandler struct {
	service rides.RideUseCase
}

type createRideRequest struct {
	VehicleID     string          `json:"vehicle_id"`
	StartLocation domain.Location `json:"start_location"`
	EndLocation   domain.Location `json:"end_location"`
	Direction     string          `json:"direction"`
	DepartureTime time.Time       `json:"departure_time"`
	TotalSeats    int             `json:"total_seats"`
	CostPerSeat   int64           `json:"cost_per_seat"`
}

type startTripRequest struct {
	EstimatedArrival string `json:"estimated_arrival"`
}

type cancelRideRequest struct {
	Reason string `json:"reason"`
}

func NewRideHandler(service rides.RideUseCase) *RideHandler {
	return &RideHandler{service: service}
}

func (h *RideHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.create)
	router.GET("/", h.listAvailable)
	router.GET("/mine", h.listMine)
	router.GET("/:id", h.get)
	router.POST("/:id/pickup-reached", h.pickupReached)
	router.POST("/:id/passenger-arrived", h.passengerArrived)
	router.POST("/:id/start", h.startTrip)
	router.POST("/:id/arrived", h.arrived)
	router.POST("/:id/payment-collected", h.paymentCollected)
	router.POST("/:id/cancel", h.cancel)
}

func (h *RideHandler) create(c *gin.Context) {
	var req createRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ride, err := h.service.CreateRide(c.Request.Context(), rides.CreateRideInput{
		DriverID:      auth.UserID(c),
		VehicleID:     req.VehicleID,
		StartLocation: req.StartLocation,
		EndLocation:   req.EndLocation,
		Direction:     domain.Direction(req.Direction),
		DepartureTime: req.DepartureTime,
		TotalSeats:    req.TotalSeats,
		CostPerSeat:   req.CostPerSeat,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ride)
}

func (h *RideHandler) listAvailable(c *gin.Context) {
	filter := rides.AvailableRidesFilter{
		Direction: domain.Direction(c.Query("direction")),
	}
	list, err := h.service.ListAvailableRides(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *RideHandler) listMine(c *gin.Context) {
	list, err := h.service.ListRidesByDriver(c.Request.Context(), auth.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *RideHandler) get(c *gin.Context) {
	ride, err := h.service.GetRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ride)
}

func (h *RideHandler) pickupReached(c *gin.Context) {
	ride, err := h.service.DriverReachedPickup(c.Request.Context(), c.Param("id"), auth.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ride)
}

func (h *RideHandler) passengerArrived(c *gin.Context) {
	ride, err := h.service.PassengerArrived(c.Request.Context(), c.Param("id"), auth.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ride)
}

func (h *RideHandler) startTrip(c *gin.Context) {
	var req startTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ride, err := h.service.StartTrip(c.Request.Context(), c.Param("id"), auth.UserID(c), req.EstimatedArrival)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ride)
}

func (h *RideHandler) arrived(c *gin.Context) {
	ride, err := h.service.ArriveAtDestination(c.Request.Context(), c.Param("id"), auth.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ride)
}

func (h *RideHandler) paymentCollected(c *gin.Context) {
	ride, err := h.service.CollectPayment(c.Request.Context(), c.Param("id"), auth.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ride)
}

func (h *RideHandler) cancel(c *gin.Context) {
	var req cancelRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ride, err := h.service.CancelRide(c.Request.Context(), c.Param("id"), req.Reason, auth.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ride)
}
