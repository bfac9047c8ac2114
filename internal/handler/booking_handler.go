package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pulsefit/booking-api/internal/dto"
	"github.com/pulsefit/booking-api/internal/models"
	"github.com/pulsefit/booking-api/internal/service"
	appErrors "github.com/pulsefit/booking-api/pkg/errors"
	"github.com/pulsefit/booking-api/pkg/response"
)

type bookingService interface {
	Create(ctx context.Context, req dto.CreateBookingRequest) (*models.Booking, error)
	GetByID(ctx context.Context, bookingID, actorID string, actorRole models.UserRole) (*models.Booking, error)
	ListForClient(ctx context.Context, clientID string, limit int) ([]models.Booking, error)
	Cancel(ctx context.Context, bookingID, actorID string, actorRole models.UserRole) (*models.Booking, error)
	Confirm(ctx context.Context, bookingID, actorID string, actorRole models.UserRole) (*models.Booking, error)
	Reschedule(ctx context.Context, req dto.RescheduleBookingRequest) (*models.Booking, error)
}

// BookingHandler wires the booking lifecycle endpoints.
type BookingHandler struct {
	service bookingService
	metrics *service.MetricsService
}

// NewBookingHandler creates a new handler.
func NewBookingHandler(svc bookingService, metrics *service.MetricsService) *BookingHandler {
	return &BookingHandler{service: svc, metrics: metrics}
}

// Create godoc
// @Summary Book a session
// @Description Reserve a slot against a trainer's calendar
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body dto.CreateBookingRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}
	req.ClientID = claims.UserID

	booking, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		h.metrics.RecordBookingEvent("rejected")
		response.Error(c, err)
		return
	}

	h.metrics.RecordBookingEvent("created")
	response.Created(c, booking)
}

// Get godoc
// @Summary Get one booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /bookings/{id} [get]
func (h *BookingHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	booking, err := h.service.GetByID(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// List godoc
// @Summary List own bookings
// @Description List the authenticated client's recent bookings
// @Tags Bookings
// @Produce json
// @Param limit query int false "Maximum rows"
// @Success 200 {object} response.Envelope
// @Router /bookings [get]
func (h *BookingHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be an integer"))
			return
		}
		limit = parsed
	}

	bookings, err := h.service.ListForClient(c.Request.Context(), claims.UserID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, nil)
}

// Cancel godoc
// @Summary Cancel a booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	booking, err := h.service.Cancel(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordBookingEvent("cancelled")
	response.JSON(c, http.StatusOK, booking, nil)
}

// Confirm godoc
// @Summary Confirm a pending booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/{id}/confirm [post]
func (h *BookingHandler) Confirm(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	booking, err := h.service.Confirm(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordBookingEvent("confirmed")
	response.JSON(c, http.StatusOK, booking, nil)
}

// Reschedule godoc
// @Summary Reschedule a booking
// @Description Move a booking to a new slot; the original slot is released
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param payload body dto.RescheduleBookingRequest true "New slot"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/{id}/reschedule [post]
func (h *BookingHandler) Reschedule(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.RescheduleBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reschedule payload"))
		return
	}
	req.BookingID = c.Param("id")
	req.ClientID = claims.UserID

	booking, err := h.service.Reschedule(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordBookingEvent("rescheduled")
	response.JSON(c, http.StatusOK, booking, nil)
}
