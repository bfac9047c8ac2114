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

type availabilityService interface {
	CheckAvailability(ctx context.Context, req dto.CheckAvailabilityRequest) (*models.AvailabilityResult, error)
	GetAvailableSlots(ctx context.Context, req dto.AvailableSlotsRequest) ([]models.AvailableSlot, error)
}

// AvailabilityHandler exposes the availability engine over HTTP. Slot
// enumerations are cached per trainer and range; verdict checks are always
// computed fresh.
type AvailabilityHandler struct {
	availability availabilityService
	cache        *service.CacheService
	metrics      *service.MetricsService
}

// NewAvailabilityHandler creates a new handler.
func NewAvailabilityHandler(availability availabilityService, cache *service.CacheService, metrics *service.MetricsService) *AvailabilityHandler {
	return &AvailabilityHandler{availability: availability, cache: cache, metrics: metrics}
}

// Check godoc
// @Summary Check slot availability
// @Description Evaluate whether one candidate slot is bookable for a trainer
// @Tags Availability
// @Accept json
// @Produce json
// @Param payload body dto.CheckAvailabilityRequest true "Candidate slot"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /availability/check [post]
func (h *AvailabilityHandler) Check(c *gin.Context) {
	var req dto.CheckAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability payload"))
		return
	}
	if claims := claimsFromContext(c); claims != nil {
		req.ClientID = claims.UserID
	}

	result, err := h.availability.CheckAvailability(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordAvailabilityCheck(result.Available)
	response.JSON(c, http.StatusOK, result, nil)
}

// Slots godoc
// @Summary List available slots
// @Description Enumerate bookable slots for a trainer over an inclusive date range
// @Tags Availability
// @Produce json
// @Param trainerId path string true "Trainer ID"
// @Param start_date query string true "Range start (YYYY-MM-DD)"
// @Param end_date query string true "Range end (YYYY-MM-DD)"
// @Param duration_minutes query int false "Requested slot length in minutes"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /trainers/{trainerId}/slots [get]
func (h *AvailabilityHandler) Slots(c *gin.Context) {
	req := dto.AvailableSlotsRequest{
		TrainerID: c.Param("trainerId"),
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
	}
	if raw := c.Query("duration_minutes"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "duration_minutes must be an integer"))
			return
		}
		req.DurationMinutes = minutes
	}
	if claims := claimsFromContext(c); claims != nil {
		req.ClientID = claims.UserID
	}

	key := service.SlotKey(req.TrainerID, req.ClientID, req.StartDate, req.EndDate, req.DurationMinutes)
	var cached []models.AvailableSlot
	if hit, _ := h.cache.Get(c.Request.Context(), key, &cached); hit {
		response.JSON(c, http.StatusOK, cached, nil, map[string]interface{}{"cached": true})
		return
	}

	slots, err := h.availability.GetAvailableSlots(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if slots == nil {
		slots = []models.AvailableSlot{}
	}

	h.metrics.RecordSlotsComputed(len(slots))
	_ = h.cache.Set(c.Request.Context(), key, slots, 0)
	response.JSON(c, http.StatusOK, slots, nil)
}
