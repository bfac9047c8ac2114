package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pulsefit/booking-api/internal/dto"
	"github.com/pulsefit/booking-api/internal/service"
	appErrors "github.com/pulsefit/booking-api/pkg/errors"
	"github.com/pulsefit/booking-api/pkg/response"
)

// ScheduleHandler exposes trainer schedule configuration and exports.
type ScheduleHandler struct {
	schedule *service.ScheduleService
	exports  *service.ExportService
}

// NewScheduleHandler creates a new handler.
func NewScheduleHandler(schedule *service.ScheduleService, exports *service.ExportService) *ScheduleHandler {
	return &ScheduleHandler{schedule: schedule, exports: exports}
}

// GetWeeklyAvailability godoc
// @Summary List weekly availability
// @Tags Schedule
// @Produce json
// @Param trainerId path string true "Trainer ID"
// @Success 200 {object} response.Envelope
// @Router /trainers/{trainerId}/availability [get]
func (h *ScheduleHandler) GetWeeklyAvailability(c *gin.Context) {
	windows, err := h.schedule.GetWeeklyAvailability(c.Request.Context(), c.Param("trainerId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, windows, nil)
}

// UpsertWeeklyAvailability godoc
// @Summary Set weekly availability for one weekday
// @Tags Schedule
// @Accept json
// @Produce json
// @Param trainerId path string true "Trainer ID"
// @Param payload body dto.UpsertWeeklyAvailabilityRequest true "Weekday window"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /trainers/{trainerId}/availability [put]
func (h *ScheduleHandler) UpsertWeeklyAvailability(c *gin.Context) {
	var req dto.UpsertWeeklyAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability payload"))
		return
	}

	window, err := h.schedule.UpsertWeeklyAvailability(c.Request.Context(), c.Param("trainerId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, window, nil)
}

// DeleteWeeklyAvailability godoc
// @Summary Remove weekly availability for one weekday
// @Tags Schedule
// @Param trainerId path string true "Trainer ID"
// @Param day path int true "Weekday (0=Sunday)"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /trainers/{trainerId}/availability/{day} [delete]
func (h *ScheduleHandler) DeleteWeeklyAvailability(c *gin.Context) {
	day, err := strconv.Atoi(c.Param("day"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "day must be an integer"))
		return
	}
	if err := h.schedule.DeleteWeeklyAvailability(c.Request.Context(), c.Param("trainerId"), day); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListBlockedTimes godoc
// @Summary List blocked intervals
// @Tags Schedule
// @Produce json
// @Param trainerId path string true "Trainer ID"
// @Param start_date query string true "Range start (YYYY-MM-DD)"
// @Param end_date query string true "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /trainers/{trainerId}/blocked-times [get]
func (h *ScheduleHandler) ListBlockedTimes(c *gin.Context) {
	rows, err := h.schedule.ListBlockedTimes(c.Request.Context(), c.Param("trainerId"), c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// CreateBlockedTime godoc
// @Summary Block out a date-specific interval
// @Tags Schedule
// @Accept json
// @Produce json
// @Param trainerId path string true "Trainer ID"
// @Param payload body dto.CreateBlockedTimeRequest true "Blocked interval"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /trainers/{trainerId}/blocked-times [post]
func (h *ScheduleHandler) CreateBlockedTime(c *gin.Context) {
	var req dto.CreateBlockedTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid blocked time payload"))
		return
	}

	blocked, err := h.schedule.CreateBlockedTime(c.Request.Context(), c.Param("trainerId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, blocked)
}

// DeleteBlockedTime godoc
// @Summary Remove a blocked interval
// @Tags Schedule
// @Param trainerId path string true "Trainer ID"
// @Param id path string true "Blocked time ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /trainers/{trainerId}/blocked-times/{id} [delete]
func (h *ScheduleHandler) DeleteBlockedTime(c *gin.Context) {
	if err := h.schedule.DeleteBlockedTime(c.Request.Context(), c.Param("trainerId"), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// GetCapacity godoc
// @Summary Get capacity config
// @Tags Schedule
// @Produce json
// @Param trainerId path string true "Trainer ID"
// @Success 200 {object} response.Envelope
// @Router /trainers/{trainerId}/capacity [get]
func (h *ScheduleHandler) GetCapacity(c *gin.Context) {
	capacity, err := h.schedule.GetCapacity(c.Request.Context(), c.Param("trainerId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, capacity, nil)
}

// UpsertCapacity godoc
// @Summary Set capacity config
// @Tags Schedule
// @Accept json
// @Produce json
// @Param trainerId path string true "Trainer ID"
// @Param payload body dto.UpsertCapacityRequest true "Capacity config"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /trainers/{trainerId}/capacity [put]
func (h *ScheduleHandler) UpsertCapacity(c *gin.Context) {
	var req dto.UpsertCapacityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid capacity payload"))
		return
	}

	capacity, err := h.schedule.UpsertCapacity(c.Request.Context(), c.Param("trainerId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, capacity, nil)
}

// GetBookingRules godoc
// @Summary Get booking rules
// @Tags Schedule
// @Produce json
// @Param trainerId path string true "Trainer ID"
// @Success 200 {object} response.Envelope
// @Router /trainers/{trainerId}/booking-rules [get]
func (h *ScheduleHandler) GetBookingRules(c *gin.Context) {
	rules, err := h.schedule.GetBookingRules(c.Request.Context(), c.Param("trainerId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rules, nil)
}

// UpsertBookingRules godoc
// @Summary Set booking rules
// @Tags Schedule
// @Accept json
// @Produce json
// @Param trainerId path string true "Trainer ID"
// @Param payload body dto.UpsertBookingRulesRequest true "Booking rules"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /trainers/{trainerId}/booking-rules [put]
func (h *ScheduleHandler) UpsertBookingRules(c *gin.Context) {
	var req dto.UpsertBookingRulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking rules payload"))
		return
	}

	rules, err := h.schedule.UpsertBookingRules(c.Request.Context(), c.Param("trainerId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rules, nil)
}

// ExportSchedule godoc
// @Summary Export the trainer's schedule
// @Description Render bookings and blocked intervals for a date range as CSV or PDF
// @Tags Schedule
// @Produce octet-stream
// @Param trainerId path string true "Trainer ID"
// @Param start_date query string true "Range start (YYYY-MM-DD)"
// @Param end_date query string true "Range end (YYYY-MM-DD)"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /trainers/{trainerId}/schedule/export [get]
func (h *ScheduleHandler) ExportSchedule(c *gin.Context) {
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	result, err := h.exports.ScheduleExport(c.Request.Context(), c.Param("trainerId"), c.Query("start_date"), c.Query("end_date"), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Payload)
}
