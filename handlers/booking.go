package handlers

import (
	"errors"
	"io"
	"net/http"

	"slotbook/models"
	"slotbook/services/booking"
	"slotbook/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BookingHandler exposes the booking store over HTTP. Admin views include
// booker identities; visitor views strip them.
type BookingHandler struct {
	Service booking.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(svc booking.BookingService) *BookingHandler {
	return &BookingHandler{Service: svc}
}

func view(st booking.State, admin bool) booking.State {
	if admin {
		return st
	}
	return st.Public()
}

// GetSchedules returns the visitor view of the calendar.
func (h *BookingHandler) GetSchedules(c *gin.Context) {
	c.JSON(http.StatusOK, view(h.Service.State(), false))
}

// GetAdminSchedules returns the calendar with booker names and ids.
func (h *BookingHandler) GetAdminSchedules(c *gin.Context) {
	c.JSON(http.StatusOK, view(h.Service.State(), true))
}

// StreamSchedules pushes the visitor view as server-sent events.
func (h *BookingHandler) StreamSchedules(c *gin.Context) {
	h.stream(c, false)
}

// StreamAdminSchedules pushes the admin view as server-sent events.
func (h *BookingHandler) StreamAdminSchedules(c *gin.Context) {
	h.stream(c, true)
}

func (h *BookingHandler) stream(c *gin.Context, admin bool) {
	updates, stop := h.Service.Watch()
	defer stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case st, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("schedules", view(st, admin))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// CreateBooking reserves a slot.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req models.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}

	id, err := h.Service.CreateBooking(c.Request.Context(), req.BookerName, req.BookingTime)
	if err != nil {
		h.writeError(c, err, "booking failed, please try again")
		return
	}
	getLogger(c).Info("Booking requested", zap.String("bookingId", id), zap.String("bookingTime", req.BookingTime))
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// CancelBooking deletes the bookings matching the given name and time.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	var req models.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}

	ok, err := h.Service.CancelBooking(c.Request.Context(), req.BookerName, req.BookingTime)
	if err != nil {
		h.writeError(c, err, "cancellation failed, please try again")
		return
	}
	if !ok {
		utils.JSONError(c, http.StatusNotFound, "no booking found for that name", "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

// Refresh reloads bookings through the bounded full read.
func (h *BookingHandler) Refresh(c *gin.Context) {
	if err := h.Service.Refresh(c.Request.Context()); err != nil {
		h.writeError(c, err, "failed to load booking data")
		return
	}
	c.JSON(http.StatusOK, view(h.Service.State(), false))
}

// ListBookings returns the raw bookings of the last snapshot, refreshing first
// when no feed is attached.
func (h *BookingHandler) ListBookings(c *gin.Context) {
	if !h.Service.State().Live {
		if err := h.Service.Refresh(c.Request.Context()); err != nil {
			h.writeError(c, err, "failed to load booking data")
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"bookings": h.Service.Bookings()})
}

func (h *BookingHandler) writeError(c *gin.Context, err error, fallback string) {
	var se *booking.StoreError
	switch {
	case errors.Is(err, booking.ErrBookerNameRequired), errors.Is(err, booking.ErrInvalidBookingTime):
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
	case errors.As(err, &se):
		status := http.StatusBadGateway
		switch se.Kind {
		case booking.KindSlotTaken:
			status = http.StatusConflict
		case booking.KindTimeout:
			status = http.StatusGatewayTimeout
		case booking.KindPermission:
			status = http.StatusForbidden
		}
		getLogger(c).Warn("Booking store error", zap.String("kind", string(se.Kind)), zap.Error(se.Err))
		c.AbortWithStatusJSON(status, utils.ErrorResponse{Message: se.Message})
	default:
		getLogger(c).Error("Unexpected booking error", zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, fallback, "")
	}
}
