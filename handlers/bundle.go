package handlers

import "github.com/gin-gonic/gin"

// HandlerBundle groups all endpoint handlers into one struct.
type HandlerBundle struct {
	AdminJWTSecret string

	Health gin.HandlerFunc

	// Visitor endpoints
	GetSchedules    gin.HandlerFunc
	StreamSchedules gin.HandlerFunc
	CreateBooking   gin.HandlerFunc
	CancelBooking   gin.HandlerFunc
	RefreshBookings gin.HandlerFunc

	// Admin endpoints
	GetAdminSchedules    gin.HandlerFunc
	StreamAdminSchedules gin.HandlerFunc
	ListBookings         gin.HandlerFunc
}

// NewHandlerBundle wires a BookingHandler into a bundle.
func NewHandlerBundle(h *BookingHandler, health gin.HandlerFunc, adminSecret string) *HandlerBundle {
	return &HandlerBundle{
		AdminJWTSecret:       adminSecret,
		Health:               health,
		GetSchedules:         h.GetSchedules,
		StreamSchedules:      h.StreamSchedules,
		CreateBooking:        h.CreateBooking,
		CancelBooking:        h.CancelBooking,
		RefreshBookings:      h.Refresh,
		GetAdminSchedules:    h.GetAdminSchedules,
		StreamAdminSchedules: h.StreamAdminSchedules,
		ListBookings:         h.ListBookings,
	}
}
