package routes

import (
	"time"

	"slotbook/handlers"
	"slotbook/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Options carries the router settings that come from configuration.
type Options struct {
	CORSOrigins       []string
	MaxRequestsPerMin int
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.GET("/health", hb.Health)
}

// RegisterBookingRoutes sets up the visitor endpoints.
func RegisterBookingRoutes(api *gin.RouterGroup, hb *handlers.HandlerBundle) {
	api.GET("/schedules", hb.GetSchedules)
	api.GET("/schedules/stream", hb.StreamSchedules)

	bookingGroup := api.Group("/bookings")
	{
		bookingGroup.POST("", hb.CreateBooking)
		bookingGroup.DELETE("", hb.CancelBooking)
		bookingGroup.POST("/refresh", hb.RefreshBookings)
	}
}

// RegisterAdminRoutes sets up endpoints for admin operations.
func RegisterAdminRoutes(api *gin.RouterGroup, hb *handlers.HandlerBundle) {
	adminGroup := api.Group("/admin")
	{
		adminGroup.Use(middleware.JWTAuthAdminMiddleware(hb.AdminJWTSecret))
		adminGroup.GET("/schedules", hb.GetAdminSchedules)
		adminGroup.GET("/schedules/stream", hb.StreamAdminSchedules)
		adminGroup.GET("/bookings", hb.ListBookings)
		adminGroup.POST("/bookings", hb.CreateBooking)
		adminGroup.DELETE("/bookings", hb.CancelBooking)
	}
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle, opts Options) {
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: !containsWildcard(origins),
		MaxAge:           12 * time.Hour,
	}))

	RegisterHealthRoute(r, hb)

	api := r.Group("/api")
	if opts.MaxRequestsPerMin > 0 {
		api.Use(middleware.RateLimitMiddleware(opts.MaxRequestsPerMin))
	}
	RegisterBookingRoutes(api, hb)
	RegisterAdminRoutes(api, hb)
}

// Browsers refuse credentialed requests to a wildcard origin.
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
