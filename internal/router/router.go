package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/venuehub/venue-booking/internal/config"
	"github.com/venuehub/venue-booking/internal/handler"
	"github.com/venuehub/venue-booking/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance: the health check used by load balancers,
// and the availability probe so prospective requesters can check a slot
// before signing in.
func RegisterRoutes(e *echo.Echo, b *handler.BookingHandler) {
	e.GET("/healthz", handler.Health)
	e.POST("/v1/availability/check", b.CheckAvailability)
}

// RegisterBooking registers the authenticated booking and waitlist
// endpoints under /v1.  Every route in the group requires a valid access
// token; the rate limiter is shared across instances through Redis and is
// a pass-through when rdb is nil.
func RegisterBooking(e *echo.Echo, b *handler.BookingHandler, w *handler.WaitlistHandler, jwtSecret string, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("REQUESTER", "ADMIN"))
	auth.Use(middleware.RateLimit(rlCfg, rdb))

	auth.POST("/bookings", b.CreateBooking)
	auth.POST("/bookings/:id/confirm", b.ConfirmBooking)
	auth.POST("/bookings/:id/cancel", b.CancelBooking)
	auth.GET("/my-bookings", b.GetMyBookings)

	auth.POST("/waitlist", w.JoinWaitlist)
	auth.DELETE("/waitlist/:id", w.LeaveWaitlist)
	auth.POST("/waitlist/:id/claim", w.ClaimSlot)
	auth.GET("/my-waitlist", w.GetMyWaitlist)
}
