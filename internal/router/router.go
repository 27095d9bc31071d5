package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/experience-booking/internal/handler"
	"github.com/iliyamo/experience-booking/internal/middleware"
	"github.com/iliyamo/experience-booking/internal/model"
)

// RegisterRoutes registers routes that do not require authentication:
// the health check and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers the authentication routes.  Register, login,
// refresh and logout live under /v1/auth and need no session; linking
// a calendar account requires a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1/auth")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.PUT("/calendar", a.LinkCalendar)
}

// RegisterPublic registers unauthenticated browse endpoints: active
// experiences, their slots and single-slot details for guests
// comparing availability before signing up.
func RegisterPublic(e *echo.Echo, x *handler.ExperienceHandler, s *handler.SlotHandler) {
	e.GET("/v1/experiences", x.List)
	e.GET("/v1/experiences/:id", x.Get)
	e.GET("/v1/experiences/:id/slots", s.List)
	e.GET("/v1/slots/:id", s.Get)
}

// RegisterGuide registers the guide-facing management surface:
// experience CRUD and slot management.  Admins pass the same role
// gate so they can operate on any guide's resources.
func RegisterGuide(e *echo.Echo, x *handler.ExperienceHandler, s *handler.SlotHandler, jwtSecret string) {
	g := e.Group("/v1/guide")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleGuide, model.RoleAdmin))

	g.GET("/experiences", x.ListMine)
	g.POST("/experiences", x.Create)
	g.PATCH("/experiences/:id", x.Update)
	g.DELETE("/experiences/:id", x.Delete)

	g.POST("/experiences/:id/slots", s.Create)
	g.PATCH("/slots/:id/capacity", s.RaiseCapacity)
	g.PATCH("/slots/:id/active", s.SetActive)
	g.DELETE("/slots/:id", s.Delete)
}

// RegisterBookings registers the booking endpoints.  Every route needs
// a valid access token; fine-grained permissions (which role may
// create, cancel or change status) are enforced by the permission
// table inside the handlers and the booking service, not here.  The
// optional rate limiter protects the reservation path, where
// contention on the slot row makes request storms expensive.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/bookings")
	g.Use(middleware.JWTAuth(jwtSecret))
	if limiter != nil {
		g.Use(limiter)
	}

	g.POST("", b.Create)
	g.GET("", b.List)
	g.GET("/upcoming", b.ListUpcoming)
	g.GET("/past", b.ListPast)
	g.GET("/:id", b.Get)
	g.PATCH("/:id/status", b.UpdateStatus)
	g.POST("/:id/cancel", b.Cancel)

	slots := e.Group("/v1/slots")
	slots.Use(middleware.JWTAuth(jwtSecret))
	slots.Use(middleware.RequireRole(model.RoleGuide, model.RoleAdmin))
	slots.GET("/:id/bookings", b.ListBySlot)
}
