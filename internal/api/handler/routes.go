package handler

import "github.com/labstack/echo/v4"

// Handlers はルーティングに登録するハンドラーの組
type Handlers struct {
	Health  *HealthHandler
	Catalog *CatalogHandler
	Session *SessionHandler
	Booking *BookingHandler
}

// RegisterRoutes は API のルートを登録する
func RegisterRoutes(e *echo.Echo, h Handlers) {
	e.GET("/health", h.Health.Check)

	v1 := e.Group("/api/v1")
	v1.GET("/musicals", h.Catalog.List)
	v1.GET("/musicals/:name", h.Catalog.Get)
	v1.GET("/musicals/:name/venues", h.Catalog.Venues)
	v1.GET("/musicals/:name/showtimes", h.Catalog.ShowTimes)
	v1.GET("/musicals/:name/venues/:venue_id/seats", h.Catalog.Seats)

	v1.POST("/sessions", h.Session.Start)
	v1.GET("/sessions/current", h.Session.Current)
	v1.DELETE("/sessions/current", h.Session.Abandon)
	v1.POST("/sessions/current/seats/toggle", h.Session.Toggle)
	v1.POST("/sessions/current/commit", h.Session.Commit)

	v1.POST("/bookings", h.Booking.Create)
	v1.GET("/bookings", h.Booking.History)
	v1.GET("/bookings/:id", h.Booking.GetByID)
}
