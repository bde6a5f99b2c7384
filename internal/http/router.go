package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Rooms     *RoomHandler
	Bookings  *BookingHandler
	Waitlist  *WaitlistHandler
	JWTSecret []byte
	Logger    *zap.Logger
	// Health reports backend readiness for GET /healthz. Nil means always healthy.
	Health func(ctx context.Context) error
}

func NewRouter(cfg RouterConfig) *echo.Echo {
	logger := defaultLogger(cfg.Logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewRequestValidator()
	e.Use(RequestLogger(logger))

	e.GET("/healthz", func(c echo.Context) error {
		if cfg.Health != nil {
			if err := cfg.Health(c.Request().Context()); err != nil {
				return newResponder(logger).writeError(c, http.StatusServiceUnavailable, err)
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("", RequireBearer(cfg.JWTSecret, logger))

	if cfg.Bookings != nil {
		api.POST("/bookings", cfg.Bookings.Create)
		api.POST("/recurring-bookings", cfg.Bookings.CreateRecurring)
		api.GET("/bookings/:id", cfg.Bookings.Get)
		api.DELETE("/bookings/:id", cfg.Bookings.Cancel)
		api.POST("/bookings/:id/reschedule", cfg.Bookings.Reschedule)
		api.DELETE("/recurring-bookings/:id", cfg.Bookings.CancelSeries)
		api.POST("/conflicts/:id/resolution", cfg.Bookings.Resolve)
		api.GET("/conflicts/:id/resolutions", cfg.Bookings.Resolutions)
		api.GET("/rooms/:id/availability", cfg.Bookings.Availability)
		api.GET("/rooms/:id/conflicts", cfg.Bookings.Conflicts)
	}

	if cfg.Waitlist != nil {
		api.GET("/rooms/:id/waitlist", cfg.Waitlist.List)
		api.DELETE("/waitlist/:id", cfg.Waitlist.Reject)
	}

	if cfg.Rooms != nil {
		api.GET("/rooms", cfg.Rooms.List)
		api.POST("/rooms", cfg.Rooms.Create)
		api.GET("/rooms/:id", cfg.Rooms.Get)
		api.PUT("/rooms/:id", cfg.Rooms.Update)
		api.DELETE("/rooms/:id", cfg.Rooms.Delete)
	}

	return e
}
