package http

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RequestObserver registra la duración de cada request.
type RequestObserver interface {
	ObserveRequest(method, route, status string, seconds float64)
}

// RequestMetrics mide cada request por ruta registrada (no por path, para acotar cardinalidad).
func RequestMetrics(obs RequestObserver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if obs == nil {
			return c.Next()
		}
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		obs.ObserveRequest(c.Method(), c.Route().Path, strconv.Itoa(status), time.Since(start).Seconds())
		return err
	}
}
