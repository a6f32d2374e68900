package middleware

import (
	"catalog/internal/metrics"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

// NewMetricsMiddleware records request count and latency by route pattern.
func NewMetricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		}

		path := c.Route().Path
		labels := []string{c.Method(), path, strconv.Itoa(status)}
		metrics.HTTPRequestsTotal.WithLabelValues(labels...).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())

		return err
	}
}
