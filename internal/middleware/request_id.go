package middleware

import (
	"catalog/pkg/logger"
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const RequestIDHeader = "X-Request-ID"

// NewRequestIDMiddleware tags each request with an id, reusing the caller's
// X-Request-ID when present, and puts a logger carrying it in the user context.
func NewRequestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.New().String()
		}
		c.Set(RequestIDHeader, requestID)
		c.Locals("request_id", requestID)

		userCtx := c.UserContext()
		if userCtx == nil {
			userCtx = context.Background()
		}
		c.SetUserContext(logger.WithLogger(userCtx, zap.L().With(zap.String("request_id", requestID))))

		return c.Next()
	}
}
