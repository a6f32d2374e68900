package middleware

import (
	"catalog/internal/metrics"
	"catalog/pkg/logger"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	app := fiber.New()
	app.Use(NewRequestIDMiddleware())

	var ctxLogger *zap.Logger
	app.Get("/", func(c *fiber.Ctx) error {
		ctxLogger = logger.FromContext(c.UserContext())
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
	require.NoError(t, err)

	_, parseErr := uuid.Parse(resp.Header.Get(RequestIDHeader))
	assert.NoError(t, parseErr)
	assert.NotNil(t, ctxLogger)
}

func TestRequestID_KeepsValidIncomingID(t *testing.T) {
	app := fiber.New()
	app.Use(NewRequestIDMiddleware())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("request_id").(string))
	})

	id := uuid.NewString()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDHeader, id)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, id, resp.Header.Get(RequestIDHeader))

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDHeader, "not-an-id")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.NotEqual(t, "not-an-id", resp.Header.Get(RequestIDHeader))
}

func TestMetrics_CountsByRoutePattern(t *testing.T) {
	app := fiber.New()
	app.Use(NewMetricsMiddleware())
	app.Get("/things/:id", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	counter := metrics.HTTPRequestsTotal.WithLabelValues("GET", "/things/:id", "200")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"a", "b"} {
		resp, err := app.Test(httptest.NewRequest("GET", "/things/"+id, nil), -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}
