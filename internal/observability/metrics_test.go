package observability

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/review-service/internal/config"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.RecordTransition("submit", "ok")
	m.RecordTransition("submit", "ok")
	m.RecordTransition("accept", "FORBIDDEN")
	m.RecordDenial("delete")
	m.RecordRequest("/submissions", "GET", 200, 15*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitionsTotal.WithLabelValues("submit", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitionsTotal.WithLabelValues("accept", "FORBIDDEN")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authzDenialsTotal.WithLabelValues("delete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/submissions", "200")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordTransition("submit", "ok")
		m.RecordDenial("read")
		m.RecordError("/x", "GET", "NOT_FOUND")
		m.RequestStarted()()
	})
}

func TestRequestLoggerRecordsRoutePattern(t *testing.T) {
	m := NewMetrics()
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop(), m))
	app.Get("/submissions/:id", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/submissions/abc", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/submissions/:id", "204")))
}

func TestHandlerExposesReviewMetrics(t *testing.T) {
	m := NewMetrics()
	m.RecordTransition("finalize", "ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `review_transitions_total{event="finalize",outcome="ok"} 1`))
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "nonsense"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}
