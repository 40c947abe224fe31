package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"hivekeeper/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(MetricsMiddleware("mwtest"))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	for _, path := range []string{"/ok", "/ok", "/missing"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.RequestCount.WithLabelValues("mwtest", "/ok", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RequestCount.WithLabelValues("mwtest", "unmatched", "404")))
}
