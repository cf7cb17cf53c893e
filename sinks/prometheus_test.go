package sinks

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hopperd/hopper/internal/metric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusExposesCounterAndGauge(t *testing.T) {
	p := NewPrometheus()

	var tags metric.TagMap
	tags.Set("host", "web01")

	counter, err := metric.NewBuilder("req_count").Tags(tags).Sum(3).Build()
	require.NoError(t, err)
	p.Deliver(counter)

	gauge, err := metric.NewBuilder("pool_size").Set(7).Build()
	require.NoError(t, err)
	p.Deliver(gauge)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, "req_count")
	assert.Contains(t, body, `host="web01"`)
	assert.Contains(t, body, "pool_size 7")
}

func TestPrometheusSanitizesMetricNames(t *testing.T) {
	assert.Equal(t, "req_count_foo", sanitizeMetricName("req-count.foo"))
}
