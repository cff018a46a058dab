package metrics

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopWhenDisabled(t *testing.T) {
	ctx := context.Background()
	meter, err := New(nil)
	require.NoError(t, err)

	c, err := meter.Counter("x_total", "x")
	require.NoError(t, err)
	c.Inc(ctx) // 不应 panic

	meter, err = New(&Config{Enabled: false})
	require.NoError(t, err)
	g, err := meter.Gauge("y", "y")
	require.NoError(t, err)
	g.Set(ctx, 1)
}

func TestCounterExposed(t *testing.T) {
	ctx := context.Background()
	meter, err := New(&Config{Enabled: true, Namespace: "beacon"})
	require.NoError(t, err)

	c, err := meter.Counter("heartbeat_failures_total", "Heartbeat failures", "service")
	require.NoError(t, err)
	c.Inc(ctx, L("service", "user-service"))
	c.Add(ctx, 2, L("service", "user-service"))

	rec := httptest.NewRecorder()
	meter.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.Contains(t, body, "beacon_heartbeat_failures_total")
	assert.Contains(t, body, `service="user-service"`)
	assert.Contains(t, body, "3")
}

func TestDuplicateRegistration(t *testing.T) {
	meter, err := New(&Config{Enabled: true})
	require.NoError(t, err)

	_, err = meter.Counter("dup_total", "dup")
	require.NoError(t, err)
	_, err = meter.Counter("dup_total", "dup")
	assert.Error(t, err)
}

func TestGauge(t *testing.T) {
	ctx := context.Background()
	meter, err := New(&Config{Enabled: true})
	require.NoError(t, err)

	g, err := meter.Gauge("watched_keys", "Watched config keys")
	require.NoError(t, err)
	g.Inc(ctx)
	g.Inc(ctx)
	g.Dec(ctx)
	g.Set(ctx, 5)

	rec := httptest.NewRecorder()
	meter.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "beacon_watched_keys 5")
}
