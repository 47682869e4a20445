package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	require.NoError(t, Register(prometheus.DefaultRegisterer))
	require.NoError(t, Register(prometheus.DefaultRegisterer), "re-registering the same collectors must not fail")
	// Once the collectors are live, further registries are no-ops.
	require.NoError(t, Register(prometheus.NewRegistry()))
}

func TestHelpersRecordAfterRegister(t *testing.T) {
	require.NoError(t, Register(prometheus.DefaultRegisterer))
	IncLaunch("cam1")
	IncLaunchFailure("cam1")
	IncRestart("cam1", "dead")
	IncRestart("cam1", "stale")
	IncTermination("exited")
	SetConfigured(4)
	SetActive(3)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, "camherd_feed_launches_total")
	assert.Contains(t, body, "camherd_feed_restarts_total")
	assert.Contains(t, body, "camherd_feeds_configured 4")
	assert.Contains(t, body, "camherd_feeds_active 3")
}

func TestHelpersNeverPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		IncLaunch("cam9")
		IncTermination("killed")
		SetActive(0)
	})
}
