package worker

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn bool

func (c fakeConn) IsConnectionOpen() bool { return bool(c) }

func TestHTTPHandler_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.inc("ok")

	rec := httptest.NewRecorder()
	NewHTTPHandler(reg, fakeConn(true)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `cropsense_worker_messages_total{outcome="ok"} 1`)
}

func TestHTTPHandler_Healthz(t *testing.T) {
	reg := prometheus.NewRegistry()

	rec := httptest.NewRecorder()
	NewHTTPHandler(reg, fakeConn(true)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","mqtt_connected":true}`, rec.Body.String())

	rec = httptest.NewRecorder()
	NewHTTPHandler(reg, fakeConn(false)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"down","mqtt_connected":false}`, rec.Body.String())
}
