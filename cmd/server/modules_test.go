package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/terra/internal/config"
	"github.com/JaimeStill/terra/internal/infrastructure"
	"github.com/JaimeStill/terra/internal/worker"
	"github.com/JaimeStill/terra/pkg/database"
	"github.com/JaimeStill/terra/pkg/pagination"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Database: database.Config{
			Host:            "localhost",
			Port:            5432,
			Name:            "terra",
			User:            "terra",
			Password:        "terra",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    1,
			ConnMaxLifetime: "15m",
			ConnTimeout:     "5s",
		},
		API: config.APIConfig{
			BasePath:   "/api",
			Pagination: pagination.Config{DefaultPageSize: 20, MaxPageSize: 100},
		},
	}
	cfg.Maintenance.RetentionAt = "03:00"
	cfg.Maintenance.RollupAt = "00:15"

	infra, err := infrastructure.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { infra.Database.Connection().Close() })

	w, err := worker.New(cfg, infra)
	require.NoError(t, err)

	return buildRouter(infra, w)
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzBeforeStartup(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body readiness
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "not ready", body.Status)
	assert.False(t, body.Broker.Enabled)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
