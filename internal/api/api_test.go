package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/JaimeStill/terra/internal/api"
	"github.com/JaimeStill/terra/internal/config"
	"github.com/JaimeStill/terra/internal/infrastructure"
	"github.com/JaimeStill/terra/pkg/database"
	"github.com/JaimeStill/terra/pkg/middleware"
	"github.com/JaimeStill/terra/pkg/pagination"
	"github.com/JaimeStill/terra/pkg/storage"
)

func validConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     "1m",
			WriteTimeout:    "30s",
			ShutdownTimeout: "30s",
		},
		Database: database.Config{
			Host:            "localhost",
			Port:            5432,
			Name:            "terra",
			User:            "terra",
			Password:        "terra",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: "15m",
			ConnTimeout:     "5s",
		},
		Storage: storage.Config{
			ContainerName: "cleanup-photos",
		},
		API: config.APIConfig{
			BasePath: "/api",
			CORS: middleware.CORSConfig{
				Enabled: false,
			},
			Pagination: pagination.Config{
				DefaultPageSize: 20,
				MaxPageSize:     100,
			},
		},
		ShutdownTimeout: "30s",
		Version:         "0.1.0",
	}
}

func setupInfra(t *testing.T) *infrastructure.Infrastructure {
	t.Helper()
	infra, err := infrastructure.New(validConfig())
	if err != nil {
		t.Fatalf("infrastructure.New() error = %v", err)
	}
	t.Cleanup(func() { infra.Database.Connection().Close() })
	return infra
}

type nopNotifier struct{}

func (nopNotifier) NotifyReprocess(context.Context, uuid.UUID) error { return nil }

func TestNewModule(t *testing.T) {
	cfg := validConfig()
	infra := setupInfra(t)

	m, err := api.NewModule(cfg, infra, nopNotifier{})
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}

	if m.Prefix() != "/api" {
		t.Errorf("prefix: got %s, want /api", m.Prefix())
	}
}

func TestNewModuleRoutes(t *testing.T) {
	m, err := api.NewModule(validConfig(), setupInfra(t), nil)
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}

	// Path validation fails before any query reaches the database.
	rec := httptest.NewRecorder()
	m.Serve(rec, httptest.NewRequest("GET", "/api/submissions/not-a-uuid", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	m.Serve(rec, httptest.NewRequest("GET", "/api/hotspots/near?lat=95&lng=0", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("hotspots near status: got %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	m.Serve(rec, httptest.NewRequest("DELETE", "/api/stats/verification", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rec.Code)
	}
}

func TestNewRuntime(t *testing.T) {
	cfg := validConfig()
	infra := setupInfra(t)

	runtime := api.NewRuntime(cfg, infra)

	if runtime.Pagination.DefaultPageSize != 20 {
		t.Errorf("pagination default page size: got %d, want 20", runtime.Pagination.DefaultPageSize)
	}
	if runtime.Pagination.MaxPageSize != 100 {
		t.Errorf("pagination max page size: got %d, want 100", runtime.Pagination.MaxPageSize)
	}
	if runtime.Logger == nil {
		t.Error("runtime logger is nil")
	}
	if runtime.Database == nil {
		t.Error("runtime database is nil")
	}
	if runtime.Storage != nil {
		t.Error("runtime storage should be nil without an account")
	}
	if runtime.Lifecycle == nil {
		t.Error("runtime lifecycle is nil")
	}
}

func TestNewDomain(t *testing.T) {
	runtime := api.NewRuntime(validConfig(), setupInfra(t))

	domain := api.NewDomain(runtime)
	if domain == nil {
		t.Fatal("NewDomain() returned nil")
	}
	if domain.Submissions == nil || domain.Hotspots == nil || domain.Profiles == nil || domain.Audit == nil || domain.Rollup == nil {
		t.Errorf("domain has unset systems: %+v", domain)
	}
	if domain.Stats(runtime) == nil {
		t.Error("Stats() returned nil")
	}
}
