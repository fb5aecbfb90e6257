// Package api assembles the admin API module with all domain systems and route registration.
package api

import (
	"net/http"

	"github.com/JaimeStill/terra/internal/config"
	"github.com/JaimeStill/terra/internal/infrastructure"
	"github.com/JaimeStill/terra/internal/submissions"
	"github.com/JaimeStill/terra/pkg/middleware"
	"github.com/JaimeStill/terra/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
// notifier may be nil when no broker is configured.
func NewModule(
	cfg *config.Config,
	infra *infrastructure.Infrastructure,
	notifier submissions.Notifier,
) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)
	domain := NewDomain(runtime)

	mux := http.NewServeMux()
	registerRoutes(mux, domain, notifier, domain.Stats(runtime))

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Logger))

	return m, nil
}
