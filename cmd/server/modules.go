package main

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JaimeStill/terra/internal/api"
	"github.com/JaimeStill/terra/internal/config"
	"github.com/JaimeStill/terra/internal/infrastructure"
	"github.com/JaimeStill/terra/internal/worker"
	"github.com/JaimeStill/terra/pkg/module"
)

type Modules struct {
	API *module.Module
}

func NewModules(infra *infrastructure.Infrastructure, w *worker.Worker, cfg *config.Config) (*Modules, error) {
	apiModule, err := api.NewModule(cfg, infra, w.Notifier())
	if err != nil {
		return nil, err
	}

	return &Modules{
		API: apiModule,
	}, nil
}

func (m *Modules) Mount(router *module.Router) {
	router.Mount(m.API)
}

type readiness struct {
	Status string              `json:"status"`
	Broker worker.BrokerStatus `json:"broker"`
}

// buildRouter serves the health endpoints and /metrics. Readiness depends on the
// database only; a disconnected broker is reported but the subscriber
// reconnects on its own.
func buildRouter(infra *infrastructure.Infrastructure, wk *worker.Worker) *module.Router {
	router := module.NewRouter()

	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	router.HandleNative("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body := readiness{Status: "ready", Broker: wk.Broker()}
		if !infra.Lifecycle.Ready() || !infra.Database.Ready() {
			body.Status = "not ready"
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(body)
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(body)
	})

	router.Handle("GET /metrics", promhttp.Handler())

	return router
}
