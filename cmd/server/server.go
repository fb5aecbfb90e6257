package main

import (
	"time"

	"github.com/JaimeStill/terra/internal/config"
	"github.com/JaimeStill/terra/internal/infrastructure"
	"github.com/JaimeStill/terra/internal/metrics"
	"github.com/JaimeStill/terra/internal/worker"
)

type Server struct {
	infra   *infrastructure.Infrastructure
	worker  *worker.Worker
	modules *Modules
	http    *httpServer
}

func NewServer(cfg *config.Config) (*Server, error) {
	metrics.Register()

	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}

	w, err := worker.New(cfg, infra)
	if err != nil {
		return nil, err
	}

	modules, err := NewModules(infra, w, cfg)
	if err != nil {
		return nil, err
	}

	router := buildRouter(infra, w)
	modules.Mount(router)

	infra.Logger.Info(
		"server initialized",
		"addr", cfg.Server.Addr(),
		"version", cfg.Version,
		"broker", cfg.Broker.Enabled(),
		"maintenance", cfg.Maintenance.Enabled,
	)

	return &Server{
		infra:   infra,
		worker:  w,
		modules: modules,
		http:    newHTTPServer(&cfg.Server, router, infra.Logger),
	}, nil
}

func (s *Server) Start() error {
	s.infra.Logger.Info("starting service")

	if err := s.infra.Start(); err != nil {
		return err
	}

	if err := s.worker.Start(s.infra.Lifecycle); err != nil {
		return err
	}

	if err := s.http.Start(s.infra.Lifecycle); err != nil {
		return err
	}

	go func() {
		s.infra.Lifecycle.WaitForStartup()
		s.infra.Logger.Info("all subsystems ready")
	}()

	return nil
}

func (s *Server) Shutdown(timeout time.Duration) error {
	s.infra.Logger.Info("initiating shutdown")
	return s.infra.Lifecycle.Shutdown(timeout)
}
