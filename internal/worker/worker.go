// Package worker assembles the verification pipeline and its triggers:
// the event subscriber, the reprocess publisher, and the maintenance
// scheduler. cmd/server starts all of them; cmd/terractl drives single
// operations through the same wiring.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JaimeStill/terra/internal/audit"
	"github.com/JaimeStill/terra/internal/badges"
	"github.com/JaimeStill/terra/internal/config"
	"github.com/JaimeStill/terra/internal/events"
	"github.com/JaimeStill/terra/internal/hotspots"
	"github.com/JaimeStill/terra/internal/infrastructure"
	"github.com/JaimeStill/terra/internal/ledger"
	"github.com/JaimeStill/terra/internal/maintenance"
	"github.com/JaimeStill/terra/internal/submissions"
	"github.com/JaimeStill/terra/internal/verification"
	"github.com/JaimeStill/terra/internal/vision"
	"github.com/JaimeStill/terra/pkg/lifecycle"
)

// Worker holds the verification systems built from one configuration.
type Worker struct {
	Submissions submissions.System
	Hotspots    hotspots.System
	Profiles    ledger.Store
	Audit       audit.Logger
	Retention   *maintenance.Retention
	Rollup      *maintenance.Rollup
	Scheduler   *maintenance.Scheduler

	// Publisher is nil when no broker is configured.
	Publisher *events.Publisher

	cfg    *config.Config
	infra  *infrastructure.Infrastructure
	logger *slog.Logger

	once       sync.Once
	pipeline   *verification.Pipeline
	err        error
	subscriber atomic.Pointer[events.Subscriber]
}

// BrokerStatus reports the state of the event subscriber.
type BrokerStatus struct {
	Enabled        bool       `json:"enabled"`
	Connected      bool       `json:"connected"`
	LastDeliveryAt *time.Time `json:"last_delivery_at,omitempty"`
}

// New builds the stores, maintenance jobs, and publisher. The pipeline
// and its vision client are created on first use by Pipeline.
func New(cfg *config.Config, infra *infrastructure.Infrastructure) (*Worker, error) {
	db := infra.Database.Connection()
	logger := infra.Logger.With("module", "worker")

	subs := submissions.New(db, logger, cfg.API.Pagination)
	auditLog := audit.New(db, logger)

	retention := maintenance.NewRetention(auditLog, &cfg.Maintenance, logger)
	rollup := maintenance.NewRollup(db, logger)

	jobs, err := maintenance.Jobs(&cfg.Maintenance, retention, rollup)
	if err != nil {
		return nil, fmt.Errorf("maintenance jobs: %w", err)
	}

	w := &Worker{
		Submissions: subs,
		Hotspots:    hotspots.New(db, logger),
		Profiles:    ledger.NewPostgresStore(db, logger),
		Audit:       auditLog,
		Retention:   retention,
		Rollup:      rollup,
		Scheduler:   maintenance.NewScheduler(cfg.Maintenance.Location(), logger, jobs...),
		cfg:         cfg,
		infra:       infra,
		logger:      logger,
	}

	if cfg.Broker.Enabled() {
		w.Publisher = events.NewPublisher(&cfg.Broker, logger)
	}

	return w, nil
}

// Notifier returns the reprocess notifier, or nil without a broker.
func (w *Worker) Notifier() submissions.Notifier {
	if w.Publisher == nil {
		return nil
	}
	return w.Publisher
}

// Pipeline returns the verification pipeline, creating the vision
// client on the first call.
func (w *Worker) Pipeline(ctx context.Context) (*verification.Pipeline, error) {
	w.once.Do(func() {
		w.pipeline, w.err = w.buildPipeline(ctx)
	})
	return w.pipeline, w.err
}

func (w *Worker) buildPipeline(ctx context.Context) (*verification.Pipeline, error) {
	clientCfg := w.cfg.Vision.Client()
	client, err := vision.NewGenAIClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("vision: %w", err)
	}

	fetcher := vision.NewFetcher(
		&http.Client{Timeout: w.cfg.Vision.FetchTimeoutDuration()},
		w.infra.Storage,
		w.cfg.Vision.MaxImageSizeBytes(),
	).PassGCSURIs(clientCfg.ReadsGCS())
	detector := vision.NewGenAIDetector(client.Models, w.cfg.Vision.Model, fetcher, w.logger)

	award := ledger.Retrying(
		ledger.New(w.Profiles, badges.Default(), w.cfg.Verification.BonusMultiplier, w.logger),
		w.cfg.Verification.Retry(),
		w.logger,
	)

	return verification.New(verification.Deps{
		Submissions: w.Submissions,
		Hotspots:    w.Hotspots,
		Analyzer:    vision.NewAnalyzer(detector, w.logger),
		Ledger:      award,
		Audit:       w.Audit,
		Logger:      w.logger,
	}, w.cfg.Verification.Pipeline()), nil
}

// Start registers the publisher, the event subscriber, and, when enabled,
// the maintenance scheduler with the coordinator.
func (w *Worker) Start(lc *lifecycle.Coordinator) error {
	if w.Publisher != nil {
		if err := w.Publisher.Start(lc); err != nil {
			return fmt.Errorf("publisher start failed: %w", err)
		}

		p, err := w.Pipeline(lc.Context())
		if err != nil {
			return err
		}

		sub := events.NewSubscriber(
			&w.cfg.Broker,
			events.VerificationHandlers(p, w.logger),
			w.logger,
		)
		if err := sub.Start(lc); err != nil {
			return fmt.Errorf("subscriber start failed: %w", err)
		}
		w.subscriber.Store(sub)
	} else {
		w.logger.Warn("broker not configured, submissions are verified only on demand")
	}

	if w.cfg.Maintenance.Enabled {
		if err := w.Scheduler.Start(lc); err != nil {
			return fmt.Errorf("scheduler start failed: %w", err)
		}
	}
	return nil
}

// Broker returns the subscriber state. Enabled is false until Start has
// launched a subscriber.
func (w *Worker) Broker() BrokerStatus {
	sub := w.subscriber.Load()
	if sub == nil {
		return BrokerStatus{}
	}

	status := BrokerStatus{Enabled: true, Connected: sub.Ready()}
	if last := sub.LastDeliveryAt(); !last.IsZero() {
		status.LastDeliveryAt = &last
	}
	return status
}
