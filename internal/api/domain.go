package api

import (
	"github.com/JaimeStill/terra/internal/audit"
	"github.com/JaimeStill/terra/internal/badges"
	"github.com/JaimeStill/terra/internal/hotspots"
	"github.com/JaimeStill/terra/internal/ledger"
	"github.com/JaimeStill/terra/internal/maintenance"
	"github.com/JaimeStill/terra/internal/stats"
	"github.com/JaimeStill/terra/internal/submissions"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Submissions submissions.System
	Hotspots    hotspots.System
	Profiles    ledger.Store
	Audit       audit.Logger
	Rollup      *maintenance.Rollup
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime) *Domain {
	db := runtime.Database.Connection()

	return &Domain{
		Submissions: submissions.New(db, runtime.Logger, runtime.Pagination),
		Hotspots:    hotspots.New(db, runtime.Logger),
		Profiles:    ledger.NewPostgresStore(db, runtime.Logger),
		Audit:       audit.New(db, runtime.Logger),
		Rollup:      maintenance.NewRollup(db, runtime.Logger),
	}
}

// Stats returns the handler for the read-only statistics views.
func (d *Domain) Stats(runtime *Runtime) *stats.Handler {
	return stats.NewHandler(d.Profiles, d.Submissions, d.Audit, d.Rollup, badges.Default(), runtime.Logger)
}
