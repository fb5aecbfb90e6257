package api

import (
	"net/http"

	"github.com/JaimeStill/terra/internal/stats"
	"github.com/JaimeStill/terra/internal/submissions"
	"github.com/JaimeStill/terra/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	notifier submissions.Notifier,
	statsHandler *stats.Handler,
) {
	routes.Register(
		mux,
		domain.Submissions.Handler(notifier).Routes(),
		domain.Hotspots.Handler().Routes(),
	)
	routes.Register(mux, statsHandler.Routes()...)
}
