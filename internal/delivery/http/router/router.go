package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/user/crawlgraph/internal/delivery/http/handler"
	"github.com/user/crawlgraph/internal/delivery/http/middleware"
	"github.com/user/crawlgraph/pkg/metrics"
)

func New(h *handler.Handler, m *metrics.Metrics, gatherer prometheus.Gatherer, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics(m))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HandleHealthCheck)

		r.Post("/snapshots", h.HandleIngestSnapshot)
		r.Post("/transitions", h.HandleRecordTransition)
		r.Post("/crawl", h.HandleSubmitCrawl)

		r.Route("/mitigation", func(r chi.Router) {
			r.Post("/start", h.HandleStartMitigation)
			r.Post("/stop", h.HandleStopMitigation)
			r.Get("/state", h.HandleMitigationState)
			r.Get("/cycles", h.HandleRecentCycles)
		})

		r.Get("/nodes/{key}", h.HandleGetNode)
		r.Get("/graph", h.HandleExportGraph)
		r.Delete("/graph", h.HandleClearData)
		r.Get("/coverage", h.HandleCoverage)
	})

	return r
}
