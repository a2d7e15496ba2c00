package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/user/crawlgraph/internal/delivery/http/request"
	"github.com/user/crawlgraph/internal/delivery/http/response"
	"github.com/user/crawlgraph/internal/entity"
	"github.com/user/crawlgraph/internal/graphstore"
	"github.com/user/crawlgraph/internal/usecase"
)

// maxBodyBytes bounds snapshot uploads.
const maxBodyBytes = 8 << 20

// Pinger reports whether a backing service is reachable.
type Pinger func(ctx context.Context) error

type Handler struct {
	mitigator  *usecase.Mitigator
	urlManager *usecase.URLManager
	checks     map[string]Pinger
	logger     *zap.Logger
}

// NewHandler wires the HTTP surface. urlManager may be nil when crawling is
// disabled; checks name the dependencies reported by the health endpoint.
func NewHandler(mitigator *usecase.Mitigator, urlManager *usecase.URLManager, checks map[string]Pinger, logger *zap.Logger) *Handler {
	return &Handler{
		mitigator:  mitigator,
		urlManager: urlManager,
		checks:     checks,
		logger:     logger,
	}
}

func (h *Handler) HandleIngestSnapshot(w http.ResponseWriter, r *http.Request) {
	var snap entity.Snapshot
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&snap); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res := h.mitigator.IngestSnapshot(snap)
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	h.writeJSON(w, status, res)
}

func (h *Handler) HandleRecordTransition(w http.ResponseWriter, r *http.Request) {
	var req request.TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.FromNodeID == "" || req.ToNodeID == "" {
		h.writeJSONError(w, "fromNodeId and toNodeId are required", http.StatusBadRequest)
		return
	}

	edge, err := h.mitigator.RecordTransition(usecase.TransitionInput{
		FromNodeID: req.FromNodeID,
		ToNodeID:   req.ToNodeID,
		Action:     entity.Action{Type: req.ActionType, Selector: req.Selector, Text: req.Text},
		Weight:     req.Weight,
		Timestamp:  req.Timestamp,
	})
	if errors.Is(err, graphstore.ErrNodeNotFound) {
		h.writeJSONError(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to record transition", zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusCreated, edge)
}

func (h *Handler) HandleSubmitCrawl(w http.ResponseWriter, r *http.Request) {
	if h.urlManager == nil {
		h.writeJSONError(w, "Crawling is disabled", http.StatusServiceUnavailable)
		return
	}

	var req request.SubmitCrawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if _, err := url.ParseRequestURI(req.URL); err != nil {
		h.writeJSONError(w, "Invalid URL format", http.StatusBadRequest)
		return
	}

	crawlID, err := h.urlManager.Submit(r.Context(), req.URL, req.ForceCrawl)
	if err != nil {
		if errors.Is(err, usecase.ErrURLRecentlyCrawled) {
			h.writeJSONError(w, err.Error(), http.StatusConflict)
			return
		}
		h.logger.Error("failed to submit URL", zap.String("url", req.URL), zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusAccepted, response.SubmitCrawlResponse{
		Status:         "success",
		Message:        "URL submitted for crawling",
		CrawlRequestID: crawlID,
	})
}

func (h *Handler) HandleStartMitigation(w http.ResponseWriter, r *http.Request) {
	report, err := h.mitigator.StartMitigation(r.Context())
	if errors.Is(err, usecase.ErrAlreadyMitigating) {
		h.writeJSONError(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		h.logger.Error("mitigation cycle failed", zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, report)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) HandleStopMitigation(w http.ResponseWriter, r *http.Request) {
	stopped := h.mitigator.StopMitigation()
	h.writeJSON(w, http.StatusOK, response.StopResponse{
		Stopped: stopped,
		State:   string(h.mitigator.State()),
	})
}

func (h *Handler) HandleMitigationState(w http.ResponseWriter, r *http.Request) {
	nodes, edges, clusters := h.mitigator.GraphCounts()
	h.writeJSON(w, http.StatusOK, response.StateResponse{
		State:          string(h.mitigator.State()),
		ShouldContinue: h.mitigator.ShouldContinueCrawling(),
		Nodes:          nodes,
		Edges:          edges,
		Clusters:       clusters,
	})
}

func (h *Handler) HandleRecentCycles(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	cycles, err := h.mitigator.RecentCycles(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list cycles", zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if cycles == nil {
		cycles = []*entity.CycleRecord{}
	}
	h.writeJSON(w, http.StatusOK, response.CyclesResponse{Cycles: cycles})
}

func (h *Handler) HandleExportGraph(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.mitigator.ExportGraph())
}

func (h *Handler) HandleGetNode(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	node, ok := h.mitigator.Node(key)
	if !ok {
		h.writeJSONError(w, graphstore.ErrNodeNotFound.Error(), http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, node)
}

func (h *Handler) HandleClearData(w http.ResponseWriter, r *http.Request) {
	err := h.mitigator.ClearData(r.Context())
	if errors.Is(err, usecase.ErrMitigationInProgress) {
		h.writeJSONError(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		h.logger.Error("failed to clear data", zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleCoverage(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.mitigator.GetCoverageStatistics())
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	health := map[string]string{"status": "ok"}
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			h.logger.Error("health check failed", zap.String("dependency", name), zap.Error(err))
			health[name] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		health[name] = "healthy"
	}
	h.writeJSON(w, status, health)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, response.ErrorResponse{Error: message})
}
