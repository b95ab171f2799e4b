package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/sectorpulse/sectorpulse/internal/heatmap"
	"github.com/sectorpulse/sectorpulse/internal/persistence"
	"github.com/sectorpulse/sectorpulse/internal/provider"
	"github.com/sectorpulse/sectorpulse/internal/telemetry"
)

// errNoData is the user-facing message when no snapshot is available yet.
const errNoData = "Unable to load sector data"

// envelope is the JSON response wrapper shared by all API endpoints.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Handlers implements the API endpoints.
type Handlers struct {
	service *heatmap.Service
	poller  *heatmap.Poller
	chain   *provider.Chain
	repo    persistence.SnapshotRepo // nil when history is disabled
}

// NewHandlers wires the endpoint implementations. repo may be nil.
func NewHandlers(service *heatmap.Service, poller *heatmap.Poller, chain *provider.Chain, repo persistence.SnapshotRepo) *Handlers {
	return &Handlers{
		service: service,
		poller:  poller,
		chain:   chain,
		repo:    repo,
	}
}

// healthResponse is the /health payload.
type healthResponse struct {
	Status    string                          `json:"status"`
	Snapshot  heatmap.Status                  `json:"snapshot"`
	Providers []telemetry.ProviderHealthStats `json:"providers"`
}

// Health reports service and provider health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	st := h.service.Status()

	providers := make([]telemetry.ProviderHealthStats, 0)
	for _, p := range h.chain.Providers() {
		providers = append(providers, p.Health().Stats())
	}

	status := "ok"
	if !st.HasData {
		status = "starting"
	} else if st.Stale {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Data: healthResponse{
			Status:    status,
			Snapshot:  st,
			Providers: providers,
		},
	})
}

// Categories serves the raw category list from the latest snapshot.
func (h *Handlers) Categories(w http.ResponseWriter, r *http.Request) {
	snap := h.service.Snapshot()
	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, envelope{Success: false, Error: errNoData})
		return
	}

	cats := snap.Categories
	if limit := queryInt(r, "limit", 0); limit > 0 && limit < len(cats) {
		cats = cats[:limit]
	}

	writeJSON(w, http.StatusOK, envelope{Success: true, Data: cats})
}

// Heatmap serves the packed tile geometry for the requested filter.
func (h *Handlers) Heatmap(w http.ResponseWriter, r *http.Request) {
	st := h.service.Status()
	if !st.HasData {
		msg := errNoData
		if st.LastError != "" {
			msg = errNoData + ": " + st.LastError
		}
		writeJSON(w, http.StatusServiceUnavailable, envelope{Success: false, Error: msg})
		return
	}

	mode := heatmap.ParseFilterMode(r.URL.Query().Get("filter"))
	limit := queryInt(r, "limit", 0)

	view := h.service.View(mode, limit)
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: view})
}

// History serves recent archived snapshot summaries.
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusNotImplemented, envelope{Success: false, Error: "snapshot history is not configured"})
		return
	}

	n := queryInt(r, "n", 20)
	recs, err := h.repo.Recent(r.Context(), n)
	if err != nil {
		log.Error().Err(err).Msg("history query failed")
		writeJSON(w, http.StatusInternalServerError, envelope{Success: false, Error: "failed to load snapshot history"})
		return
	}

	writeJSON(w, http.StatusOK, envelope{Success: true, Data: recs})
}

// Refresh queues an immediate refresh. The generation counter in the
// service guarantees a queued refresh cannot clobber newer data.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	queued := h.poller.TriggerNow()
	writeJSON(w, http.StatusAccepted, envelope{
		Success: true,
		Data:    map[string]bool{"queued": queued},
	})
}

// NotFound is the JSON 404 handler.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, http.StatusNotFound, envelope{Success: false, Error: "not found"})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
