package api

import (
	"context"
	"inboxlens/internal/coalesce"
	"inboxlens/internal/corrections"
	"inboxlens/internal/ports"
	"inboxlens/internal/threaddata"
	"inboxlens/internal/types"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

const notifyTimeout = 10 * time.Second

// Handler exposes the local API the host UI talks to: discovery events in,
// result fan-out through the notifier, edits into the corrections batcher.
type Handler struct {
	Coalescer *coalesce.Coalescer
	Service   *threaddata.Service
	Batcher   *corrections.Batcher
	Notifier  ports.Notifier
}

func NewHandler(c *coalesce.Coalescer, s *threaddata.Service, b *corrections.Batcher, n ports.Notifier) *Handler {
	return &Handler{
		Coalescer: c,
		Service:   s,
		Batcher:   b,
		Notifier:  n,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/discover", h.handleDiscover)
	mux.HandleFunc("/v1/labels", h.handleLabels)
	mux.HandleFunc("/v1/corrections", h.handleCorrection)
	mux.HandleFunc("/v1/corrections/flush", h.handleFlush)
	mux.HandleFunc("/v1/teardown", h.handleTeardown)
	mux.HandleFunc("/v1/records", h.handleRecords)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

type discoverRequest struct {
	ID string `json:"id"`
}

// handleDiscover records interest in one discovered item. The response is
// always immediate; the result, if any, arrives later through the notifier.
func (h *Handler) handleDiscover(w http.ResponseWriter, r *http.Request) {
	var req discoverRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.ID == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	h.Coalescer.Register(req.ID, func(key string, data types.ThreadData) {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := h.Notifier.Notify(ctx, key, data); err != nil {
			log.WithError(err).WithField("id", key).Error("result notify failed")
		}
	})
	w.WriteHeader(http.StatusAccepted)
}

type labelsRequest struct {
	ID     string   `json:"id"`
	Labels []string `json:"labels"`
}

// handleLabels merges labels learned outside batch discovery, e.g. when the
// host opened the item's detail view.
func (h *Handler) handleLabels(w http.ResponseWriter, r *http.Request) {
	var req labelsRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.ID == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	h.Service.AddLabels(r.Context(), req.ID, req.Labels)
	w.WriteHeader(http.StatusAccepted)
}

type correctionRequest struct {
	SubjectID   string `json:"subject_id"`
	SubjectType string `json:"subject_type"`
	FieldName   string `json:"field_name"`
	NewValue    string `json:"new_value"`
}

func (h *Handler) handleCorrection(w http.ResponseWriter, r *http.Request) {
	var req correctionRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.SubjectID == "" || req.FieldName == "" {
		http.Error(w, "missing subject_id or field_name", http.StatusBadRequest)
		return
	}
	h.Batcher.AddCorrection(req.SubjectID, req.SubjectType, req.FieldName, req.NewValue)
	w.WriteHeader(http.StatusAccepted)
}

// handleFlush triggers the normal awaited delivery. Delivery faults are not
// surfaced to the host: it has no recovery action beyond re-editing, and a
// failed batch stays pending for a later attempt.
func (h *Handler) handleFlush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.Batcher.SendBatch(r.Context()); err != nil {
		log.WithError(err).Debug("flush send failed; corrections remain pending")
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleTeardown is called when the hosting context is about to be torn down
// and an awaited round trip cannot be relied on to complete.
func (h *Handler) handleTeardown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Batcher.HasPendingCorrections() {
		h.Batcher.SendBeaconBatch()
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	records := h.Service.GetAllRecords(r.Context())
	if err := writeJSON(w, http.StatusOK, records); err != nil {
		http.Error(w, "failed to write response", http.StatusInternalServerError)
	}
}

// readJSON decodes a POST body, writing the error response itself on failure.
func readJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return false
	}
	defer func() {
		_ = r.Body.Close()
	}()
	if len(body) == 0 {
		http.Error(w, "empty body", http.StatusBadRequest)
		return false
	}
	if err := json.Unmarshal(body, out); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}
