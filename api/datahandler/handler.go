package datahandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gabrielantonyxaviour/jedi-vault/api"
	"github.com/gabrielantonyxaviour/jedi-vault/auth"
	"github.com/gabrielantonyxaviour/jedi-vault/interfaces"
	"github.com/gabrielantonyxaviour/jedi-vault/metrics"
	"github.com/gabrielantonyxaviour/jedi-vault/storage"
)

// Handler serves one node's data API on top of a storage.NodeStore. Requests
// must carry a Bearer token signed by the organization and audience-bound to
// this node's identity.
type Handler struct {
	store    storage.NodeStore
	verifier *auth.Verifier
	log      *slog.Logger
}

// NewHandler creates a request handler for one node.
func NewHandler(store storage.NodeStore, verifier *auth.Verifier, log *slog.Logger) *Handler {
	return &Handler{store: store, verifier: verifier, log: log}
}

// RegisterRoutes mounts the data API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(h.requireToken).Post("/data/create", h.HandleCreate)
	r.With(h.requireToken).Post("/data/read", h.HandleRead)
	r.With(h.requireToken).Put("/data/update", h.HandleUpdate)
	r.With(h.requireToken).Delete("/data/delete/{record_id}", h.HandleDelete)
}

// requireToken rejects requests without a valid node-scoped bearer token.
func (h *Handler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			h.writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		issuer, err := h.verifier.Verify(token)
		if err != nil {
			h.log.Debug("Rejected token", "err", err)
			h.writeError(w, http.StatusUnauthorized, err)
			return
		}

		h.log.Debug("Authenticated request",
			slog.String("issuer", issuer),
			slog.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}

// HandleCreate stores the partial records of a create request.
//
// POST /data/create with body {"schema": ..., "data": [partialRecord, ...]}
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req api.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid create request: %w", err))
		return
	}
	if err := req.Schema.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	created := make([]interfaces.RecordID, 0, len(req.Data))
	for _, record := range req.Data {
		if err := h.store.Insert(r.Context(), req.Schema, record); err != nil {
			if errors.Is(err, storage.ErrDuplicateRecord) {
				h.writeError(w, http.StatusConflict, fmt.Errorf("record %s: %w", record.ID, err))
				return
			}
			h.writeError(w, http.StatusInternalServerError, err)
			return
		}
		created = append(created, record.ID)
	}

	metrics.RecordsStored.Add(float64(len(created)))
	h.writeJSON(w, http.StatusCreated, api.CreateResponse{CreatedIDs: created})
}

// HandleRead lists partial records matching a filter.
//
// POST /data/read with body {"schema": ..., "filter": {...}}
func (h *Handler) HandleRead(w http.ResponseWriter, r *http.Request) {
	var req api.ReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid read request: %w", err))
		return
	}
	if err := req.Schema.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	records, err := h.store.List(r.Context(), req.Schema, req.Filter)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if records == nil {
		records = []interfaces.PartialRecord{}
	}

	h.writeJSON(w, http.StatusOK, api.ReadResponse{Records: records})
}

// HandleUpdate patches the named fields of one record.
//
// PUT /data/update with body {"schema": ..., "id": ..., "update": {...}}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid update request: %w", err))
		return
	}
	if err := req.Schema.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ID == "" {
		h.writeError(w, http.StatusBadRequest, errors.New("id is required"))
		return
	}
	if len(req.Update) == 0 {
		h.writeError(w, http.StatusBadRequest, errors.New("update must name at least one field"))
		return
	}

	updated, err := h.store.Update(r.Context(), req.Schema, req.ID, req.Update)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	h.writeJSON(w, http.StatusOK, api.UpdateResponse{Updated: updated})
}

// HandleDelete removes one record. Deleting an absent record succeeds with
// deleted == false.
//
// DELETE /data/delete/{record_id}?schema=...
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := interfaces.ParseRecordID(chi.URLParam(r, "record_id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	schema := interfaces.SchemaID(r.URL.Query().Get("schema"))
	if err := schema.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	deleted, err := h.store.Delete(r.Context(), schema, id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	h.writeJSON(w, http.StatusOK, api.DeleteResponse{Deleted: deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, api.ErrorResponse{Error: err.Error()})
}
