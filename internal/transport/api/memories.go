package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sandevgo/factbot/internal/core"
	"github.com/sandevgo/factbot/internal/service/memory"
)

type MemoryService interface {
	List(ctx context.Context, uid string, limit int) ([]core.MemoryRecord, error)
	Add(ctx context.Context, uid string, c memory.Candidate) (core.MemoryRecord, error)
	Forget(ctx context.Context, uid, id string) error
	Relevant(ctx context.Context, uid, contextText string, limit int) memory.Selection
}

const listLimit = 100

type createMemoryRequest struct {
	UID string `json:"uid"`
	memory.Candidate
}

type memoriesResponse struct {
	Memories []core.MemoryRecord `json:"memories"`
}

type MemoryHandler struct {
	memories MemoryService
}

func NewMemoryHandler(memories MemoryService) *MemoryHandler {
	return &MemoryHandler{memories: memories}
}

func (h *MemoryHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/memories", h.List).Methods(http.MethodGet)
	router.HandleFunc("/api/memories", h.Create).Methods(http.MethodPost)
	router.HandleFunc("/api/memories/relevant", h.Relevant).Methods(http.MethodGet)
	router.HandleFunc("/api/memories/{id}", h.Delete).Methods(http.MethodDelete)
}

func (h *MemoryHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, err := memoryUID(r.URL.Query().Get("uid"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	records, err := h.memories.List(ctx, uid, listLimit)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, memoriesResponse{Memories: records})
}

func (h *MemoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body createMemoryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&body); err != nil {
		writeError(ctx, w, &core.ValidationError{Reason: "invalid JSON payload"})
		return
	}
	uid, err := memoryUID(body.UID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if body.Source == "" {
		body.Source = "manual"
	}

	rec, err := h.memories.Add(ctx, uid, body.Candidate)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *MemoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, err := memoryUID(r.URL.Query().Get("uid"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	if err := h.memories.Forget(ctx, uid, mux.Vars(r)["id"]); err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *MemoryHandler) Relevant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	uid, err := memoryUID(q.Get("uid"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	limit := memory.DefaultLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(ctx, w, &core.ValidationError{Field: "limit", Reason: "must be a number"})
			return
		}
		limit = n
	}

	sel := h.memories.Relevant(ctx, uid, q.Get("context"), limit)
	writeJSON(w, http.StatusOK, memoriesResponse{Memories: sel.Records})
}

func memoryUID(raw string) (string, error) {
	uid := strings.TrimSpace(raw)
	if core.IsAnonymous(uid) {
		return "", errAnonymous
	}
	return uid, nil
}
