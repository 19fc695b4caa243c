package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sandevgo/factbot/internal/core"
)

type QuotaReader interface {
	Remaining(ctx context.Context, uid string, loc *time.Location) (core.Remaining, error)
}

type QuotaHandler struct {
	quota QuotaReader
	plans core.PlanResolver
}

func NewQuotaHandler(quota QuotaReader, plans core.PlanResolver) *QuotaHandler {
	return &QuotaHandler{quota: quota, plans: plans}
}

func (h *QuotaHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/quota", h.Remaining).Methods(http.MethodGet)
	router.HandleFunc("/api/user-plan", h.Plan).Methods(http.MethodGet)
}

func (h *QuotaHandler) Remaining(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid := strings.TrimSpace(r.URL.Query().Get("uid"))
	if core.IsAnonymous(uid) {
		writeError(ctx, w, &core.ValidationError{Field: "uid", Reason: "is required"})
		return
	}

	loc := time.UTC
	if tz := strings.TrimSpace(r.URL.Query().Get("timezone")); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			writeError(ctx, w, &core.ValidationError{Field: "timezone", Reason: "unknown timezone " + tz})
			return
		}
		loc = l
	}

	rem, err := h.quota.Remaining(ctx, uid, loc)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, rem)
}

// Plan never fails on lookup errors; the resolver already defaults to free.
func (h *QuotaHandler) Plan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid := strings.TrimSpace(r.URL.Query().Get("uid"))
	if uid == "" {
		writeError(ctx, w, &core.ValidationError{Field: "uid", Reason: "is required"})
		return
	}
	plan, _ := h.plans.ResolvePlan(ctx, uid)
	writeJSON(w, http.StatusOK, map[string]core.Plan{"plan": plan})
}
