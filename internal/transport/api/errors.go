package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sandevgo/factbot/internal/core"
	"github.com/sandevgo/factbot/internal/service/memory"
	"github.com/sandevgo/factbot/pkg/log"
)

var errAnonymous = errors.New("memories are not available for anonymous users")

type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Remaining any    `json:"remaining,omitempty"`
}

// statusOf maps an error to the status code and body the client sees.
func statusOf(err error) (int, errorBody) {
	var (
		verr     *core.ValidationError
		exceeded *core.QuotaExceededError
		limit    *core.AnonymousLimitError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, errorBody{Error: verr.Error()}
	case errors.As(err, &exceeded):
		return http.StatusPaymentRequired, errorBody{
			Error:     "quota",
			Message:   "You have used all credits available on your plan for now. Upgrade or wait for the next period.",
			Remaining: exceeded.Remaining,
		}
	case errors.As(err, &limit):
		return http.StatusTooManyRequests, errorBody{
			Error:     "limit_reached",
			Message:   "You've reached the free chat limit. Please sign in to continue using chat models.",
			Remaining: 0,
		}
	case errors.Is(err, errAnonymous):
		return http.StatusForbidden, errorBody{Error: err.Error()}
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: "not found"}
	case errors.Is(err, memory.ErrDuplicate):
		return http.StatusConflict, errorBody{Error: err.Error()}
	default:
		return http.StatusInternalServerError, errorBody{Error: "internal error"}
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status, body := statusOf(err)
	ev := log.FromCtx(ctx).Info()
	if status >= http.StatusInternalServerError {
		ev = log.FromCtx(ctx).Error()
	}
	ev.Err(err).Int("status", status).Msg("request failed")
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
