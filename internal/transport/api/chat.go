package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sandevgo/factbot/internal/core"
	"github.com/sandevgo/factbot/internal/service/turn"
)

const maxBodySize = 1 << 20

type TurnHandler interface {
	Handle(ctx context.Context, req turn.Request) (turn.Result, error)
}

type chatRequest struct {
	Message  string         `json:"message"`
	UserID   string         `json:"userId"`
	History  []core.Message `json:"history"`
	Model    string         `json:"model"`
	Timezone string         `json:"timezone"`
}

type chatResponse struct {
	Result   string              `json:"result"`
	Evidence []core.EvidenceItem `json:"evidence"`
	TurnID   string              `json:"turnId"`
	Credits  int                 `json:"credits,omitempty"`
	Degraded []string            `json:"degraded,omitempty"`
	*core.AnonymousUsage
}

type ChatHandler struct {
	turns TurnHandler
	now   func() time.Time
}

func NewChatHandler(turns TurnHandler) *ChatHandler {
	return &ChatHandler{turns: turns, now: time.Now}
}

func (h *ChatHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/chat", h.Chat).Methods(http.MethodPost)
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&body); err != nil {
		writeError(ctx, w, &core.ValidationError{Reason: "invalid JSON payload"})
		return
	}

	uid := strings.TrimSpace(requestUID(r, body.UserID))
	req := turn.Request{
		UID:      uid,
		Message:  body.Message,
		History:  body.History,
		ModelID:  body.Model,
		Timezone: body.Timezone,
	}
	if core.IsAnonymous(uid) {
		counter := readCounter(r, h.now())
		req.Anonymous = &counter
	}

	res, err := h.turns.Handle(ctx, req)
	if err != nil {
		var limit *core.AnonymousLimitError
		if errors.As(err, &limit) {
			writeCounter(w, limit.Counter)
		}
		writeError(ctx, w, err)
		return
	}

	if res.Counter != nil {
		writeCounter(w, *res.Counter)
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Result:         res.Text,
		Evidence:       res.Evidence,
		TurnID:         res.TurnID,
		Credits:        res.Credits,
		Degraded:       res.Degraded,
		AnonymousUsage: res.Anonymous,
	})
}
