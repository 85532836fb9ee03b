package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/spindleworks/assistant/backend/internal/service/transcript"
	"github.com/spindleworks/assistant/backend/pkg/utils"
)

// Handler exposes the transcript over plain REST.
type Handler struct {
	controller *transcript.Controller
}

// New creates the chat handler.
func New(controller *transcript.Controller) *Handler {
	return &Handler{controller: controller}
}

// RegisterRoutes mounts the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/transcript", h.handleGetTranscript)
	r.Post("/messages", h.handleSubmitMessage)
}

func (h *Handler) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.controller.Snapshot())
}

func (h *Handler) handleSubmitMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// The turn outlives this request; clients poll GET /transcript or hold
	// the SSE/WebSocket surface to watch the reply stream in.
	err := h.controller.Submit(context.Background(), payload.Text)
	switch {
	case errors.Is(err, transcript.ErrEmptyMessage):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, transcript.ErrTurnInFlight):
		utils.RespondError(w, http.StatusConflict, err.Error())
	case err != nil:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	default:
		utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	}
}
