package handler

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	chathandler "github.com/spindleworks/assistant/backend/internal/handler/chat"
	streamhandler "github.com/spindleworks/assistant/backend/internal/handler/stream"
	wshandler "github.com/spindleworks/assistant/backend/internal/handler/ws"
	middlewarePkg "github.com/spindleworks/assistant/backend/internal/middleware"
	"github.com/spindleworks/assistant/backend/internal/service/transcript"
	"github.com/spindleworks/assistant/backend/pkg/utils"
)

// NewRouter wires HTTP routes to the transcript controller.
func NewRouter(controller *transcript.Controller) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	chatHandler := chathandler.New(controller)
	streamHandler := streamhandler.New(controller)
	wsHandler := wshandler.New(controller)

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)

		api.Get("/stream", func(w http.ResponseWriter, r *http.Request) {
			userMessage := r.URL.Query().Get("message")
			if userMessage == "" {
				utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
				return
			}

			if err := streamHandler.HandleStreamRequest(r.Context(), w, userMessage); err != nil {
				log.Printf("[stream] error handling request: %v", err)
			}
		})
	})

	return r
}
