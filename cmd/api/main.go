package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/spindleworks/assistant/backend/internal/config"
	"github.com/spindleworks/assistant/backend/internal/handler"
	"github.com/spindleworks/assistant/backend/internal/model/assistant"
	"github.com/spindleworks/assistant/backend/internal/service/session"
	"github.com/spindleworks/assistant/backend/internal/service/transcript"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	profile := assistant.Default()
	if cfg.Chat.SystemPrompt != "" {
		profile.SystemPrompt = cfg.Chat.SystemPrompt
	}
	if cfg.Chat.Greeting != "" {
		profile.Greeting = cfg.Chat.Greeting
	}

	// The session handle is created exactly once; with no credentials the
	// controller still serves the transcript and reports the missing session
	// inline on each turn.
	var streamer transcript.TurnStreamer
	if cfg.AI.Enabled() {
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			log.Fatalf("failed to create chat model: %v", err)
		}

		manager, err := session.NewManager(ctx, chatModel, profile, cfg.AI.Stream)
		if err != nil {
			log.Fatalf("failed to initialize chat session: %v", err)
		}
		streamer = manager
		log.Println("chat session initialized successfully")
	} else {
		log.Println("ark credentials not configured, turns will fail until they are provided")
	}

	controller := transcript.New(streamer, profile.Greeting)
	router := handler.NewRouter(controller)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("spindle assistant backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
