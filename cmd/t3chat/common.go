package main

import (
	"context"
	"fmt"
	"time"

	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/adapters/id"
	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/adapters/tracing"
	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/api"
	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/chat"
	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/stream"
)

// newSession wires a chat session from the loaded configuration. The caller
// owns the returned shutdown function.
func newSession(listener chat.Listener) (*chat.Session, func(), error) {
	shutdown := func() {}
	if cfg.Telemetry.TracingEnabled {
		stop, err := tracing.InitTracer("t3chat")
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init tracing: %w", err)
		}
		shutdown = func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			stop(ctx)
		}
	}

	apiClient := api.NewClient(
		cfg.API.BaseURL,
		cfg.API.AuthToken,
		time.Duration(cfg.API.TimeoutSeconds)*time.Second,
		cfg.API.UseMsgpack,
	)
	streamClient := stream.NewClient(cfg.API.BaseURL, cfg.API.AuthToken)

	session := chat.NewSession(apiClient, streamClient, id.New(), listener, chat.Options{
		DefaultModel:      cfg.Chat.DefaultModel,
		FlushInterval:     time.Duration(cfg.Chat.FlushIntervalMs) * time.Millisecond,
		HistoryLimit:      cfg.Chat.HistoryLimit,
		UploadConcurrency: cfg.Upload.MaxConcurrent,
	})

	cleanup := func() {
		session.Close()
		shutdown()
	}
	return session, cleanup, nil
}
