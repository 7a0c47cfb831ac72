package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/taloschat/talos/internal/config"
	"github.com/taloschat/talos/internal/handler"
	"github.com/taloschat/talos/internal/ollama"
	"github.com/taloschat/talos/internal/service/chat"
	"github.com/taloschat/talos/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	// Load .env file; system environment alone is fine too.
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file, using system environment only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	if err := st.Init(); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize schema")
	}
	log.Info().Str("path", cfg.Store.Path).Msg("store ready")

	endpoint := config.NewEndpoint(cfg.Ollama.URL)
	client := ollama.NewClient(endpoint, cfg.Ollama.Timeout)
	chatSvc := chat.NewService(st, client)

	if client.Status(ctx) {
		log.Info().Str("url", endpoint.URL()).Msg("ollama reachable")
	} else {
		log.Warn().Str("url", endpoint.URL()).Msg("ollama unreachable, turns will fail until it comes up")
	}

	router := handler.NewRouter(chatSvc, client, endpoint)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", serverCfg.Addr).Msg("talos backend listening")
	if err := runServer(ctx, srv); err != nil {
		log.Fatal().Err(err).Msg("server error")
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
