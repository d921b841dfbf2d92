package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tehqua/Vitalis/internal/config"
	"github.com/tehqua/Vitalis/internal/memory"
	"github.com/tehqua/Vitalis/internal/server"
)

var (
	servePort         int
	serveGlobalRPM    int
	servePerClientRPM int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Vitalis HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "HTTP server port")
	serveCmd.Flags().IntVar(&serveGlobalRPM, "global-rpm", 600, "total requests per minute across all clients (0 disables limiting)")
	serveCmd.Flags().IntVar(&servePerClientRPM, "client-rpm", 60, "requests per minute per client")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	var store *memory.Store
	store, err = memory.NewStore(cfg.SessionDBPath(), cfg.MaxConvLen)
	if err != nil {
		log.Warn().Err(err).Msg("session store unavailable")
		store = nil
	} else {
		defer store.Close()
	}

	engine, err := buildEngine(cfg, store)
	if err != nil {
		return err
	}

	opts := []server.Option{}
	if store != nil {
		opts = append(opts, server.WithSessionStore(store))

		sweeper := memory.NewSweeper(store, time.Duration(cfg.SessionTimeout)*time.Minute)
		if err := sweeper.Start(); err != nil {
			return fmt.Errorf("starting session sweeper: %w", err)
		}
		defer sweeper.Stop()
	}
	if serveGlobalRPM > 0 {
		opts = append(opts, server.WithRateLimiter(server.NewRateLimiter(serveGlobalRPM, servePerClientRPM)))
	}

	srv := server.NewServer(engine, opts...)

	addr := fmt.Sprintf(":%d", servePort)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().
		Str("addr", addr).
		Str("provider", cfg.Provider).
		Str("model", cfg.Model).
		Bool("sessions", store != nil).
		Msg("vitalis_serve_started")

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown_signal_received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("server_stopped")
	return nil
}
