package cmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/flowpaste/flowpaste/internal/config"
	"github.com/flowpaste/flowpaste/internal/llm"
	"github.com/flowpaste/flowpaste/internal/privacy"
	"github.com/flowpaste/flowpaste/internal/server"
)

var (
	serveAddr string
	serveCORS []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the FlowPaste HTTP API",
	Long: `Start the HTTP API serving the privacy shield, the request orchestrator
and its Server-Sent Events stream at /v1/events.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config listen_addr)")
	serveCmd.Flags().StringSliceVar(&serveCORS, "cors-origin", nil, "allowed CORS origins (repeatable; \"*\" for any)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.WarnIfEnvFallbackKey()
	if serveAddr != "" {
		cfg.ListenAddr = serveAddr
	}

	scanner, err := privacy.NewScanner(cfg.ScannerOptions()...)
	if err != nil {
		return fmt.Errorf("building scanner: %w", err)
	}

	if len(cfg.APITokens) == 0 && !isLoopback(cfg.ListenAddr) {
		log.Warn().Str("addr", cfg.ListenAddr).Msg("FLOWPASTE_API_TOKENS not set and listening beyond loopback; the API is open to the network")
	}

	srv := server.NewServer(cfg, llm.NewDefaultRegistry(nil),
		server.WithScanner(scanner),
		server.WithCORSOrigins(serveCORS),
	)
	defer srv.Close()

	// No WriteTimeout: /v1/events is long-lived.
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info().
		Str("addr", cfg.ListenAddr).
		Str("provider", string(cfg.Provider)).
		Bool("privacy_shield", cfg.PrivacyShield).
		Int("api_tokens", len(cfg.APITokens)).
		Float64("rate_limit_rps", cfg.RateLimitRPS).
		Strs("categories", categoryNames(scanner.Categories())).
		Msg("flowpaste_serve_started")

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

	// Close the orchestrator and event streams first so Shutdown is not held
	// open by SSE clients.
	srv.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("server_stopped")
	return nil
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func categoryNames(cs []privacy.Category) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}
