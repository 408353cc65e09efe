package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/flowpaste/flowpaste/internal/config"
	"github.com/flowpaste/flowpaste/internal/llm"
	"github.com/flowpaste/flowpaste/internal/orchestrator"
	"github.com/flowpaste/flowpaste/internal/privacy"
)

var (
	askProvider string
	askModel    string
	askBaseURL  string
	askPrivacy  bool
	askTimeout  time.Duration
)

var askCmd = &cobra.Command{
	Use:   "ask [prompt]",
	Short: "Send a prompt to the configured model and stream the answer",
	Long: `Send a prompt (arguments or stdin) to the local or cloud provider and
stream the answer to stdout.

With the privacy shield on, PII in the prompt is replaced by placeholders
before it leaves the machine and the original values are restored in the
final answer. Ctrl-C cancels the request.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "ask")
		defer span.End()

		prompt, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		cfg.WarnIfEnvFallbackKey()
		scanner, err := privacy.NewScanner(cfg.ScannerOptions()...)
		if err != nil {
			return fmt.Errorf("building scanner: %w", err)
		}
		pcfg, err := providerConfig(cfg, askProvider, askBaseURL, askModel)
		if err != nil {
			return err
		}

		opts := askOptions{
			Prompt:  prompt,
			Config:  pcfg,
			Privacy: cfg.PrivacyShield,
			Timeout: cfg.RequestTimeout,
			Scanner: scanner,
		}
		if cmd.Flags().Changed("privacy") {
			opts.Privacy = askPrivacy
		}
		if cmd.Flags().Changed("timeout") {
			opts.Timeout = askTimeout
		}

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runAsk(ctx, cmd.OutOrStdout(), llm.NewDefaultRegistry(nil), opts)
	},
}

type askOptions struct {
	Prompt  string
	Config  llm.Config
	Privacy bool
	Timeout time.Duration
	Scanner *privacy.Scanner
}

// runAsk runs a single request through an orchestrator and writes the answer
// to out. Deltas are streamed as they arrive unless the prompt was masked, in
// which case only the restored final text is written. Cancelling ctx cancels
// the request.
func runAsk(ctx context.Context, out io.Writer, providers orchestrator.ProviderResolver, opts askOptions) error {
	events := make(chan orchestrator.Event, 1024)
	// quit releases the sink once runAsk stops reading, so a publish blocked
	// under the orchestrator lock cannot stall orch.Close.
	quit := make(chan struct{})
	var orchOpts []orchestrator.Option
	if opts.Scanner != nil {
		orchOpts = append(orchOpts, orchestrator.WithScanner(opts.Scanner))
	}
	orch := orchestrator.New(providers, orchestrator.SinkFunc(func(ev orchestrator.Event) {
		select {
		case events <- ev:
		case <-quit:
		}
	}), orchOpts...)
	defer orch.Close()
	defer close(quit)

	h, err := orch.Start(ctx, orchestrator.StartRequest{
		Prompt:           opts.Prompt,
		Config:           opts.Config,
		UsePrivacyShield: opts.Privacy,
	})
	if err != nil {
		return err
	}
	if h.Masked {
		log.Info().Str("request_id", h.Token.ID).Msg("Prompt masked; the answer is shown once complete")
	}
	if opts.Timeout > 0 {
		timer := orch.ExpireAfter(h, opts.Timeout)
		defer timer.Stop()
	}

	done := ctx.Done()
	for {
		select {
		case <-done:
			done = nil
			// Publish runs under the orchestrator lock; keep draining while
			// the cancel goes through.
			go orch.Cancel(h.Token.ID)
		case ev := <-events:
			switch ev.Type {
			case orchestrator.EventDelta:
				if !h.Masked {
					if _, err := io.WriteString(out, ev.Content); err != nil {
						return err
					}
				}
			case orchestrator.EventDone:
				if h.Masked {
					_, _ = io.WriteString(out, ev.Content)
				}
				_, err := io.WriteString(out, "\n")
				return err
			case orchestrator.EventCancelled:
				return fmt.Errorf("request cancelled")
			case orchestrator.EventError:
				return fmt.Errorf("%s: %s", ev.Code, ev.Message)
			}
		}
	}
}

// providerConfig resolves the request configuration from cfg and optional
// flag overrides.
func providerConfig(cfg *config.Config, provider, baseURL, model string) (llm.Config, error) {
	kind := cfg.Provider
	if provider != "" {
		k, err := llm.ParseKind(provider)
		if err != nil {
			return llm.Config{}, err
		}
		kind = k
	}
	pcfg := cfg.ProviderConfig(kind)
	if baseURL != "" {
		pcfg.BaseURL = baseURL
	}
	if model != "" {
		pcfg.Model = model
	}
	return pcfg.WithDefaults(), nil
}

func init() {
	askCmd.Flags().StringVar(&askProvider, "provider", "", "provider: local|cloud (default from config)")
	askCmd.Flags().StringVar(&askModel, "model", "", "model name (default from config)")
	askCmd.Flags().StringVar(&askBaseURL, "base-url", "", "provider base URL (default from config)")
	askCmd.Flags().BoolVar(&askPrivacy, "privacy", true, "mask PII before sending (default from config)")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 0, "cancel the request after this duration (0 = no timeout)")
	rootCmd.AddCommand(askCmd)
}
