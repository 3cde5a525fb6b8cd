// ABOUTME: The run command
// ABOUTME: Drives a tap from a test tone or audio file into the configured sink
package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Resonate-Protocol/bustap/internal/app"
	"github.com/Resonate-Protocol/bustap/internal/source"
	"github.com/spf13/cobra"
)

type runOptions struct {
	source string
	noTUI  bool
	watch  bool
}

func runCommand(st *state) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a tap",
		Long:  "Feed a test tone or audio file through a tap at the host block rate and stream it to the configured sink.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTap(cmd, st, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.source, "source", source.Tone, "Audio source: \"tone\" or a .mp3, .flac or .wav file")
	flags.BoolVar(&opts.noTUI, "no-tui", false, "Disable the TUI and log to the console")
	flags.BoolVar(&opts.watch, "watch", true, "Apply target and mute changes from the config file while running")
	flags.String("backend", "", "Output backend (see 'bustap backends')")
	flags.String("target", "", "Sink target; empty selects the backend default")
	flags.Bool("mute", false, "Silence the pass-through signal")
	flags.Int("samplerate", 0, "Stream sample rate in Hz")
	flags.Int("ringframes", 0, "Ring capacity in frames (power of two)")
	flags.Int("blockframes", 0, "Frames per host callback")
	flags.Duration("retry", 0, "Minimum interval between reopen attempts on the same target")
	flags.Bool("heal", true, "Reopen the sink after a write failure")
	flags.String("metrics", "", "Listen address for the Prometheus endpoint, e.g. :9108")

	if err := st.bindFlags(cmd, map[string]string{
		"tap.backend":       "backend",
		"tap.target":        "target",
		"tap.mute":          "mute",
		"tap.samplerate":    "samplerate",
		"tap.ringframes":    "ringframes",
		"tap.blockframes":   "blockframes",
		"tap.retryinterval": "retry",
		"tap.heal":          "heal",
		"metrics.listen":    "metrics",
	}); err != nil {
		panic(err)
	}

	return cmd
}

func runTap(cmd *cobra.Command, st *state, opts runOptions) error {
	useTUI := !opts.noTUI
	if err := st.setupLogger(!useTUI); err != nil {
		return err
	}

	cfg := app.Config{
		Settings: st.settings,
		Source:   opts.source,
		UseTUI:   useTUI,
		Logger:   st.log,
	}
	if opts.watch && st.cfg.File() != "" {
		cfg.Watch = st.cfg.Watch
	}

	a, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to start tap: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.Run(ctx)
}

