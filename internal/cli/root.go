// ABOUTME: Command-line interface for the bustap binaries
// ABOUTME: Builds the cobra command tree on top of the viper config
package cli

import (
	"fmt"
	"io"

	"github.com/Resonate-Protocol/bustap/internal/config"
	"github.com/Resonate-Protocol/bustap/internal/logger"
	"github.com/Resonate-Protocol/bustap/internal/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// defaultTUILogFile receives logs while the TUI owns the terminal
const defaultTUILogFile = "bustap.log"

// state is shared by every command of one invocation
type state struct {
	cfg        *config.Config
	configPath string
	settings   *config.Settings
	log        *logrus.Logger
	closeLog   func() error
}

func newState() *state {
	return &state{
		cfg: config.New(),
		log: logrus.New(),
	}
}

// RootCommand creates the bustap command tree
func RootCommand() *cobra.Command {
	return newRootCommand(newState())
}

func newRootCommand(st *state) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "bustap",
		Short:         "Real-time-safe audio bus tap",
		Long:          "Copy audio from a real-time callback into an output sink without blocking the callback.",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := st.setupFlags(rootCmd); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		runCommand(st),
		receiveCommand(st),
		backendsCommand(st),
		devicesCommand(st),
		receiversCommand(st),
		versionCommand(),
	)

	return rootCmd
}

// ReceiverCommand creates a standalone root that only runs the receiver
func ReceiverCommand() *cobra.Command {
	st := newState()

	cmd := receiveCommand(st)
	cmd.Use = "bustap-receiver"
	cmd.Version = version.Version
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	if err := st.setupFlags(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// setupFlags adds the global flags and loads the config before any command runs
func (st *state) setupFlags(cmd *cobra.Command) error {
	flags := cmd.PersistentFlags()
	flags.StringVar(&st.configPath, "config", "", "Config file (default: search /etc/bustap, ~/.config/bustap and .)")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "text", "Log format (text, json)")
	flags.String("log-file", "", "Append logs to this file")

	for key, name := range map[string]string{
		"log.level":  "log-level",
		"log.format": "log-format",
		"log.file":   "log-file",
	} {
		if err := st.cfg.BindFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flags: %w", err)
		}
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return st.load()
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return st.close()
	}
	return nil
}

func (st *state) load() error {
	settings, err := st.cfg.Load(st.configPath)
	if err != nil {
		return err
	}
	st.settings = settings
	return nil
}

// setupLogger points the logger at the console and/or the configured file
func (st *state) setupLogger(console bool) error {
	opts := st.settings.Log.LoggerOptions(console)
	if !console && opts.File == "" {
		opts.File = defaultTUILogFile
	}
	closeLog, err := logger.Setup(st.log, opts)
	if err != nil {
		return err
	}
	st.closeLog = closeLog
	if file := st.cfg.File(); file != "" {
		st.log.WithField("file", file).Debug("Loaded config file")
	}
	return nil
}

func (st *state) close() error {
	if st.closeLog == nil {
		return nil
	}
	err := st.closeLog()
	st.closeLog = nil
	st.log.SetOutput(io.Discard)
	return err
}

// bindFlags maps command flags onto config keys
func (st *state) bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for key, name := range keys {
		if err := st.cfg.BindFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("error binding flags: %w", err)
		}
	}
	return nil
}
