// ABOUTME: Informational commands
// ABOUTME: Lists output backends, playback devices and network receivers
package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Resonate-Protocol/bustap/internal/discovery"
	"github.com/Resonate-Protocol/bustap/internal/version"
	"github.com/Resonate-Protocol/bustap/pkg/audio/output"
	"github.com/spf13/cobra"
)

func backendsCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List output backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printBackends(cmd.OutOrStdout(), st.settings.Tap.Backend)
			return nil
		},
	}
}

func printBackends(w io.Writer, current string) {
	for _, name := range output.Backends() {
		marker := " "
		if name == current {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s\n", marker, name)
	}
}

func devicesCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List playback devices usable as targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := output.PlaybackDevices()
			if err != nil {
				return fmt.Errorf("failed to list devices: %w", err)
			}
			for _, d := range devices {
				fmt.Fprintln(cmd.OutOrStdout(), d)
			}
			return nil
		},
	}
}

func receiversCommand(st *state) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "receivers",
		Short: "Browse the network for receivers",
		Long:  "List receivers advertised over mDNS. Use mdns:<name> as a websocket target.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.setupLogger(true); err != nil {
				return err
			}

			m := discovery.NewManager(discovery.Config{Timeout: timeout, Logger: st.log})
			defer m.Stop()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			found, err := m.Browse(ctx)
			if err != nil {
				return err
			}
			printReceivers(cmd.OutOrStdout(), found)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", discovery.DefaultTimeout, "How long to listen for answers")
	return cmd
}

func printReceivers(w io.Writer, found []discovery.ReceiverInfo) {
	if len(found) == 0 {
		fmt.Fprintln(w, "No receivers found")
		return
	}
	for _, r := range found {
		fmt.Fprintf(w, "%s\t%s\n", r.Name, r.URL())
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// No config needed
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", version.Product, version.Version, version.Manufacturer)
		},
	}
}
