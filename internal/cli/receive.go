// ABOUTME: The receive command
// ABOUTME: Plays websocket tap streams into a local output and advertises over mDNS
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Resonate-Protocol/bustap/internal/receiver"
	"github.com/spf13/cobra"
)

func receiveCommand(st *state) *cobra.Command {
	var advertise bool

	cmd := &cobra.Command{
		Use:   "receive",
		Short: "Receive tap streams over the network",
		Long:  "Accept one websocket tap stream at a time and play it into a local output backend.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.setupLogger(true); err != nil {
				return err
			}

			rs := st.settings.Receiver
			r, err := receiver.New(receiver.Config{
				Name:      rs.Name,
				Listen:    rs.Listen,
				Backend:   rs.Backend,
				Target:    rs.Target,
				Advertise: advertise,
				Logger:    st.log,
			})
			if err != nil {
				return fmt.Errorf("failed to create receiver: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serveUntilDone(ctx, r)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&advertise, "mdns", true, "Advertise the receiver over mDNS")
	flags.String("listen", "", "Listen address, e.g. :8928")
	flags.String("backend", "", "Output backend for playback")
	flags.String("target", "", "Output target for playback")
	flags.String("name", "", "Advertised receiver name")

	if err := st.bindFlags(cmd, map[string]string{
		"receiver.listen":  "listen",
		"receiver.backend": "backend",
		"receiver.target":  "target",
		"receiver.name":    "name",
	}); err != nil {
		panic(err)
	}

	return cmd
}

// serveUntilDone runs r until it fails or ctx is cancelled
func serveUntilDone(ctx context.Context, r *receiver.Receiver) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- r.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		r.Stop()
		return <-errChan
	}
}
