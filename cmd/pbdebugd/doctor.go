package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/purebasic-tools/pbdebug/internal/config"
	"github.com/purebasic-tools/pbdebug/internal/logging"
	"github.com/purebasic-tools/pbdebug/launcher"
	"github.com/purebasic-tools/pbdebug/transport"
)

// doctorCmd reports whether the host OS transport backend is usable
// and prints the resolved configuration.
func doctorCmd(loadDeps func() (config.Config, logging.Logger, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Report transport backend usability and resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadDeps()
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "PBDEBUG BAD")
				return err
			}

			backend := "fifo"
			if runtime.GOOS == "windows" {
				backend = "named-pipe"
			}

			ok := checkTransport(cmd.Context())
			status := "OK"
			if !ok {
				status = "BAD"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "PBDEBUG %s\n", status)
			fmt.Fprintf(cmd.OutOrStdout(), "transport_backend: %s\n", backend)
			fmt.Fprintf(cmd.OutOrStdout(), "handshake_timeout: %s\n", cfg.HandshakeTimeout)
			fmt.Fprintf(cmd.OutOrStdout(), "transport_connect_timeout: %s\n", cfg.TransportConnectTimeout)
			fmt.Fprintf(cmd.OutOrStdout(), "teardown_timeout: %s\n", cfg.TeardownTimeout)
			fmt.Fprintf(cmd.OutOrStdout(), "max_frame_size: %d\n", cfg.MaxFrameSize)
			if !ok {
				return fmt.Errorf("transport backend self-check failed")
			}
			return nil
		},
	}
}

// checkTransport exercises a real Prepare/Close round trip against the
// live OS backend without spawning anything, confirming the process
// has permission to create pipe nodes.
func checkTransport(ctx context.Context) bool {
	pipeID, err := launcher.NewPipeID()
	if err != nil {
		return false
	}
	l, err := transport.Prepare(pipeID)
	if err != nil {
		return false
	}
	defer l.Close()
	return true
}
