package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/purebasic-tools/pbdebug/adapter"
	"github.com/purebasic-tools/pbdebug/internal/config"
	"github.com/purebasic-tools/pbdebug/internal/logging"
	"github.com/purebasic-tools/pbdebug/pberr"
)

func launchCmd(loadDeps func() (config.Config, logging.Logger, error)) *cobra.Command {
	var workDir string
	var unicode, stopOnEntry, stopOnEnd, bigEndian bool

	cmd := &cobra.Command{
		Use:   "launch <exe>",
		Short: "Launch a single debuggee and print its events as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadDeps()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitInvalidConfig)
			}
			a := adapter.New(cfg, log)
			sessionID, err := a.Launch(cmd.Context(), adapter.LaunchRequest{
				ExePath:     args[0],
				WorkDir:     workDir,
				Unicode:     unicode,
				StopOnEntry: stopOnEntry,
				StopOnEnd:   stopOnEnd,
				BigEndian:   bigEndian,
			})
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitCodeFor(err))
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			initialized := false
			for ev := range a.Events() {
				if ev.SessionID != sessionID {
					continue
				}
				_ = enc.Encode(ev)
				if ev.Kind == "initialized" {
					initialized = true
				}
				if ev.Kind == "exited" {
					os.Exit(exitOK)
				}
				if ev.Kind == "error" {
					// An error before Initialized can only come from the
					// engine's handshake phase.
					if !initialized {
						os.Exit(exitHandshakeFailure)
					}
					os.Exit(exitTransportBroken)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&workDir, "workdir", "", "working directory for the debuggee")
	cmd.Flags().BoolVar(&unicode, "unicode", true, "debuggee strings are utf-16le")
	cmd.Flags().BoolVar(&stopOnEntry, "stop-on-entry", true, "stop at program entry")
	cmd.Flags().BoolVar(&stopOnEnd, "stop-on-end", false, "stop at program exit")
	cmd.Flags().BoolVar(&bigEndian, "big-endian", false, "debuggee is big-endian")
	return cmd
}

// exitCodeFor maps a pberr.Kind to this command's process exit codes.
func exitCodeFor(err error) int {
	pe, ok := err.(*pberr.Error)
	if !ok {
		return exitInvalidConfig
	}
	switch pe.Kind {
	case pberr.KindLauncherFailed:
		return exitLaunchFailure
	case pberr.KindHandshakeFailed:
		return exitHandshakeFailure
	case pberr.KindTransportBroken, pberr.KindTransportTimeout:
		return exitTransportBroken
	default:
		return exitInvalidConfig
	}
}
