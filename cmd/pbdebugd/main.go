// Command pbdebugd hosts the debugger-protocol adapter as a standalone
// process: "serve" for the normal editor-shell embedding, "launch" for
// scripting a single session from a terminal, "version" for printing
// the build version, and "doctor" for diagnosing whether the host's
// transport backend is usable.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/purebasic-tools/pbdebug/internal/config"
	"github.com/purebasic-tools/pbdebug/internal/logging"
)

// Process exit codes: 0 clean session, 2 launch failure, 3 handshake
// failure, 4 transport broken, 5 invalid configuration.
const (
	exitOK               = 0
	exitLaunchFailure    = 2
	exitHandshakeFailure = 3
	exitTransportBroken  = 4
	exitInvalidConfig    = 5
)

func main() {
	var configPath string
	var debugFlag bool

	root := &cobra.Command{
		Use:     "pbdebugd",
		Short:   "PureBasic debugger-protocol engine host",
		Long:    "Hosts the PureBasic debugger-protocol engine: launches debuggees, speaks the wire protocol, and exposes a small command vocabulary to an editor shell.",
		Version: version,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (optional; defaults are used if absent)")
	root.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable verbose logging")

	loadDeps := func() (config.Config, logging.Logger, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return cfg, nil, err
		}
		if debugFlag {
			cfg.Debug = true
		}
		if err := cfg.Validate(); err != nil {
			return cfg, nil, err
		}
		return cfg, logging.New(logging.Config{Debug: cfg.Debug}), nil
	}

	root.AddCommand(serveCmd(loadDeps))
	root.AddCommand(launchCmd(loadDeps))
	root.AddCommand(versionCmd())
	root.AddCommand(doctorCmd(loadDeps))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitInvalidConfig)
	}
}
