package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	bundlecmd "fledge/cmd/fledge-support/bundle"
	"fledge/cmd/fledge-support/ui"
	"fledge/config"
	"fledge/internal/buildinfo"
	"fledge/internal/logging"

	"github.com/spf13/cobra"
)

func main() {
	var (
		debug         bool
		noInteraction bool
		configPath    string
		cfg           config.Config
	)
	if err := logging.Configure(logging.LevelWarn, logging.FormatText); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:           "fledge-support",
		Short:         "Build and manage Fledge support bundles",
		Version:       buildinfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = *loaded

			level := cfg.LogLevel
			if level == "" {
				level = logging.LevelWarn
			}
			if debug {
				level = logging.LevelDebug
			}
			if err := logging.Configure(level, cfg.LogFormat); err != nil {
				return err
			}

			ui.ConfigureInteraction(noInteraction)
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&noInteraction, "no-interaction", false, "Plain output without spinners or colour")
	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $FLEDGE_ROOT/etc/support.yaml)")

	root.AddCommand(bundlecmd.BuildCmd(&cfg))
	root.AddCommand(bundlecmd.ListCmd(&cfg))
	root.AddCommand(bundlecmd.PruneCmd(&cfg))
	root.AddCommand(bundlecmd.UploadCmd(&cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
