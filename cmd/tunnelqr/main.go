package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/PentesterFlow/tunnelqr/internal/logger"
	"github.com/PentesterFlow/tunnelqr/internal/shutdown"
	"github.com/PentesterFlow/tunnelqr/pkg/tunnelqr"
)

var (
	version = "1.0.0"

	// Global flags
	configFile string
	verbose    bool
	debug      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tunnelqr",
		Short: "tunnelqr - show the ngrok forwarding URL as a QR code",
		Long: `tunnelqr - polls the local ngrok agent for its public URL and prints it as a QR code.

The process stays in the foreground until interrupted so the forwarding address
can be scanned from a phone while the development server keeps running.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runDisplay,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Debug mode")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runDisplay(cmd *cobra.Command, args []string) error {
	cfg := tunnelqr.DefaultConfig()
	if configFile != "" {
		loaded, err := tunnelqr.LoadFromFile(configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if verbose {
		cfg.Verbose = true
	}
	if debug {
		cfg.Debug = true
	}

	log := newLogger(cfg)

	shutdownCfg := shutdown.DefaultConfig()
	shutdownCfg.OnShutdownStart = func(sig os.Signal) {
		log.Infof("Received %v, stopping", sig)
	}
	shutdownCfg.OnShutdownDone = func(elapsed time.Duration, errs []error) {
		log.WithDuration(elapsed).Debug("Shutdown complete")
	}
	handler := shutdown.New(shutdownCfg)
	defer handler.Stop()
	handler.RegisterFunc("display", func() {
		log.Info("QR display closed")
	})
	handler.ListenAndShutdown()

	app, err := tunnelqr.New(
		tunnelqr.WithConfig(cfg),
		tunnelqr.WithLogger(log),
	)
	if err != nil {
		return err
	}

	result, err := app.Run(handler.Context())
	if err != nil {
		return err
	}

	if handler.IsShuttingDown() {
		<-handler.Done()
	}

	log.Debugf("Finished in state %s after %d attempt(s)", result.State, result.Attempts)
	return nil
}

func newLogger(cfg *tunnelqr.Config) *logger.Logger {
	return logger.New(logger.Config{
		Level:  logger.FlagLevel(cfg.Verbose, cfg.Debug),
		Pretty: true,
		Output: os.Stderr,
	})
}
