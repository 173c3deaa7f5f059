package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hostling/hostling"
)

func createServeCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the hostling daemon",
		Long: `Run the hostling daemon: opens the record store, restores resources
marked active, starts the periodic health/reconcile/housekeeping tasks,
and serves the REST API until SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(flags)
		},
	}
}

func runServe(flags *globalFlags) error {
	cfg := hostling.DefaultConfig()
	if flags.ConfigPath != "" {
		loaded, err := hostling.LoadConfig(flags.ConfigPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if err := hostling.RegisterMetricsDefault(); err != nil {
		fmt.Printf("Warning: failed to register metrics: %v\n", err)
	}
	if cfg.Metrics.Listen != "" {
		go func() {
			if err := hostling.ServeMetrics(cfg.Metrics.Listen); err != nil {
				fmt.Printf("Metrics server error: %v\n", err)
			}
		}()
	}

	engine, err := hostling.New(cfg)
	if err != nil {
		return err
	}

	// Initial reconciliation restores anything already marked active, then
	// the periodic tasks take over.
	if err := engine.StartScheduler(context.Background()); err != nil {
		return err
	}

	server, err := hostling.NewHTTPServer(cfg.Server.Listen, cfg.Server.BasePath, engine)
	if err != nil {
		return err
	}
	fmt.Printf("hostling serving on %s%s\n", cfg.Server.Listen, cfg.Server.BasePath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("Shutting down...")
	_ = server.Close()
	if err := engine.Shutdown(); err != nil {
		fmt.Printf("Drain finished with errors: %v\n", err)
	}
	return nil
}
