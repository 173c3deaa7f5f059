package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hostling/hostling/pkg/client"
	"github.com/spf13/cobra"
)

const requestTimeout = 15 * time.Second

// apiClient builds a client for the daemon API from the persistent flags.
func apiClient(flags *globalFlags) *client.Client {
	cfg := client.DefaultConfig()
	if flags.APIURL != "" {
		cfg.BaseURL = flags.APIURL
	}
	return client.New(cfg)
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		return
	}
	fmt.Println(string(data))
}

func createStartCommand(flags *globalFlags) *cobra.Command {
	var req client.StartRequest
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a resource and mark it active",
		RunE: func(_ *cobra.Command, _ []string) error {
			if req.ID == "" {
				return fmt.Errorf("resource id is required")
			}
			ctx, cancel := requestContext()
			defer cancel()
			c := apiClient(flags)
			if err := c.Start(ctx, req); err != nil {
				return err
			}
			st, err := c.Status(ctx, req.ID)
			if err != nil {
				return err
			}
			printJSON(st)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.ID, "id", "", "resource id")
	cmd.Flags().StringVar(&req.Kind, "kind", "bot", "resource kind (bot or website)")
	cmd.Flags().StringVar(&req.FilePath, "file", "", "entrypoint file or directory")
	cmd.Flags().StringVar(&req.Config, "resource-config", "", "opaque resource configuration")
	return cmd
}

func createStopCommand(flags *globalFlags) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a resource and mark it stopped",
		RunE: func(_ *cobra.Command, _ []string) error {
			if id == "" {
				return fmt.Errorf("resource id is required")
			}
			ctx, cancel := requestContext()
			defer cancel()
			return apiClient(flags).Stop(ctx, id)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "resource id")
	return cmd
}

func createRestartCommand(flags *globalFlags) *cobra.Command {
	var req client.StartRequest
	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart a resource",
		RunE: func(_ *cobra.Command, _ []string) error {
			if req.ID == "" {
				return fmt.Errorf("resource id is required")
			}
			ctx, cancel := requestContext()
			defer cancel()
			c := apiClient(flags)
			if err := c.Restart(ctx, req); err != nil {
				return err
			}
			st, err := c.Status(ctx, req.ID)
			if err != nil {
				return err
			}
			printJSON(st)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.ID, "id", "", "resource id")
	cmd.Flags().StringVar(&req.Kind, "kind", "", "resource kind (defaults to the stored record)")
	cmd.Flags().StringVar(&req.FilePath, "file", "", "entrypoint file or directory")
	cmd.Flags().StringVar(&req.Config, "resource-config", "", "opaque resource configuration")
	return cmd
}

func createStatusCommand(flags *globalFlags) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show desired and actual status of a resource",
		RunE: func(_ *cobra.Command, _ []string) error {
			if id == "" {
				return fmt.Errorf("resource id is required")
			}
			ctx, cancel := requestContext()
			defer cancel()
			st, err := apiClient(flags).Status(ctx, id)
			if err != nil {
				return err
			}
			printJSON(st)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "resource id")
	return cmd
}

func createListCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all resources with their desired and actual status",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := requestContext()
			defer cancel()
			sts, err := apiClient(flags).List(ctx)
			if err != nil {
				return err
			}
			printJSON(sts)
			return nil
		},
	}
}

func createReconcileCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Trigger a reconciliation sweep on the daemon",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := requestContext()
			defer cancel()
			if err := apiClient(flags).Reconcile(ctx); err != nil {
				return err
			}
			fmt.Println("reconcile triggered")
			return nil
		},
	}
}
