package main

import (
	"context"
	"fmt"
	"time"

	"github.com/alfredjeanlab/chainreg/internal/client"
	"github.com/alfredjeanlab/chainreg/internal/server"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the chainreg service",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		grpcAddr, _ := cmd.Flags().GetString("grpc")

		if grpcAddr != "" {
			return checkGRPCHealth(grpcAddr)
		}

		status, err := crClient.Health(context.Background())
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}
		if jsonOutput {
			if err := printJSON(map[string]string{"status": status}); err != nil {
				return err
			}
		} else {
			fmt.Printf("Health: %s\n", status)
		}
		if status != "ok" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		return nil
	},
}

// checkGRPCHealth queries the gRPC health service, which turns NOT_SERVING
// while the ledger cannot be reconciled.
func checkGRPCHealth(addr string) error {
	hc, err := client.NewHealthClient(addr)
	if err != nil {
		return err
	}
	defer hc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	status, err := hc.Check(ctx, server.ServiceName)
	if err != nil {
		return fmt.Errorf("checking health: %w", err)
	}
	if jsonOutput {
		if err := printJSON(map[string]string{"status": status}); err != nil {
			return err
		}
	} else {
		fmt.Printf("Health: %s\n", status)
	}
	if status != "SERVING" {
		return fmt.Errorf("unhealthy: %s", status)
	}
	return nil
}

func init() {
	healthCmd.Flags().String("grpc", "", "check the gRPC health service at this address instead")
}
