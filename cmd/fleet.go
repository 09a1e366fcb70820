package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/courierdispatch/auth"
	"github.com/kilianp07/courierdispatch/connectors/fleet"
)

var fleetCmd = &cobra.Command{
	Use:   "fleet",
	Short: "Fleet related commands",
}

var fleetLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List riders known to the fleet API",
	RunE:  runFleetLs,
}

func init() {
	fleetCmd.AddCommand(fleetLsCmd)
	rootCmd.AddCommand(fleetCmd)
}

func runFleetLs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !cfg.Fleet.Enabled() {
		return fmt.Errorf("fleet.url is not configured")
	}
	var opts []fleet.Option
	if cfg.Fleet.Auth.Enabled() {
		opts = append(opts, fleet.WithAuth(auth.NewClientCred(cfg.Fleet.Auth)))
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	riders, err := fleet.NewClient(cfg.Fleet.URL, opts...).Fetch(ctx)
	if err != nil {
		return err
	}
	for _, c := range riders {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\tavailable=%t\n", c.Rider.ID, c.Rider.Available)
	}
	return nil
}
