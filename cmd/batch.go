package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/courierdispatch/internal/fixtures"
)

var ordersFile string

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Assign a list of orders against one rider pool",
	RunE:  runBatch,
}

func init() {
	batchCmd.Flags().StringVar(&ordersFile, "orders", "", "orders JSON file")
	batchCmd.Flags().StringVar(&ridersFile, "riders", "", "rider candidates JSON file")
	batchCmd.Flags().StringVar(&criteriaFile, "criteria", "", "optional criteria JSON file")
	_ = batchCmd.MarkFlagRequired("orders")
	_ = batchCmd.MarkFlagRequired("riders")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	eng, crit, pool, err := newOfflineEngine(cmd)
	if err != nil {
		return err
	}
	orders, err := fixtures.LoadOrders(ordersFile)
	if err != nil {
		return fmt.Errorf("orders: %w", err)
	}
	res, err := eng.BatchAssign(cmd.Context(), orders, pool, crit)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), res)
}
