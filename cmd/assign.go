package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/courierdispatch/core/dispatch"
	"github.com/kilianp07/courierdispatch/core/model"
	"github.com/kilianp07/courierdispatch/infra/logger"
	"github.com/kilianp07/courierdispatch/internal/fixtures"
)

var (
	orderFile    string
	ridersFile   string
	criteriaFile string
	explain      bool
)

var assignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Rank riders for one order read from a file",
	Long: `Evaluates every rider of --riders against the order in --order and
prints the assignment result as JSON. Nothing is persisted.`,
	RunE: runAssign,
}

func init() {
	assignCmd.Flags().StringVar(&orderFile, "order", "", "order JSON file")
	assignCmd.Flags().StringVar(&ridersFile, "riders", "", "rider candidates JSON file")
	assignCmd.Flags().StringVar(&criteriaFile, "criteria", "", "optional criteria JSON file")
	assignCmd.Flags().BoolVar(&explain, "explain", false, "include every rider evaluation")
	_ = assignCmd.MarkFlagRequired("order")
	_ = assignCmd.MarkFlagRequired("riders")
	rootCmd.AddCommand(assignCmd)
}

func newOfflineEngine(cmd *cobra.Command) (*dispatch.Engine, model.AssignmentCriteria, []model.Candidate, error) {
	crit := model.DefaultCriteria()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, crit, nil, err
	}
	eng, err := dispatch.NewEngine(cfg.Dispatch, logger.New("cli"))
	if err != nil {
		return nil, crit, nil, err
	}
	if criteriaFile != "" {
		if crit, err = fixtures.LoadCriteria(criteriaFile); err != nil {
			return nil, crit, nil, err
		}
	}
	pool, err := fixtures.LoadCandidates(ridersFile)
	if err != nil {
		return nil, crit, nil, fmt.Errorf("riders: %w", err)
	}
	return eng, crit, pool, nil
}

func runAssign(cmd *cobra.Command, args []string) error {
	eng, crit, pool, err := newOfflineEngine(cmd)
	if err != nil {
		return err
	}
	order, err := fixtures.LoadOrder(orderFile)
	if err != nil {
		return fmt.Errorf("order: %w", err)
	}
	res, err := eng.Assign(cmd.Context(), order, pool, crit)
	if err != nil {
		return err
	}
	if !explain {
		res.Evaluations = nil
	}
	return printJSON(cmd.OutOrStdout(), res)
}
