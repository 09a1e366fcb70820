package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/courierdispatch/app/plugins"
	"github.com/kilianp07/courierdispatch/core/dispatch/logging"
	"github.com/kilianp07/courierdispatch/pkg/export"
)

var exportOpts struct {
	format string
	start  string
	end    string
	order  string
	rider  string
	kind   string
}

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Inspect the dispatch decision log",
}

var decisionsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export logged decisions as JSON or CSV",
	RunE:  runDecisionsExport,
}

func init() {
	f := decisionsExportCmd.Flags()
	f.StringVar(&exportOpts.format, "format", "json", "output format (json, csv)")
	f.StringVar(&exportOpts.start, "start", "", "earliest decision time (RFC3339)")
	f.StringVar(&exportOpts.end, "end", "", "latest decision time (RFC3339)")
	f.StringVar(&exportOpts.order, "order", "", "only decisions for this order")
	f.StringVar(&exportOpts.rider, "rider", "", "only decisions involving this rider")
	f.StringVar(&exportOpts.kind, "kind", "", "only decisions of this kind (assign, reassign, batch)")
	decisionsCmd.AddCommand(decisionsExportCmd)
	rootCmd.AddCommand(decisionsCmd)
}

func parseTimeFlag(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", name, err)
	}
	return t, nil
}

func runDecisionsExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	q := logging.LogQuery{OrderID: exportOpts.order, RiderID: exportOpts.rider, Kind: exportOpts.kind}
	if q.Start, err = parseTimeFlag("start", exportOpts.start); err != nil {
		return err
	}
	if q.End, err = parseTimeFlag("end", exportOpts.end); err != nil {
		return err
	}
	st, err := plugins.NewLogStore(cfg.Logging.Backend, cfg.Logging.Path)
	if err != nil {
		return err
	}
	if st == nil {
		return fmt.Errorf("decision logging is disabled")
	}
	defer st.Close()
	recs, err := st.Query(cmd.Context(), q)
	if err != nil {
		return err
	}
	return export.Write(cmd.OutOrStdout(), exportOpts.format, recs)
}
