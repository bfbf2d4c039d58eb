package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/journey/internal/perf"
)

func newReportCmd(a *app) *cobra.Command {
	var metrics bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the performance report",
		Long:  "Show timings, cache effectiveness, preview line counts, and recent warnings collected across invocations.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, false, func(w *workspace) error {
				mon := w.session.Monitor()
				switch {
				case metrics:
					return writeMetrics(cmd.OutOrStdout(), mon)
				case a.flags.jsonMode:
					return printJSON(cmd.OutOrStdout(), mon.DetailedStats())
				}
				printReport(cmd.OutOrStdout(), mon.Report(), mon.TrendAnalysis())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&metrics, "metrics", false, "print Prometheus text exposition")
	return cmd
}

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show the monitor health status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, false, func(w *workspace) error {
				h := w.session.Monitor().HealthStatus()
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), h)
				}
				healthColor(h.Status).Fprintln(cmd.OutOrStdout(), h.Status)
				for _, issue := range h.Issues {
					fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", issue)
				}
				return nil
			})
		},
	}
}

// writeMetrics renders the monitor through its Prometheus collector.
func writeMetrics(w io.Writer, mon *perf.Monitor) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(perf.NewCollector(mon)); err != nil {
		return fmt.Errorf("register collector: %w", err)
	}
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func printReport(w io.Writer, r perf.Report, trend perf.TrendAnalysis) {
	s := r.Summary
	brand.Fprintln(w, "Journey performance")
	fmt.Fprintf(w, "  executions   %d (avg %s, max %s)\n", s.TotalExecutions, round(s.AverageExecutionTime), round(s.MaxExecutionTime))
	fmt.Fprintf(w, "  cache        %.0f%% hit rate\n", s.CacheHitRate*100)
	fmt.Fprintf(w, "  memory       %d KiB (peak %d KiB)\n", s.MemoryUsage>>10, s.PeakMemoryUsage>>10)
	fmt.Fprintf(w, "  trend        %s\n", trend.Trend)
	fmt.Fprint(w, "  health       ")
	healthColor(r.Health.Status).Fprintln(w, r.Health.Status)

	st := r.Statistics
	fmt.Fprintln(w)
	brand.Fprintln(w, "Preview lines")
	printTable(w, []string{"TOTAL", "ACTIVE", "DRAGGING", "CONNECTED", "HINTS", "CREATED", "DELETED"}, [][]string{{
		fmt.Sprint(st.TotalPreviewLines), fmt.Sprint(st.ActivePreviewLines), fmt.Sprint(st.DraggingPreviewLines),
		fmt.Sprint(st.ConnectedPreviewLines), fmt.Sprint(st.HintNodes), fmt.Sprint(st.CreatedCount), fmt.Sprint(st.DeletedCount),
	}})

	if len(r.RecentWarnings) > 0 {
		fmt.Fprintln(w)
		warn.Fprintln(w, "Recent warnings")
		for _, rec := range r.RecentWarnings {
			fmt.Fprintf(w, "  %s  %s: %s\n", rec.Timestamp.Format(time.TimeOnly), rec.Kind, rec.Message)
		}
	}
	if len(r.RecentErrors) > 0 {
		fmt.Fprintln(w)
		bad.Fprintln(w, "Recent errors")
		for _, rec := range r.RecentErrors {
			fmt.Fprintf(w, "  %s  %s: %s\n", rec.Timestamp.Format(time.TimeOnly), rec.Kind, rec.Message)
		}
	}
}

func round(d time.Duration) time.Duration {
	return d.Round(time.Microsecond)
}
