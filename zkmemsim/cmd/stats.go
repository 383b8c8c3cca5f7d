package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/zkmemsim/datarecording"
	"github.com/sarchlab/zkmemsim/ramtrace"
	"github.com/sarchlab/zkmemsim/system"
)

func newStatsCmd() *cobra.Command {
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the statistics recorded by a run with --record.",
		Long: "`stats --db FILE` lists the merge statistics of every kernel " +
			"run and the first recorded requests.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("db")
			kernelType, _ := cmd.Flags().GetString("kernel")
			limit, _ := cmd.Flags().GetInt("limit")

			_, err := os.Stat(path)
			if err != nil {
				return err
			}

			reader, err := datarecording.NewReader(path)
			if err != nil {
				return err
			}
			defer reader.Close()

			reader.MapTable(system.MergeStatsTable, system.MergeStat{})
			reader.MapTable(ramtrace.OpsTable, ramtrace.OpEntry{})

			out := cmd.OutOrStdout()

			err = printMergeStats(cmd.Context(), out, reader, kernelType)
			if err != nil {
				return err
			}

			return printOps(cmd.Context(), out, reader, limit)
		},
	}

	statsCmd.Flags().String("db", "", "SQLite file written by a recorded run.")
	statsCmd.Flags().String("kernel", "", "Only list the runs of this kernel type.")
	statsCmd.Flags().Int("limit", 10, "Number of requests to list. 0 lists all.")
	_ = statsCmd.MarkFlagRequired("db")

	return statsCmd
}

func printMergeStats(
	ctx context.Context,
	out io.Writer,
	reader datarecording.DataReader,
	kernelType string,
) error {
	params := datarecording.QueryParams{OrderBy: "Call"}
	if kernelType != "" {
		params.Where = "Kernel = ?"
		params.Args = []any{kernelType}
	}

	rows, total, err := reader.Query(ctx, system.MergeStatsTable, params)
	if err != nil {
		return fmt.Errorf("reading %s: %w", system.MergeStatsTable, err)
	}

	fmt.Fprintf(out, "%s: %d rows\n", system.MergeStatsTable, total)

	for _, row := range rows {
		st := row.(*system.MergeStat)
		fmt.Fprintf(out,
			"call %d %s: %d stages, prefetch lines %d -> %d, drain lines %d -> %d\n",
			st.Call, st.Kernel, st.Stages,
			st.PrefetchLinesBefore, st.PrefetchLinesAfter,
			st.DrainLinesBefore, st.DrainLinesAfter)
	}

	return nil
}

func printOps(
	ctx context.Context,
	out io.Writer,
	reader datarecording.DataReader,
	limit int,
) error {
	rows, total, err := reader.Query(ctx, ramtrace.OpsTable,
		datarecording.QueryParams{OrderBy: "ID", Limit: limit})
	if err != nil {
		return fmt.Errorf("reading %s: %w", ramtrace.OpsTable, err)
	}

	fmt.Fprintf(out, "%s: %d rows\n", ramtrace.OpsTable, total)

	for _, row := range rows {
		op := row.(*ramtrace.OpEntry)
		fmt.Fprintf(out, "id %d %s addr %d size %d delay %d deps [%s]\n",
			op.ID, op.FetchType, op.Addr, op.Size, op.Delay, op.Dependencies)
	}

	return nil
}
