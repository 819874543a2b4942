package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/MeKo-Tech/labelmorph/internal/runlog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recorded runs or show one run in detail",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to list")
	mustBind("history_cmd.limit", historyCmd.Flags().Lookup("limit"))
}

func runHistory(cmd *cobra.Command, args []string) error {
	path := viper.GetString("history")
	if path == "" {
		return fmt.Errorf("--history is required")
	}

	store, err := runlog.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if len(args) == 1 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid run id %q: %w", args[0], err)
		}
		return showRun(ctx, cmd.OutOrStdout(), store, id)
	}
	return listRuns(ctx, cmd.OutOrStdout(), store, viper.GetInt("history_cmd.limit"))
}

func listRuns(ctx context.Context, w io.Writer, store *runlog.Store, limit int) error {
	runs, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%5d  %s  %-6s  %-12s  scale %-8s  changed %-8d  %s -> %s\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Mode, r.Shape, r.Scale,
			r.Changed, r.Input, r.Output)
	}
	return nil
}

func showRun(ctx context.Context, w io.Writer, store *runlog.Store, id int64) error {
	r, err := store.Get(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "run %d: %s %s -> %s\n", r.ID, r.Mode, r.Input, r.Output)
	fmt.Fprintf(w, "started %s, elapsed %s, workers %d\n", r.StartedAt.Format("2006-01-02 15:04:05"), r.Elapsed, r.Workers)
	fmt.Fprintf(w, "shape %s, scale %s, changed pixels %d\n", r.Shape, r.Scale, r.Changed)
	for _, c := range r.Changes {
		fmt.Fprintf(w, "%10d %10d %10d %+10d\n", c.Label, c.Before, c.After, c.Delta())
	}
	return nil
}
