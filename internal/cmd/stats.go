package cmd

import (
	"fmt"
	"io"

	"github.com/MeKo-Tech/labelmorph/internal/labelio"
	"github.com/MeKo-Tech/labelmorph/internal/labelstats"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats <labels> [compare]",
	Short: "Print label counts, optionally compared with a second image",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printStats(cmd.OutOrStdout(), args)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func printStats(w io.Writer, paths []string) error {
	before, err := labelio.Read(paths[0])
	if err != nil {
		return err
	}
	counts := labelstats.Count(before)
	fmt.Fprintf(w, "%s: %s\n", paths[0], labelstats.Summarize(counts))

	if len(paths) == 1 {
		for _, label := range counts.Labels() {
			fmt.Fprintf(w, "%10d %10d\n", label, counts[label])
		}
		return nil
	}

	after, err := labelio.Read(paths[1])
	if err != nil {
		return err
	}
	changed, err := labelstats.ChangedPixels(before, after)
	if err != nil {
		return err
	}
	afterCounts := labelstats.Count(after)
	fmt.Fprintf(w, "%s: %s\n", paths[1], labelstats.Summarize(afterCounts))
	fmt.Fprintf(w, "changed pixels: %d\n", changed)
	fmt.Fprintf(w, "%10s %10s %10s %10s\n", "label", "before", "after", "delta")
	for _, c := range labelstats.Compare(counts, afterCounts) {
		fmt.Fprintf(w, "%10d %10d %10d %+10d\n", c.Label, c.Before, c.After, c.Delta())
	}
	return nil
}
