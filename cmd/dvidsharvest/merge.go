package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dvidsharvest/pkg/merger"
	"dvidsharvest/pkg/ui"
)

var (
	// Merge command flags
	mergeDir       string
	mergeNumShards int
)

// mergeCmd represents the merge command
var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge existing day files into shard files",
	Long: `Merge the day files in a metadata directory into shard files.

Day files are read in filename order. The first row for each image id is
kept and later duplicates are dropped. Kept rows are dealt round-robin into
<basename>.0 ... <basename>.<n-1>.`,
	Example: `  dvidsharvest merge --output metadata --num-shards 4`,
	Args:    cobra.NoArgs,
	RunE:    runMerge,
}

func init() {
	rootCmd.AddCommand(mergeCmd)

	mergeCmd.Flags().StringVarP(&mergeDir, "output", "o", "", "metadata directory holding the day files (default ./metadata)")
	mergeCmd.Flags().IntVarP(&mergeNumShards, "num-shards", "n", 0, "number of shard files (default 1)")
}

func runMerge(cmd *cobra.Command, args []string) error {
	flags := globalFlags()
	flags["output"] = mergeDir
	flags["num-shards"] = mergeNumShards

	cfg, log, err := loadConfig(flags)
	if err != nil {
		return err
	}

	m := merger.New(cfg.Metadata.OutputDir, cfg.Metadata.MergedBasename, cfg.Metadata.NumShards, log)
	stats, err := m.Merge()
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}
	printMergeStats(stats, cfg.Metadata.NumShards)
	ui.PrintSuccess("Merge complete")
	return nil
}

func printMergeStats(stats merger.Stats, shards int) {
	ui.PrintInfo("Day files", fmt.Sprint(stats.Files))
	ui.PrintInfo("Unique records", fmt.Sprint(stats.Records))
	ui.PrintInfo("Duplicates dropped", fmt.Sprint(stats.Duplicates))
	ui.PrintInfo("Shards", fmt.Sprint(shards))
}
