package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dvidsharvest/pkg/merger"
	"dvidsharvest/pkg/paginator"
	"dvidsharvest/pkg/ui"
)

var (
	// Metadata command flags
	metadataOutput string
	earliestDate   string
	latestDate     string
	numShards      int
	skipMerge      bool
)

// metadataCmd represents the metadata command
var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Harvest image metadata day by day and merge it into shards",
	Long: `Harvest image metadata from the search API, one CSV file per calendar day.

Days are fetched from the latest date back to the earliest. Any time window
whose result count hits the API cap is split in half until every part can be
paged completely. A day whose file already exists is skipped, so the command
resumes after an interruption.

When all days are done the day files are merged: duplicate ids are dropped
and the remaining rows are dealt round-robin into --num-shards files.`,
	Example: `  # Harvest everything since 2014 up to today, into 8 shards
  dvidsharvest metadata --output metadata --num-shards 8

  # Harvest a single month without merging
  dvidsharvest metadata --earliest-date 2020-06-01 --latest-date 2020-06-30 --skip-merge`,
	Args: cobra.NoArgs,
	RunE: runMetadata,
}

func init() {
	rootCmd.AddCommand(metadataCmd)

	metadataCmd.Flags().StringVarP(&metadataOutput, "output", "o", "", "metadata output directory (default ./metadata)")
	metadataCmd.Flags().StringVar(&earliestDate, "earliest-date", "", "oldest day to harvest, YYYY-MM-DD (default 2014-01-01)")
	metadataCmd.Flags().StringVar(&latestDate, "latest-date", "", "newest day to harvest, YYYY-MM-DD (default today, UTC)")
	metadataCmd.Flags().IntVarP(&numShards, "num-shards", "n", 0, "number of merged shard files (default 1)")
	metadataCmd.Flags().BoolVar(&skipMerge, "skip-merge", false, "only harvest day files")
}

func runMetadata(cmd *cobra.Command, args []string) error {
	flags := globalFlags()
	flags["output"] = metadataOutput
	flags["earliest-date"] = earliestDate
	flags["latest-date"] = latestDate
	flags["num-shards"] = numShards

	cfg, log, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if err := resolveAPIKey(cfg, log, true); err != nil {
		return err
	}
	if err := cfg.ValidateMetadata(); err != nil {
		return err
	}

	earliest, err := cfg.Metadata.Earliest()
	if err != nil {
		return err
	}
	latest, err := cfg.Metadata.Latest(time.Now())
	if err != nil {
		return err
	}

	ui.PrintBanner()
	ui.PrintInfo("Range", fmt.Sprintf("%s back to %s", latest.Format(paginator.DayLayout), earliest.Format(paginator.DayLayout)))
	ui.PrintInfo("Output", cfg.Metadata.OutputDir)

	ctx, stop := signalContext()
	defer stop()

	client := newClient(cfg, log)
	p := paginator.New(client, cfg.Metadata.PageCap, cfg.Metadata.MinWindow, log)
	harvester := paginator.NewHarvester(p, cfg.Metadata.OutputDir, log)

	stats, err := harvester.Run(ctx, latest, earliest)
	if err != nil {
		return fmt.Errorf("harvest failed: %w", err)
	}
	ui.PrintInfo("Days harvested", fmt.Sprint(stats.Days))
	ui.PrintInfo("Days skipped", fmt.Sprint(stats.Skipped))
	ui.PrintInfo("Records", fmt.Sprint(stats.Records))

	if skipMerge {
		ui.PrintSuccess("Harvest complete")
		return nil
	}

	m := merger.New(cfg.Metadata.OutputDir, cfg.Metadata.MergedBasename, cfg.Metadata.NumShards, log)
	mergeStats, err := m.Merge()
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}
	printMergeStats(mergeStats, cfg.Metadata.NumShards)
	ui.PrintSuccess("Harvest complete")
	return nil
}
