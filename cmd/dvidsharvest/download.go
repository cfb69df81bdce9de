package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"dvidsharvest/internal/downloader"
	"dvidsharvest/pkg/metadata"
	"dvidsharvest/pkg/storage"
	"dvidsharvest/pkg/ui"
)

var (
	// Download command flags
	downloadInput   string
	downloadOutput  string
	downloadWorkers int
	noProgress      bool
)

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download every image listed in a metadata file",
	Long: `Download and validate every image listed in a metadata CSV file.

Each row is either a full metadata row, whose thumbnail is used to derive the
CDN URL, or a bare "image:<id>" row that is resolved through the asset
endpoint. Images are checked against the declared width and height before
they are published under <output>/<bucket>/<id>.jpg.

Images that already exist are skipped without a network request.`,
	Example: `  # Download a merged shard with one worker per CPU
  dvidsharvest download --input metadata/dvids-metadata.csv.0 --output images

  # Limit concurrency
  dvidsharvest download -i ids.csv -o images --workers 4`,
	Args: cobra.NoArgs,
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().StringVarP(&downloadInput, "input", "i", "", "metadata CSV file to read")
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "image output directory (default ./images)")
	downloadCmd.Flags().IntVarP(&downloadWorkers, "workers", "w", 0, "number of download workers (default: one per CPU)")
	downloadCmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress line")
}

func runDownload(cmd *cobra.Command, args []string) error {
	flags := globalFlags()
	flags["input"] = downloadInput
	flags["output"] = downloadOutput
	flags["workers"] = downloadWorkers

	cfg, log, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if err := cfg.ValidateDownload(); err != nil {
		return err
	}
	if err := resolveAPIKey(cfg, log, false); err != nil {
		return err
	}

	input, err := os.Open(cfg.Download.InputFile)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer input.Close()

	var progress *ui.ProgressDisplay
	opts := downloader.Options{
		Workers:       cfg.Download.Workers,
		QueueCapacity: cfg.Download.QueueCapacity,
		BatchSize:     cfg.Download.BatchSize,
		DrainTimeout:  cfg.Download.DrainTimeout,
		MaxAttempts:   cfg.Download.MaxAttempts,
		RetryDelay:    cfg.Download.RetryDelay,
	}
	if !noProgress && !quiet {
		total, err := countRows(input)
		if err != nil {
			return err
		}
		progress = ui.NewProgressDisplay(os.Stderr, total)
		opts.Observer = progress
	}

	ui.PrintInfo("Input", cfg.Download.InputFile)
	ui.PrintInfo("Output", cfg.Download.OutputDir)

	client := newClient(cfg, log)
	writer := storage.NewWriter(cfg.Download.OutputDir, client, nil, log)
	resolver := metadata.NewResolver(client.Endpoints(), client)
	source := downloader.NewRowSource(input, resolver, log)
	pipeline := downloader.NewPipeline(opts, writer, log)

	ctx, stop := signalContext()
	defer stop()

	stats, err := pipeline.Run(ctx, source)
	if progress != nil {
		progress.Finish()
	}

	ui.PrintInfo("Written", fmt.Sprint(stats.Written))
	ui.PrintInfo("Skipped", fmt.Sprint(stats.Skipped))
	ui.PrintInfo("Failed", fmt.Sprint(stats.Failed))

	if err != nil {
		return fmt.Errorf("download stopped: %w", err)
	}
	if stats.Failed > 0 {
		ui.PrintWarning("Some images failed; run the same command again to retry them")
	} else {
		ui.PrintSuccess("Download complete")
	}
	return nil
}

// countRows counts the rows of f and rewinds it
func countRows(f *os.File) (int, error) {
	r := metadata.NewReader(f)
	n := 0
	for {
		_, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// read errors surface again in the producer
			break
		}
		n++
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to rewind input: %w", err)
	}
	return n, nil
}
