package paginator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dvidsharvest/pkg/dvids"
	errs "dvidsharvest/pkg/errors"
	"dvidsharvest/pkg/logger"
	"dvidsharvest/pkg/metadata"
)

// DayLayout names daily metadata files
const DayLayout = "2006-01-02"

// HarvestStats summarizes a harvest run
type HarvestStats struct {
	Days    int
	Skipped int
	Records int
}

// Harvester writes one metadata file per calendar day
type Harvester struct {
	paginator *Paginator
	outputDir string
	logger    logger.Logger
}

// NewHarvester creates a harvester writing day files into outputDir
func NewHarvester(p *Paginator, outputDir string, log logger.Logger) *Harvester {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Harvester{paginator: p, outputDir: outputDir, logger: log}
}

// DayPath returns the final file for day
func (h *Harvester) DayPath(day time.Time) string {
	return filepath.Join(h.outputDir, day.Format(DayLayout)+".csv")
}

// Run harvests every day from latest back to earliest, both inclusive.
// Days whose file already exists are skipped.
func (h *Harvester) Run(ctx context.Context, latest, earliest time.Time) (HarvestStats, error) {
	var stats HarvestStats
	if err := os.MkdirAll(h.outputDir, 0755); err != nil {
		return stats, errs.IOFailure(h.outputDir, "failed to create metadata directory", err)
	}

	latest = truncateDay(latest)
	earliest = truncateDay(earliest)

	logger.LogComponentStart(h.logger, "harvester", map[string]interface{}{
		"latest":     latest.Format(DayLayout),
		"earliest":   earliest.Format(DayLayout),
		"output_dir": h.outputDir,
	})

	for day := latest; !day.Before(earliest); day = day.AddDate(0, 0, -1) {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		n, skipped, err := h.SaveDay(ctx, day)
		if err != nil {
			return stats, err
		}
		if skipped {
			stats.Skipped++
			continue
		}
		stats.Days++
		stats.Records += n
	}

	logger.LogComponentStop(h.logger, "harvester", map[string]interface{}{
		"days":    stats.Days,
		"skipped": stats.Skipped,
		"records": stats.Records,
	})
	return stats, nil
}

// SaveDay fetches the 24 hours starting at day and publishes them as one
// file. It reports the record count, or skipped when the file exists.
func (h *Harvester) SaveDay(ctx context.Context, day time.Time) (int, bool, error) {
	day = truncateDay(day)
	final := h.DayPath(day)
	if _, err := os.Stat(final); err == nil {
		h.logger.DebugWithFields("Day already harvested", map[string]interface{}{
			"day":  day.Format(DayLayout),
			"path": final,
		})
		return 0, true, nil
	}

	tmp := filepath.Join(h.outputDir, day.Format(DayLayout)+".tmp")
	out, err := os.Create(tmp)
	if err != nil {
		return 0, false, errs.IOFailure(tmp, "failed to create temporary file", err)
	}

	w := metadata.NewWriter(out)
	err = h.paginator.FetchWindow(ctx, day, 24*time.Hour, func(results []dvids.Result) error {
		return w.WriteResults(results)
	})
	if err == nil {
		err = w.Flush()
	}
	closeErr := out.Close()
	if err != nil {
		return 0, false, fmt.Errorf("harvest %s: %w", day.Format(DayLayout), err)
	}
	if closeErr != nil {
		return 0, false, errs.IOFailure(tmp, "failed to close file", closeErr)
	}

	if err := os.Rename(tmp, final); err != nil {
		return 0, false, errs.IOFailure(final, "failed to publish day file", err)
	}

	h.logger.InfoWithFields("Day harvested", map[string]interface{}{
		"day":     day.Format(DayLayout),
		"records": w.Count(),
	})
	return w.Count(), false, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
