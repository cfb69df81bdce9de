package paginator

import (
	"context"
	"fmt"
	"time"

	"dvidsharvest/pkg/dvids"
	"dvidsharvest/pkg/logger"
)

// DefaultPageCap is the total_results value the search API reports when a
// query matched more records than it will page through
const DefaultPageCap = 1000

// SearchClient fetches one page of results for [from, to)
type SearchClient interface {
	Search(ctx context.Context, from, to time.Time, page int) (*dvids.SearchPage, error)
}

// Sink receives results in page order
type Sink func(results []dvids.Result) error

// Paginator walks every result of a time window, bisecting windows whose
// result count hits the page cap
type Paginator struct {
	client    SearchClient
	pageCap   int
	minWindow time.Duration
	logger    logger.Logger
}

// New creates a paginator. Non-positive pageCap and minWindow take the
// defaults of 1000 results and one second.
func New(client SearchClient, pageCap int, minWindow time.Duration, log logger.Logger) *Paginator {
	if pageCap <= 0 {
		pageCap = DefaultPageCap
	}
	if minWindow <= 0 {
		minWindow = time.Second
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Paginator{
		client:    client,
		pageCap:   pageCap,
		minWindow: minWindow,
		logger:    log,
	}
}

type window struct {
	start time.Time
	dur   time.Duration
}

func (w window) end() time.Time { return w.start.Add(w.dur) }

// FetchWindow emits every result in [start, start+dur) to sink. Capped
// windows are split into two adjacent halves, earlier half first, until a
// window is below the cap or no wider than the minimum window.
func (p *Paginator) FetchWindow(ctx context.Context, start time.Time, dur time.Duration, sink Sink) error {
	stack := []window{{start: start, dur: dur}}

	for len(stack) > 0 {
		w := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		first, err := p.client.Search(ctx, w.start, w.end(), 1)
		if err != nil {
			return fmt.Errorf("search %s..%s: %w", w.start.Format(time.RFC3339), w.end().Format(time.RFC3339), err)
		}

		if first.PageInfo.TotalResults >= p.pageCap {
			half := w.dur / 2
			if half >= p.minWindow {
				p.logger.WarnWithFields("Window capped, splitting", map[string]interface{}{
					"start":    w.start,
					"duration": w.dur.String(),
					"total":    first.PageInfo.TotalResults,
				})
				stack = append(stack,
					window{start: w.start.Add(half), dur: w.dur - half},
					window{start: w.start, dur: half},
				)
				continue
			}
			p.logger.WarnWithFields("Window at minimum size is still capped, results may be incomplete", map[string]interface{}{
				"start":    w.start,
				"duration": w.dur.String(),
				"total":    first.PageInfo.TotalResults,
			})
		}

		if err := p.walk(ctx, w, first, sink); err != nil {
			return err
		}
	}
	return nil
}

// walk emits page 1 then fetches later pages until the cumulative
// results_per_page offset reaches total_results
func (p *Paginator) walk(ctx context.Context, w window, first *dvids.SearchPage, sink Sink) error {
	if err := sink(first.Results); err != nil {
		return err
	}

	total := first.PageInfo.TotalResults
	perPage := first.PageInfo.ResultsPerPage
	if perPage <= 0 {
		if len(first.Results) < total {
			return fmt.Errorf("search %s: results_per_page is %d with %d of %d results", w.start.Format(time.RFC3339), perPage, len(first.Results), total)
		}
		return nil
	}

	pages := 1
	for offset, page := perPage, 2; offset < total; offset, page = offset+perPage, page+1 {
		resp, err := p.client.Search(ctx, w.start, w.end(), page)
		if err != nil {
			return fmt.Errorf("search %s page %d: %w", w.start.Format(time.RFC3339), page, err)
		}
		if err := sink(resp.Results); err != nil {
			return err
		}
		pages++
	}

	p.logger.DebugWithFields("Window fetched", map[string]interface{}{
		"start":    w.start,
		"duration": w.dur.String(),
		"total":    total,
		"pages":    pages,
	})
	return nil
}
