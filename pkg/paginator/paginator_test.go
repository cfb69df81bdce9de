package paginator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dvidsharvest/pkg/dvids"
	"dvidsharvest/pkg/logger"
)

type searchCall struct {
	from, to time.Time
	page     int
}

// fakeSearch serves totals(from, to) results per window, perPage at a time
type fakeSearch struct {
	mu      sync.Mutex
	perPage int
	totals  func(from, to time.Time) int
	err     error
	calls   []searchCall
}

func (f *fakeSearch) Search(ctx context.Context, from, to time.Time, page int) (*dvids.SearchPage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, searchCall{from: from, to: to, page: page})
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	total := f.totals(from, to)
	lo := (page - 1) * f.perPage
	hi := lo + f.perPage
	if hi > total {
		hi = total
	}
	var results []dvids.Result
	for i := lo; i < hi; i++ {
		results = append(results, dvids.Result{ID: fmt.Sprintf("image:%d%04d", from.Unix(), i)})
	}
	return &dvids.SearchPage{
		PageInfo: dvids.PageInfo{TotalResults: total, ResultsPerPage: f.perPage},
		Results:  results,
	}, nil
}

func (f *fakeSearch) pageOneWindows() []searchCall {
	var out []searchCall
	for _, c := range f.calls {
		if c.page == 1 {
			out = append(out, c)
		}
	}
	return out
}

func collect(t *testing.T, p *Paginator, start time.Time, dur time.Duration) []dvids.Result {
	t.Helper()
	var got []dvids.Result
	err := p.FetchWindow(context.Background(), start, dur, func(rs []dvids.Result) error {
		got = append(got, rs...)
		return nil
	})
	require.NoError(t, err)
	return got
}

var day = time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)

func TestFetchWindowWalksAllPages(t *testing.T) {
	search := &fakeSearch{perPage: 50, totals: func(from, to time.Time) int { return 137 }}
	p := New(search, 1000, time.Second, logger.NewTestLogger())

	got := collect(t, p, day, 24*time.Hour)
	assert.Len(t, got, 137)
	require.Len(t, search.calls, 3)
	for i, c := range search.calls {
		assert.Equal(t, i+1, c.page)
		assert.Equal(t, day, c.from)
		assert.Equal(t, day.Add(24*time.Hour), c.to)
	}

	seen := map[string]bool{}
	for _, r := range got {
		assert.False(t, seen[r.ID], "duplicate %s", r.ID)
		seen[r.ID] = true
	}
}

func TestFetchWindowExactMultipleOfPageSize(t *testing.T) {
	search := &fakeSearch{perPage: 25, totals: func(from, to time.Time) int { return 100 }}
	p := New(search, 1000, time.Second, nil)

	got := collect(t, p, day, time.Hour)
	assert.Len(t, got, 100)
	assert.Len(t, search.calls, 4)
}

func TestFetchWindowSplitsCappedDayIntoHalves(t *testing.T) {
	search := &fakeSearch{perPage: 100, totals: func(from, to time.Time) int {
		if to.Sub(from) == 24*time.Hour {
			return 1000
		}
		return 400
	}}
	log := logger.NewTestLogger()
	p := New(search, 1000, time.Second, log)

	got := collect(t, p, day, 24*time.Hour)
	assert.Len(t, got, 800)

	windows := search.pageOneWindows()
	require.Len(t, windows, 3)
	assert.Equal(t, searchCall{from: day, to: day.Add(12 * time.Hour), page: 1}, windows[1])
	assert.Equal(t, searchCall{from: day.Add(12 * time.Hour), to: day.Add(24 * time.Hour), page: 1}, windows[2])

	// earlier half is emitted first
	assert.True(t, strings.HasPrefix(got[0].ID, fmt.Sprintf("image:%d", day.Unix())))
	assert.True(t, strings.HasPrefix(got[400].ID, fmt.Sprintf("image:%d", day.Add(12*time.Hour).Unix())))
}

func TestFetchWindowRecursesUntilBelowCap(t *testing.T) {
	search := &fakeSearch{perPage: 10, totals: func(from, to time.Time) int {
		if to.Sub(from) > 6*time.Hour {
			return 20
		}
		return 5
	}}
	p := New(search, 20, time.Second, nil)

	got := collect(t, p, day, 24*time.Hour)
	assert.Len(t, got, 20)

	var leaves []time.Time
	for _, c := range search.pageOneWindows() {
		if c.to.Sub(c.from) == 6*time.Hour {
			leaves = append(leaves, c.from)
		}
	}
	assert.Equal(t, []time.Time{day, day.Add(6 * time.Hour), day.Add(12 * time.Hour), day.Add(18 * time.Hour)}, leaves)
}

func TestFetchWindowStopsSplittingAtFloor(t *testing.T) {
	search := &fakeSearch{perPage: 10, totals: func(from, to time.Time) int { return 30 }}
	log := logger.NewTestLogger()
	p := New(search, 30, time.Second, log)

	got := collect(t, p, day, 2*time.Second)
	assert.Len(t, got, 60)
	assert.Equal(t, 2, log.CountContaining("Window at minimum size is still capped"))
}

func TestFetchWindowPropagatesErrors(t *testing.T) {
	search := &fakeSearch{perPage: 10, totals: func(from, to time.Time) int { return 1 }, err: errors.New("boom")}
	p := New(search, 1000, time.Second, nil)

	err := p.FetchWindow(context.Background(), day, time.Hour, func([]dvids.Result) error { return nil })
	assert.ErrorContains(t, err, "boom")
}

func TestFetchWindowRejectsZeroPageSize(t *testing.T) {
	search := &fakeSearch{perPage: 0, totals: func(from, to time.Time) int { return 5 }}
	p := New(search, 1000, time.Second, nil)

	err := p.FetchWindow(context.Background(), day, time.Hour, func([]dvids.Result) error { return nil })
	assert.ErrorContains(t, err, "results_per_page")
}

func TestHarvesterWritesDayFilesNewestFirst(t *testing.T) {
	dir := t.TempDir()
	search := &fakeSearch{perPage: 10, totals: func(from, to time.Time) int { return 3 }}
	h := NewHarvester(New(search, 1000, time.Second, nil), dir, logger.NewTestLogger())

	stats, err := h.Run(context.Background(), day.Add(2*24*time.Hour+5*time.Hour), day)
	require.NoError(t, err)
	assert.Equal(t, HarvestStats{Days: 3, Records: 9}, stats)

	for _, name := range []string{"2020-06-01.csv", "2020-06-02.csv", "2020-06-03.csv"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, 3, strings.Count(string(data), "\n"))
	}
	assert.Equal(t, day.Add(48*time.Hour), search.calls[0].from)

	tmps, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, tmps)
}

func TestHarvesterSkipsExistingDays(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2020-06-01.csv"), []byte("kept\n"), 0644))

	search := &fakeSearch{perPage: 10, totals: func(from, to time.Time) int { return 2 }}
	h := NewHarvester(New(search, 1000, time.Second, nil), dir, nil)

	stats, err := h.Run(context.Background(), day.AddDate(0, 0, 1), day)
	require.NoError(t, err)
	assert.Equal(t, HarvestStats{Days: 1, Skipped: 1, Records: 2}, stats)
	for _, c := range search.calls {
		assert.NotEqual(t, day, c.from)
	}

	data, err := os.ReadFile(filepath.Join(dir, "2020-06-01.csv"))
	require.NoError(t, err)
	assert.Equal(t, "kept\n", string(data))
}

func TestHarvesterLeavesNoFinalFileOnFailure(t *testing.T) {
	dir := t.TempDir()
	search := &fakeSearch{perPage: 10, totals: func(from, to time.Time) int { return 2 }, err: errors.New("unavailable")}
	h := NewHarvester(New(search, 1000, time.Second, nil), dir, nil)

	_, _, err := h.SaveDay(context.Background(), day)
	require.Error(t, err)
	assert.NoFileExists(t, h.DayPath(day))
}
