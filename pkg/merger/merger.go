package merger

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"dvidsharvest/pkg/dvids"
	errs "dvidsharvest/pkg/errors"
	"dvidsharvest/pkg/logger"
	"dvidsharvest/pkg/metadata"
)

// DefaultBasename names merged shard files
const DefaultBasename = "dvids-metadata.csv"

// Stats summarizes one merge
type Stats struct {
	Files      int
	Records    int
	Duplicates int
}

// Merger deduplicates day files into round-robin shard files
type Merger struct {
	dir       string
	basename  string
	numShards int
	logger    logger.Logger
}

// New creates a merger over the day files in dir
func New(dir, basename string, numShards int, log logger.Logger) *Merger {
	if basename == "" {
		basename = DefaultBasename
	}
	if numShards < 1 {
		numShards = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Merger{dir: dir, basename: basename, numShards: numShards, logger: log}
}

// ShardPath returns the output file for shard i
func (m *Merger) ShardPath(i int) string {
	return filepath.Join(m.dir, fmt.Sprintf("%s.%d", m.basename, i))
}

// DayFiles lists the day files in dir sorted by name
func (m *Merger) DayFiles() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(m.dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Merge writes every distinct record of the day files to exactly one shard.
// The nth distinct id goes to shard n mod numShards. Rows are copied
// unchanged.
func (m *Merger) Merge() (Stats, error) {
	var stats Stats

	files, err := m.DayFiles()
	if err != nil {
		return stats, errs.IOFailure(m.dir, "failed to list day files", err)
	}

	logger.LogComponentStart(m.logger, "merger", map[string]interface{}{
		"dir":        m.dir,
		"files":      len(files),
		"num_shards": m.numShards,
	})

	if err := m.removeShards(); err != nil {
		return stats, err
	}

	shards := make([]*shard, m.numShards)
	defer func() {
		for _, s := range shards {
			if s != nil {
				s.file.Close()
			}
		}
	}()

	visited := make(map[int64]struct{})
	for _, path := range files {
		before := len(visited)
		if err := m.mergeFile(path, visited, shards, &stats); err != nil {
			return stats, err
		}
		stats.Files++
		m.logger.InfoWithFields("Merged day file", map[string]interface{}{
			"file":  filepath.Base(path),
			"added": len(visited) - before,
			"total": len(visited),
		})
	}

	for i, s := range shards {
		if s == nil {
			continue
		}
		if err := s.writer.Flush(); err != nil {
			return stats, errs.IOFailure(m.ShardPath(i), "failed to write shard", err)
		}
		if err := s.file.Close(); err != nil {
			return stats, errs.IOFailure(m.ShardPath(i), "failed to close shard", err)
		}
		shards[i] = nil
	}

	stats.Records = len(visited)
	logger.LogComponentStop(m.logger, "merger", map[string]interface{}{
		"files":      stats.Files,
		"records":    stats.Records,
		"duplicates": stats.Duplicates,
	})
	return stats, nil
}

type shard struct {
	file   *os.File
	writer *metadata.Writer
}

func (m *Merger) mergeFile(path string, visited map[int64]struct{}, shards []*shard, stats *Stats) error {
	f, err := os.Open(path)
	if err != nil {
		return errs.IOFailure(path, "failed to open day file", err)
	}
	defer f.Close()

	r := metadata.NewReader(f)
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errs.IOFailure(path, fmt.Sprintf("failed to read row %d", r.Line()+1), err)
		}

		id, err := numericID(rec)
		if err != nil {
			return fmt.Errorf("%s row %d: %w", filepath.Base(path), r.Line(), err)
		}
		if _, seen := visited[id]; seen {
			stats.Duplicates++
			continue
		}

		idx := len(visited) % m.numShards
		s, err := m.shard(shards, idx)
		if err != nil {
			return err
		}
		if err := s.writer.WriteRecord(rec); err != nil {
			return errs.IOFailure(m.ShardPath(idx), "failed to write shard", err)
		}
		visited[id] = struct{}{}
	}
}

// removeShards deletes every <basename>.<n> left by an earlier merge. Shards
// are opened lazily, so an index that receives no record this run would
// otherwise keep its old content.
func (m *Merger) removeShards() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return errs.IOFailure(m.dir, "failed to list shards", err)
	}
	prefix := m.basename + "."
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		suffix := strings.TrimPrefix(name, prefix)
		if n, err := strconv.Atoi(suffix); err != nil || n < 0 || strconv.Itoa(n) != suffix {
			continue
		}
		path := filepath.Join(m.dir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errs.IOFailure(path, "failed to remove old shard", err)
		}
		m.logger.DebugWithFields("Removed old shard", map[string]interface{}{"file": name})
	}
	return nil
}

// shard opens shard idx on first use
func (m *Merger) shard(shards []*shard, idx int) (*shard, error) {
	if shards[idx] != nil {
		return shards[idx], nil
	}
	path := m.ShardPath(idx)
	f, err := os.Create(path)
	if err != nil {
		return nil, errs.IOFailure(path, "failed to create shard", err)
	}
	shards[idx] = &shard{file: f, writer: metadata.NewWriter(f)}
	return shards[idx], nil
}

func numericID(rec []string) (int64, error) {
	if len(rec) == 0 {
		return 0, errs.MalformedInput("", "empty row")
	}
	raw, ok := dvids.ParseImageID(rec[metadata.ColID])
	if !ok {
		return 0, errs.MalformedInput(rec[metadata.ColID], "unexpected id")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errs.MalformedInput(rec[metadata.ColID], "id is not numeric")
	}
	return id, nil
}
