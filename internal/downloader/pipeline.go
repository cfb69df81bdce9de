package downloader

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"dvidsharvest/pkg/logger"
	"dvidsharvest/pkg/models"
	"dvidsharvest/pkg/retry"
)

// ItemWriter fetches, validates and publishes one item
type ItemWriter interface {
	Write(ctx context.Context, item models.DownloadItem) (models.Outcome, error)
}

// Sink receives the items a Source produces
type Sink interface {
	// Put enqueues item, blocking while the queue is full
	Put(ctx context.Context, item models.DownloadItem) error
	// Fail records an input that could not be turned into an item
	Fail(id string, err error)
}

// Source publishes download items. A returned error ends production; items
// already published are still processed.
type Source interface {
	Produce(ctx context.Context, sink Sink) error
}

// Observer is told how each item ended. Calls come from many workers.
type Observer interface {
	ItemWritten(id string)
	ItemSkipped(id string)
	ItemFailed(id string, err error)
}

// Options configures a Pipeline. Zero values take the defaults.
type Options struct {
	Workers       int
	QueueCapacity int
	BatchSize     int
	DrainTimeout  time.Duration
	MaxAttempts   int
	// RetryDelay is the pause between attempts on one item
	RetryDelay time.Duration
	Observer   Observer
}

// Stats counts item outcomes for one run
type Stats struct {
	Enqueued int64
	Written  int64
	Skipped  int64
	Failed   int64
}

// Pipeline runs one producer and a fixed pool of workers over a bounded queue
type Pipeline struct {
	opts     Options
	queue    *Queue
	writer   ItemWriter
	logger   logger.Logger
	finished atomic.Bool

	enqueued atomic.Int64
	written  atomic.Int64
	skipped  atomic.Int64
	failed   atomic.Int64
}

// NewPipeline creates a pipeline that publishes items through writer
func NewPipeline(opts Options, writer ItemWriter, log logger.Logger) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = 10000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 100 * time.Millisecond
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = retry.DefaultMaxAttempts
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &Pipeline{
		opts:   opts,
		queue:  NewQueue(opts.QueueCapacity),
		writer: writer,
		logger: log,
	}
}

// Run drives source to completion and blocks until every worker has stopped.
// Per-item failures are counted, not returned; the error reports a source
// failure or cancellation.
func (p *Pipeline) Run(ctx context.Context, source Source) (Stats, error) {
	logger.LogComponentStart(p.logger, "download_pipeline", map[string]interface{}{
		"workers":        p.opts.Workers,
		"queue_capacity": p.queue.Cap(),
		"batch_size":     p.opts.BatchSize,
		"max_attempts":   p.opts.MaxAttempts,
		"retry_delay":    p.opts.RetryDelay,
	})

	var g errgroup.Group

	g.Go(func() error {
		defer p.finished.Store(true)
		err := source.Produce(ctx, p)
		if err != nil {
			p.logger.ErrorWithFields("Producer stopped", map[string]interface{}{
				"error":    err.Error(),
				"enqueued": p.enqueued.Load(),
			})
			return err
		}
		p.logger.InfoWithFields("Producer finished", map[string]interface{}{
			"enqueued": p.enqueued.Load(),
		})
		return nil
	})

	for i := 0; i < p.opts.Workers; i++ {
		id := i
		g.Go(func() error {
			p.worker(ctx, id)
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	stats := p.Stats()
	logger.LogComponentStop(p.logger, "download_pipeline", map[string]interface{}{
		"enqueued": stats.Enqueued,
		"written":  stats.Written,
		"skipped":  stats.Skipped,
		"failed":   stats.Failed,
	})
	return stats, err
}

// Put implements Sink
func (p *Pipeline) Put(ctx context.Context, item models.DownloadItem) error {
	if err := p.queue.Put(ctx, item); err != nil {
		return err
	}
	p.enqueued.Add(1)
	return nil
}

// Fail implements Sink
func (p *Pipeline) Fail(id string, err error) {
	p.failed.Add(1)
	if p.opts.Observer != nil {
		p.opts.Observer.ItemFailed(id, err)
	}
	p.logger.ErrorWithFields("Skipping item", map[string]interface{}{
		"id":    id,
		"error": err.Error(),
	})
}

// Stats returns a snapshot of the outcome counters
func (p *Pipeline) Stats() Stats {
	return Stats{
		Enqueued: p.enqueued.Load(),
		Written:  p.written.Load(),
		Skipped:  p.skipped.Load(),
		Failed:   p.failed.Load(),
	}
}

// worker drains batches until the producer is done and one further drain
// comes back empty
func (p *Pipeline) worker(ctx context.Context, id int) {
	p.logger.DebugWithFields("Worker started", map[string]interface{}{
		"worker_id": id,
	})

	grace := false
	for {
		if ctx.Err() != nil {
			p.logger.DebugWithFields("Worker stopping - context cancelled", map[string]interface{}{
				"worker_id": id,
			})
			return
		}

		batch := p.queue.Drain(ctx, p.opts.BatchSize, p.opts.DrainTimeout)
		if len(batch) == 0 {
			if !p.finished.Load() {
				continue
			}
			if grace {
				p.logger.DebugWithFields("Worker stopping - queue drained", map[string]interface{}{
					"worker_id": id,
				})
				return
			}
			grace = true
			continue
		}

		grace = false
		for _, item := range batch {
			p.process(ctx, id, item)
		}
	}
}

func (p *Pipeline) process(ctx context.Context, workerID int, item models.DownloadItem) {
	start := time.Now()
	fields := map[string]interface{}{
		"worker_id": workerID,
		"id":        item.Identifier,
	}

	var outcome models.Outcome
	err := retry.Do(ctx, func(attempt int) error {
		var err error
		outcome, err = p.writer.Write(ctx, item)
		return err
	}, &retry.Config{
		MaxAttempts: p.opts.MaxAttempts,
		Backoff:     retry.BackoffFor(p.opts.RetryDelay),
		Logger:      p.logger,
		Fields:      fields,
	})
	if err != nil {
		p.failed.Add(1)
		p.logger.ErrorWithFields("Item failed", map[string]interface{}{
			"worker_id": workerID,
			"id":        item.Identifier,
			"url":       item.SourceURL,
			"error":     err.Error(),
			"duration":  time.Since(start),
		})
		if p.opts.Observer != nil {
			p.opts.Observer.ItemFailed(item.Identifier, err)
		}
		return
	}

	switch outcome {
	case models.Written:
		p.written.Add(1)
		if p.opts.Observer != nil {
			p.opts.Observer.ItemWritten(item.Identifier)
		}
	case models.Skipped:
		p.skipped.Add(1)
		if p.opts.Observer != nil {
			p.opts.Observer.ItemSkipped(item.Identifier)
		}
	}
	p.logger.DebugWithFields("Item done", map[string]interface{}{
		"worker_id": workerID,
		"id":        item.Identifier,
		"outcome":   outcome.String(),
		"duration":  time.Since(start),
	})
}
