package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"

	"dvidsharvest/pkg/logger"
	"dvidsharvest/pkg/metadata"
	"dvidsharvest/pkg/models"
)

// Resolver turns a parsed input row into a download item
type Resolver interface {
	Resolve(ctx context.Context, row metadata.InputRow) (models.DownloadItem, error)
}

// RowSource produces items from metadata rows. A malformed row ends
// production; a row whose asset lookup fails is reported to the sink and
// skipped.
type RowSource struct {
	reader   *metadata.Reader
	resolver Resolver
	logger   logger.Logger
}

// NewRowSource reads rows from r
func NewRowSource(r io.Reader, resolver Resolver, log logger.Logger) *RowSource {
	if log == nil {
		log = logger.GetLogger()
	}
	return &RowSource{
		reader:   metadata.NewReader(r),
		resolver: resolver,
		logger:   log,
	}
}

// Produce implements Source
func (s *RowSource) Produce(ctx context.Context, sink Sink) error {
	for {
		fields, err := s.reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read input row %d: %w", s.reader.Line()+1, err)
		}

		row, err := metadata.ParseInputRow(fields)
		if err != nil {
			return fmt.Errorf("input row %d: %w", s.reader.Line(), err)
		}

		item, err := s.resolver.Resolve(ctx, row)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			sink.Fail(row.ID, err)
			continue
		}

		if err := sink.Put(ctx, item); err != nil {
			return err
		}
	}
}
