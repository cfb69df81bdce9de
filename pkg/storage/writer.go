package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"dvidsharvest/pkg/dvids"
	errs "dvidsharvest/pkg/errors"
	"dvidsharvest/pkg/logger"
	"dvidsharvest/pkg/models"
)

// Fetcher streams the body at url into write
type Fetcher interface {
	FetchTo(ctx context.Context, url string, write func(io.Reader) error) error
}

// DimensionDecoder reports the pixel size of the image stored at path
type DimensionDecoder func(path string) (width, height int, err error)

// DecodeDimensions reads only the image header of path
func DecodeDimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// Bucket returns the two hex character shard directory for id
func Bucket(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])[:2]
}

// Writer publishes validated images under outputDir/<bucket>/<id>.jpg
type Writer struct {
	outputDir string
	fetcher   Fetcher
	decode    DimensionDecoder
	logger    logger.Logger
}

// NewWriter creates a writer rooted at outputDir. A nil decode uses
// DecodeDimensions.
func NewWriter(outputDir string, fetcher Fetcher, decode DimensionDecoder, log logger.Logger) *Writer {
	if decode == nil {
		decode = DecodeDimensions
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Writer{
		outputDir: outputDir,
		fetcher:   fetcher,
		decode:    decode,
		logger:    log,
	}
}

// FinalPath returns where the image for id is published
func (w *Writer) FinalPath(id string) string {
	return filepath.Join(w.outputDir, Bucket(id), id+".jpg")
}

// TempPath returns the staging path for id
func (w *Writer) TempPath(id string) string {
	return filepath.Join(w.outputDir, Bucket(id), id+".tmp.jpg")
}

// Write fetches, validates and publishes one item. An item whose final file
// already exists is skipped without any network call.
func (w *Writer) Write(ctx context.Context, item models.DownloadItem) (models.Outcome, error) {
	if !dvids.ValidImageID(item.Identifier) {
		return 0, errs.MalformedInput(item.Identifier, "identifier must be numeric")
	}

	dir := filepath.Join(w.outputDir, Bucket(item.Identifier))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, errs.IOFailure(dir, "failed to create bucket directory", err)
	}

	final := w.FinalPath(item.Identifier)
	if _, err := os.Stat(final); err == nil {
		w.logger.DebugWithFields("Image already present", map[string]interface{}{
			"id":   item.Identifier,
			"path": final,
		})
		return models.Skipped, nil
	}

	tmp := w.TempPath(item.Identifier)
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return 0, errs.IOFailure(tmp, "failed to remove stale temporary file", err)
	}

	err := w.fetcher.FetchTo(ctx, item.SourceURL, func(r io.Reader) error {
		return saveStream(r, tmp)
	})
	if err != nil {
		return 0, err
	}

	width, height, err := w.decode(tmp)
	if err != nil {
		w.logger.ErrorWithFields("Failed to decode image", map[string]interface{}{
			"id":    item.Identifier,
			"path":  tmp,
			"error": err.Error(),
		})
		return 0, errs.DecodeFailure(tmp, err)
	}

	if width != item.ExpectedWidth || height != item.ExpectedHeight {
		w.logger.WarnWithFields("Image dimensions differ from metadata", map[string]interface{}{
			"id":              item.Identifier,
			"expected_width":  item.ExpectedWidth,
			"expected_height": item.ExpectedHeight,
			"width":           width,
			"height":          height,
		})
	}
	if width != item.ExpectedWidth {
		return 0, errs.DimensionMismatch(item.Identifier, "width", item.ExpectedWidth, width)
	}
	if height != item.ExpectedHeight {
		return 0, errs.DimensionMismatch(item.Identifier, "height", item.ExpectedHeight, height)
	}

	if err := os.Rename(tmp, final); err != nil {
		return 0, errs.IOFailure(final, "failed to publish image", err)
	}

	w.logger.DebugWithFields("Image written", map[string]interface{}{
		"id":   item.Identifier,
		"path": final,
	})
	return models.Written, nil
}

func saveStream(r io.Reader, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		return fmt.Errorf("failed to save image data: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close file: %w", closeErr)
	}
	return nil
}
