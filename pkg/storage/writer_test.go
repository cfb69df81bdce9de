package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dvidsharvest/pkg/config"
	errs "dvidsharvest/pkg/errors"
	"dvidsharvest/pkg/logger"
	"dvidsharvest/pkg/models"
)

type fakeFetcher struct {
	body  []byte
	err   error
	calls int
}

func (f *fakeFetcher) FetchTo(ctx context.Context, url string, write func(io.Reader) error) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return write(bytes.NewReader(f.body))
}

func jpegBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func item42() models.DownloadItem {
	return models.DownloadItem{
		Identifier:     "42",
		ExpectedHeight: 100,
		ExpectedWidth:  200,
		SourceURL:      "https://cdn.example/photos/a/b.jpg",
	}
}

func TestBucket(t *testing.T) {
	sum := sha256.Sum256([]byte("42"))
	assert.Equal(t, hex.EncodeToString(sum[:])[:2], Bucket("42"))
	assert.Len(t, Bucket("anything"), 2)
	assert.Equal(t, Bucket("7"), Bucket("7"))
}

func TestWritePublishesValidatedImage(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{body: jpegBytes(t, 200, 100)}
	w := NewWriter(dir, fetcher, nil, logger.NewTestLogger())

	outcome, err := w.Write(context.Background(), item42())
	require.NoError(t, err)
	assert.Equal(t, models.Written, outcome)

	final := filepath.Join(dir, Bucket("42"), "42.jpg")
	data, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, fetcher.body, data)

	_, err = os.Stat(w.TempPath("42"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteSkipsExistingWithoutFetching(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{body: jpegBytes(t, 200, 100)}
	w := NewWriter(dir, fetcher, nil, nil)

	_, err := w.Write(context.Background(), item42())
	require.NoError(t, err)
	require.Equal(t, 1, fetcher.calls)

	outcome, err := w.Write(context.Background(), item42())
	require.NoError(t, err)
	assert.Equal(t, models.Skipped, outcome)
	assert.Equal(t, 1, fetcher.calls)
}

func TestWriteRejectsDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	log := logger.NewTestLogger()
	w := NewWriter(dir, &fakeFetcher{body: jpegBytes(t, 200, 100)}, nil, log)

	item := item42()
	item.ExpectedHeight = 101

	_, err := w.Write(context.Background(), item)
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeDimensionMismatch))
	assert.True(t, log.HasMessage("Image dimensions differ from metadata"))

	_, statErr := os.Stat(w.FinalPath("42"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestWriteRejectsUnsafeIdentifier(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "a", "images")
	fetcher := &fakeFetcher{body: jpegBytes(t, 200, 100)}
	w := NewWriter(dir, fetcher, nil, logger.NewTestLogger())

	for _, id := range []string{"../../escaped", "a/b", "", "12x"} {
		item := item42()
		item.Identifier = id

		_, err := w.Write(context.Background(), item)
		require.Error(t, err, id)
		assert.True(t, errs.IsType(err, errs.ErrorTypeMalformedInput), id)
	}

	assert.Equal(t, 0, fetcher.calls)
	_, err := os.Stat(filepath.Join(root, "a", "escaped.jpg"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestWriteWithoutLoggerUsesGlobalLogger(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "harvest.log")
	require.NoError(t, logger.Initialize(&config.LoggingConfig{Level: "debug", File: logFile, NoColor: true}))
	defer func() { _ = logger.Initialize(&config.LoggingConfig{Level: "info"}) }()

	w := NewWriter(t.TempDir(), &fakeFetcher{body: []byte("not an image")}, nil, nil)
	_, err := w.Write(context.Background(), item42())
	require.Error(t, err)

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Failed to decode image")
}

func TestWriteChecksWidthAsWell(t *testing.T) {
	w := NewWriter(t.TempDir(), &fakeFetcher{body: jpegBytes(t, 199, 100)}, nil, nil)

	_, err := w.Write(context.Background(), item42())
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeDimensionMismatch))
	assert.Contains(t, err.Error(), "width")
}

func TestWriteDecodeFailureLeavesTempFile(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, &fakeFetcher{body: []byte("not an image")}, nil, logger.NewTestLogger())

	_, err := w.Write(context.Background(), item42())
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeDecode))

	_, err = os.Stat(w.TempPath("42"))
	assert.NoError(t, err)
	_, err = os.Stat(w.FinalPath("42"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteReplacesStaleTempFile(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{body: jpegBytes(t, 200, 100)}
	w := NewWriter(dir, fetcher, nil, nil)

	require.NoError(t, os.MkdirAll(filepath.Dir(w.TempPath("42")), 0755))
	require.NoError(t, os.WriteFile(w.TempPath("42"), []byte("leftover from an interrupted run, longer than nothing"), 0644))

	outcome, err := w.Write(context.Background(), item42())
	require.NoError(t, err)
	assert.Equal(t, models.Written, outcome)

	data, err := os.ReadFile(w.FinalPath("42"))
	require.NoError(t, err)
	assert.Equal(t, fetcher.body, data)
}

func TestWritePropagatesFetchError(t *testing.T) {
	w := NewWriter(t.TempDir(), &fakeFetcher{err: errors.New("connection reset")}, nil, nil)

	_, err := w.Write(context.Background(), item42())
	assert.ErrorContains(t, err, "connection reset")
	_, statErr := os.Stat(w.FinalPath("42"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestWriteUsesInjectedDecoder(t *testing.T) {
	decode := func(path string) (int, int, error) { return 200, 100, nil }
	w := NewWriter(t.TempDir(), &fakeFetcher{body: []byte("opaque")}, decode, nil)

	outcome, err := w.Write(context.Background(), item42())
	require.NoError(t, err)
	assert.Equal(t, models.Written, outcome)
}
