package metadata

import (
	"context"
	"fmt"

	"dvidsharvest/pkg/dvids"
	errs "dvidsharvest/pkg/errors"
	"dvidsharvest/pkg/models"
)

// InputRow is the part of a metadata row the downloader needs
type InputRow struct {
	ID        string
	Height    int
	Width     int
	Thumbnail string
	// Bare is set when the row held only an identifier
	Bare bool
}

// ParseInputRow validates a row and extracts the identifier, declared
// dimensions and thumbnail. A row with a single column is a bare identifier.
func ParseInputRow(fields []string) (InputRow, error) {
	if len(fields) == 0 {
		return InputRow{}, errs.MalformedInput("", "empty row")
	}

	id, ok := dvids.ParseImageID(fields[ColID])
	if !ok || !dvids.ValidImageID(id) {
		return InputRow{}, errs.MalformedInput(fields[ColID], "unexpected id")
	}

	if len(fields) == 1 {
		return InputRow{ID: id, Bare: true}, nil
	}
	if len(fields) < NumColumns {
		return InputRow{}, errs.MalformedInput(fields[ColID],
			fmt.Sprintf("expected %d columns, got %d", NumColumns, len(fields)))
	}

	height, err := dvids.ParseDimension(fields[ColHeight])
	if err != nil {
		return InputRow{}, errs.MalformedInput(fields[ColID], fmt.Sprintf("invalid height %q", fields[ColHeight]))
	}
	width, err := dvids.ParseDimension(fields[ColWidth])
	if err != nil {
		return InputRow{}, errs.MalformedInput(fields[ColID], fmt.Sprintf("invalid width %q", fields[ColWidth]))
	}

	return InputRow{
		ID:        id,
		Height:    height,
		Width:     width,
		Thumbnail: fields[ColThumbnail],
	}, nil
}

// AssetLookup resolves a bare identifier through the single-asset endpoint
type AssetLookup interface {
	Asset(ctx context.Context, id string) (*dvids.Asset, error)
}

// Resolver turns input rows into download items
type Resolver struct {
	endpoints dvids.Endpoints
	assets    AssetLookup
}

// NewResolver creates a resolver that derives CDN URLs with endpoints and
// falls back to assets when a row has no usable thumbnail
func NewResolver(endpoints dvids.Endpoints, assets AssetLookup) *Resolver {
	return &Resolver{endpoints: endpoints, assets: assets}
}

// Resolve builds the download item for row, calling the asset endpoint only
// when the thumbnail is absent or not a JPEG
func (r *Resolver) Resolve(ctx context.Context, row InputRow) (models.DownloadItem, error) {
	if !row.Bare {
		if url, ok := r.endpoints.CDNURLFromThumbnail(row.Thumbnail); ok {
			return models.DownloadItem{
				Identifier:     row.ID,
				ExpectedHeight: row.Height,
				ExpectedWidth:  row.Width,
				SourceURL:      url,
			}, nil
		}
	}

	asset, err := r.assets.Asset(ctx, row.ID)
	if err != nil {
		return models.DownloadItem{}, fmt.Errorf("asset lookup for %s: %w", row.ID, err)
	}

	return models.DownloadItem{
		Identifier:     row.ID,
		ExpectedHeight: int(asset.Dimensions.Height),
		ExpectedWidth:  int(asset.Dimensions.Width),
		SourceURL:      asset.Image,
	}, nil
}
