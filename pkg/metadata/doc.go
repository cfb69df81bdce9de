// Package metadata defines the CSV layout of harvested image records and the
// input side of the image downloader.
//
// Each row has 22 columns in a fixed order (see the Col* constants). The
// downloader reads the identifier, height, thumbnail and width columns; a
// row holding only "image:<id>" is looked up through the asset endpoint.
package metadata
