// Package storage publishes downloaded images into a content-addressed
// directory tree.
//
// Each image lands at outputDir/<bucket>/<id>.jpg where bucket is the first
// two hex characters of sha256(id). Bytes are streamed to <id>.tmp.jpg, the
// header is decoded and checked against the expected width and height, and
// only then is the file renamed into place. Readers of the tree never see a
// partially written final file.
//
// Writing an id whose final file exists is a no-op that makes no network
// call, so a run can be repeated over the same input.
//
// Usage:
//
//	w := storage.NewWriter("images", client, nil, log)
//	outcome, err := w.Write(ctx, models.DownloadItem{
//	    Identifier:     "42",
//	    ExpectedHeight: 100,
//	    ExpectedWidth:  200,
//	    SourceURL:      "https://cdn.example/photos/a/b.jpg",
//	})
package storage
