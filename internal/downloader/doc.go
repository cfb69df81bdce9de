// Package downloader runs the image download pipeline.
//
// A single producer parses the metadata input and publishes items into a
// bounded queue, blocking while it is full. A fixed pool of workers drains
// the queue in small batches and hands each item to an ItemWriter, retrying
// the whole write up to the attempt limit. An item that still fails is
// logged and counted; the worker carries on with the next one.
//
// When the producer finishes it raises a flag. A worker that then sees an
// empty batch drains once more before stopping, which picks up any item
// enqueued as the flag was being set.
package downloader
