// Package retry runs an operation a fixed number of times until it succeeds.
//
// Every error is retried. The default configuration makes three attempts with
// no pause between them, which is the contract both the HTTP fetcher and the
// per-item download loop rely on:
//
//	err := retry.Do(ctx, func(attempt int) error {
//		return writer.Write(ctx, item)
//	}, retry.DefaultConfig())
//
// A BackoffStrategy can be supplied, but callers in this module keep NoBackoff.
package retry
