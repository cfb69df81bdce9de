// Package logger provides the structured logging interface used across the
// harvester. It wraps zerolog with field-map helpers and a process-wide
// default instance.
//
//	err := logger.Initialize(&cfg.Logging)
//	log, runID := logger.WithRunID(logger.GetLogger())
//	log.InfoWithFields("Saved file for date", map[string]interface{}{
//	    "date": "2020-06-01",
//	    "path": "/data/2020-06-01.csv",
//	})
//
// NewNopLogger and NewTestLogger are meant for tests.
package logger
