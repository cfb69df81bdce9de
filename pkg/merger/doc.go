// Package merger folds per-day metadata files into a fixed number of shard
// files, keeping only the first occurrence of each numeric image id.
//
// Day files are read in filename order. Distinct records are dealt to
// shards round-robin in the order they are first seen, so shard sizes
// differ by at most one. Shard files are created on first use and named
// <basename>.<index> next to the day files.
package merger
