// Package paginator harvests search metadata one calendar day at a time.
//
// The search API stops paging at a fixed number of results and then reports
// that cap as the total. A Paginator treats a capped window as untrustworthy
// and splits it into two halves until each half is below the cap, then
// walks its pages in order. Splitting stops at a minimum window width; a
// window that is still capped there is paged as is and logged.
//
// A Harvester drives the paginator over each day from the latest date back
// to the earliest, staging each day in <date>.tmp and renaming it to
// <date>.csv once complete. Days that already have a file are skipped, so an
// interrupted harvest resumes where it stopped.
package paginator
