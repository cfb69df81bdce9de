// Package dvids is the HTTP client for the DVIDS media API.
//
// Every request goes through Fetch, which retries the complete exchange
// (request, status check and parsing) a fixed number of times with no delay
// between attempts and logs each attempt. Search and Asset decode the JSON
// endpoints; FetchTo streams a CDN download into a caller-supplied writer.
//
//	client := dvids.NewClient(dvids.Options{APIKey: key})
//	page, err := client.Search(ctx, from, to, 1)
//
// API keys are redacted from every URL that is logged or wrapped in an error.
package dvids
