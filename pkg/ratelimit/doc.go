// Package ratelimit provides an optional client-side throttle for API calls.
//
// The harvester does not negotiate limits with the server; by default New(0)
// returns Unlimited and requests go out as fast as the workers issue them.
// Setting api.requests_per_minute caps the request rate with a token bucket
// that refills once per minute.
package ratelimit
