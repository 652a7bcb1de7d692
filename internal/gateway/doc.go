// Package gateway is the single choke point for outbound calls to the catalogue API.
//
// Every request is admitted by a [Throttle], authorized through [Credentials],
// and retried on network errors, 5xx and 429 responses. A 429 carrying
// Retry-After waits that many seconds plus a small margin; anything else waits
// a fixed fallback delay. 401 and 403 responses expire the credentials and are
// never retried.
package gateway
