// Package ratelimit implements the named fixed-window rate limit policies.
//
// Two policies exist: general, applied to every API request, and writes,
// applied in addition to mutating requests. Each admits PermitLimit
// requests per window. Requests beyond the limit wait in a bounded queue
// for the next window, oldest first; when the queue is full they are
// rejected with 429 and a Retry-After header.
//
// Counters are kept in process by default. With a store (see package
// store) they are shared, typically through Redis.
package ratelimit
