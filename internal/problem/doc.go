// Package problem maps errors onto application/problem+json responses.
//
// Classify is a single ordered dispatch over the error taxonomy in
// package util plus the third-party error shapes handlers commonly
// return (validator field errors, JSON decoding errors, Azure SDK
// response errors and open circuit breakers):
//
//	validation   -> 400 Validation Error (with per-field messages)
//	not found    -> 404 Resource Not Found
//	unauthorized -> 401 Unauthorized (fixed detail)
//	upstream     -> upstream status mapped to the nearest local one
//	anything else-> 500 Internal Server Error
//
// The Normalizer middleware logs each error once with its trace
// identifier and stack, then writes the response. Raw messages of
// server-side faults and stack traces reach clients only in development.
package problem
