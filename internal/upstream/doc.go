// Package upstream is the facade's connectivity client for an Azure AI
// Foundry project.
//
// Requests go through an azcore pipeline that retries transient failures
// and attaches an Entra ID bearer token from azidentity. Every call is paced
// by an optional outbound token bucket and guarded by a circuit breaker.
// Non-2xx responses surface as *azcore.ResponseError and an open circuit as
// a 503 *util.UpstreamError, both of which the problem normalizer maps to
// client responses.
package upstream
