// Package health provides the facade's health probe endpoints.
//
// Three endpoints are served:
//
//   - /health runs every registered check
//   - /health/ready runs only the checks tagged "ready"
//   - /health/live runs no checks and answers while the process is up
//
// A failing critical check makes the report unhealthy and the endpoint
// answers 503. A failing non-critical check only degrades the report.
package health
