// Package server assembles the facade's gin engine and runs it.
//
// The engine carries the global middleware chain, the info, health and
// metrics endpoints, and the authenticated /api/v1 group. Handler
// packages attach to that group through a Registrar, so every route they
// add is rate limited, authenticated and authorized before it runs.
package server
