// Package auth implements the API key authentication gate.
//
// Every request under the authenticated route group must carry a key in
// the configured header (X-Api-Key by default). The gate distinguishes
// three failures, all reported as 401:
//
//   - FailureMissingCredential: the header is absent, empty or blank.
//   - FailureNotConfigured: no keys are configured, so nothing is accepted.
//   - FailureInvalidCredential: the key is not in the configured set.
//
// A missing header is reported before an unconfigured key set. Keys are
// compared byte for byte; see package apikey for the credential set.
//
// A successful request is bound to a single fixed principal:
//
//	identity, _ := auth.IdentityFromGin(c)
//	identity.Subject // "api-key"
//
// Authenticate has no side effects other than logging and metrics, so it
// is safe to call concurrently and repeatedly.
package auth
