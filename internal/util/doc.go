// Package util provides the shared error taxonomy for the facade.
//
// Handlers and collaborators report failures with these types so the
// error normalizer can map them onto problem responses:
//
//   - ValidationError: malformed or semantically invalid input (400)
//   - NotFoundError: a referenced resource does not exist (404)
//   - ErrUnauthorized: the caller may not perform the operation (401)
//   - UpstreamError: the backing cloud service failed
//
// Example:
//
//	verr := util.NewValidationError("")
//	verr.AddField("model", "Model deployment name is required")
//	if verr.HasViolations() {
//		return verr
//	}
package util
