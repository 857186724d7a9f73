// Package apikey holds the credential store for API key authentication.
//
// The accepted keys are loaded once into an immutable CredentialSet.
// Only SHA-256 digests are retained and lookups compare digests in
// constant time:
//
//	set := apikey.NewCredentialSet(cfg.APIKeys.HeaderName, cfg.APIKeys.Keys)
//	validator := apikey.NewValidator(set, apikey.WithValidatorLogger(logger))
//
//	key, err := apikey.NewHeaderExtractor(set.HeaderName()).Extract(r)
//	if err == nil {
//	    err = validator.Validate(ctx, key)
//	}
//
// An empty set is accepted at construction time and rejects every
// request, so a deployment that forgets to configure keys stays closed.
package apikey
