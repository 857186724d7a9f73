// Package config provides configuration types and loading for the
// facade.
//
// Configuration is read once at startup from a YAML file, layered on
// top of DefaultConfig, and validated with struct tags plus a few
// cross-field checks. It is never re-read while the process runs.
//
// # Features
//
//   - YAML configuration file loading
//   - Environment variable substitution with ${VAR:-default} syntax
//   - Validation with field-path error reporting
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfig("facade.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// API keys are usually injected from the environment:
//
//	apiKeys:
//	  headerName: X-Api-Key
//	  keys:
//	    - ${FACADE_API_KEY}
package config
