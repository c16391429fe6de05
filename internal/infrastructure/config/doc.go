// Package config handles loading and validating DigiHome Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Reading an optional .env file next to the process
//   - Overriding with DIGIHOME_* environment variables
//   - Validation of required fields
//
// Security Considerations:
//   - Sensitive values (broker password, push server key, JWT secret) should be
//     set via environment variables
//   - The JWT secret is shared with the account service that issues tokens
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	loc := cfg.Location()
package config
