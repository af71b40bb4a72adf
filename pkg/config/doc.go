// Package config defines the protomock configuration and its loading rules.
//
// Configuration comes from three places, later ones winning:
//
//  1. a YAML config file (protomock.yaml)
//  2. PROTOMOCK_* environment variables
//  3. command-line flags (applied by the CLI layer)
//
// The Sources map records where each effective value came from, which the
// CLI uses when printing the effective configuration.
package config
