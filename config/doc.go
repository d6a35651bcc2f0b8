// Package config loads, normalizes, and validates carefeed configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours CAREFEED_* environment fallbacks for the remote
// endpoints and backend credentials. Validation uses struct tags so errors
// name the offending TOML key.
package config
