// Package config holds the precache configuration: defaults, the optional
// .precache YAML file, PRECACHE_* environment overrides and validation.
package config
