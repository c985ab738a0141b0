// Package config loads, normalizes, and validates the daemon's
// configuration (spec §6's configuration surface).
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every
// knob the daemon, policy evaluator, and phase executor need —
// catalog/log/temp paths, the default on_error mode, hardware
// acceleration preference, backup/timeout/CPU-core settings, and job
// queue tuning.
//
// Always obtain settings through this package so downstream code
// receives sanitized paths, canonical log formats, and clear
// validation errors.
package config
