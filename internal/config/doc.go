// Package config loads, normalizes, and validates timedtext configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the TIMEDTEXT_LOG_LEVEL
// environment override. Caption heuristics, controller timing and the
// simulated resources all read their knobs from the Config type, and
// conversion helpers hand each package its own options struct.
package config
