// Package config loads and serves the protection tunables.
//
// Settings come from three layers: built-in defaults, an optional YAML
// file, and GUARDRAIL_* environment variables, each overriding the last.
// Every concern has one default section plus a per-name override map, so a
// single hot dependency can get a tighter breaker without restating the
// rest:
//
//	breaker:
//	  failure_threshold: 5
//	breakers:
//	  payments:
//	    failure_threshold: 2
//	    open_timeout: 10s
//
// A Store hands merged per-name settings to the rest of the process and,
// via Watch, pushes reloaded limits into live registries.
package config
