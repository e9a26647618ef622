package config

import "errors"

// ErrMisconfigured is the sentinel for a missing or unusable config key
// (spec.md §7). Surfaced by the CLI as exit code 3, with the offending key
// named in the wrapped error message.
var ErrMisconfigured = errors.New("config: misconfigured")
