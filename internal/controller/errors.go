package controller

import "errors"

// Sentinel errors, spec.md §7. Misconfigured is reused from internal/config
// rather than redeclared, since a missing test_command is itself a config
// error; the controller adds the sentinels for the parts of the error
// taxonomy that only make sense once a run is actually executing.
var (
	ErrProvisionFailed = errors.New("controller: instance provisioning failed")
	ErrDisposeFailed    = errors.New("controller: instance disposal failed")
	ErrListFailed       = errors.New("controller: profile/concurrency callout failed")
	ErrWorkerNonZero    = errors.New("controller: worker exited non-zero")
)
