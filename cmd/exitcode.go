package cmd

import (
	"errors"

	"github.com/coalesceci/testr/internal/config"
	"github.com/coalesceci/testr/internal/controller"
)

// exitCode maps a Run/RunFailing/RunUntilFailure result to spec.md
// §4.4's exit-code contract: 0 all succeeded, 1 otherwise, 3 for
// configuration errors. This is the one place that contract is computed;
// internal/controller itself only ever returns success/error.
func exitCode(success bool, err error) int {
	if err == nil {
		if success {
			return 0
		}
		return 1
	}
	if errors.Is(err, config.ErrMisconfigured) {
		return 3
	}
	switch {
	case errors.Is(err, controller.ErrProvisionFailed),
		errors.Is(err, controller.ErrDisposeFailed),
		errors.Is(err, controller.ErrListFailed):
		return 3
	default:
		return 1
	}
}
