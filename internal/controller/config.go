package controller

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/coalesceci/testr/internal/config"
	"github.com/coalesceci/testr/internal/testid"
	"github.com/coalesceci/testr/internal/ui"
)

// resolvedConfig is every value a run needs, pulled out of the config bag
// once at the start of Run, per spec.md §4.4 step 1.
type resolvedConfig struct {
	testCommand        string
	testIDOption       string
	testListOption     string
	testIDListDefault  string
	groupRegex         string
	instanceProvision  string
	instanceExecute    string
	instanceDispose    string
	listProfilesCmd    string
	defaultProfilesCmd string
	terminationGrace   time.Duration
}

func resolve(bag *config.Bag) (resolvedConfig, error) {
	var rc resolvedConfig
	var err error

	if rc.testCommand, err = bag.RequireString(config.KeyTestCommand); err != nil {
		return rc, err
	}
	rc.testIDOption = bag.StringOr(config.KeyTestIDOption, "")
	rc.testListOption = bag.StringOr(config.KeyTestListOption, "")
	rc.testIDListDefault = bag.StringOr(config.KeyTestIDListDefault, "")
	rc.groupRegex = bag.StringOr(config.KeyGroupRegex, "")
	rc.instanceProvision = bag.StringOr(config.KeyInstanceProvision, "")
	rc.instanceExecute = bag.StringOr(config.KeyInstanceExecute, "")
	rc.instanceDispose = bag.StringOr(config.KeyInstanceDispose, "")
	rc.listProfilesCmd = bag.StringOr(config.KeyListProfiles, "")
	rc.defaultProfilesCmd = bag.StringOr(config.KeyDefaultProfiles, "")
	rc.terminationGrace = defaultTerminationGrace
	if d, ok := bag.Duration(config.KeyTerminationGrace); ok && d > 0 {
		rc.terminationGrace = d
	}
	return rc, nil
}

// resolveConcurrency implements step 2: explicit option, else a config
// callout, else host CPU count.
func resolveConcurrency(ctx context.Context, bag *config.Bag, factory ui.UI, explicit int, grace time.Duration) (int, error) {
	if explicit > 0 {
		return explicit, nil
	}
	if callout, ok := bag.String(config.KeyTestRunConcurrency); ok && callout != "" {
		out, errOut, err := runCapture(ctx, log.StandardLogger(), factory.NewCommand(ctx, callout), grace)
		if err != nil {
			forwardStderr(factory, errOut)
			return 0, fmt.Errorf("%w: test_run_concurrency callout: %v", ErrListFailed, err)
		}
		n, err := strconv.Atoi(strings.TrimSpace(string(out)))
		if err != nil {
			return 0, fmt.Errorf("%w: test_run_concurrency callout produced non-integer output: %v", ErrListFailed, err)
		}
		if n > 0 {
			return n, nil
		}
	}
	if n := runtime.NumCPU(); n > 0 {
		return n, nil
	}
	return 1, nil
}

// resolveProfiles implements step 3: a whitespace-separated config callout,
// else the DEFAULT sentinel.
func resolveProfiles(ctx context.Context, callout string, factory ui.UI, grace time.Duration) ([]testid.Profile, error) {
	if callout == "" {
		return []testid.Profile{testid.DefaultProfile}, nil
	}
	out, errOut, err := runCapture(ctx, log.StandardLogger(), factory.NewCommand(ctx, callout), grace)
	if err != nil {
		forwardStderr(factory, errOut)
		return nil, fmt.Errorf("%w: profiles callout: %v", ErrListFailed, err)
	}
	fields := strings.Fields(string(out))
	if len(fields) == 0 {
		return []testid.Profile{testid.DefaultProfile}, nil
	}
	profiles := make([]testid.Profile, len(fields))
	for i, f := range fields {
		profiles[i] = testid.Profile(f)
	}
	return profiles, nil
}
