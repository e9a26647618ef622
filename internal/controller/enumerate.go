package controller

import (
	"bytes"
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/coalesceci/testr/internal/config"
	"github.com/coalesceci/testr/internal/subst"
	"github.com/coalesceci/testr/internal/testid"
	"github.com/coalesceci/testr/internal/testlist"
	"github.com/coalesceci/testr/internal/ui"
)

// Enumerate resolves config and profiles and runs enumeration only,
// without scheduling or spawning any worker — the operation behind
// spec.md §10's "testr list-tests".
func Enumerate(ctx context.Context, bag *config.Bag, factory ui.UI) (map[testid.ID]*testid.Meta, error) {
	rc, err := resolve(bag)
	if err != nil {
		return nil, err
	}
	profiles, err := resolveProfiles(ctx, rc.listProfilesCmd, factory, rc.terminationGrace)
	if err != nil {
		return nil, err
	}
	return enumerate(ctx, rc, factory, profiles)
}

// enumerate implements spec.md §4.4 step 4's enumeration path: for each of
// profiles, run the test command with $LISTOPT/$IDLIST substituted for
// listing, decode the resulting subunit enumeration stream, and record
// which profiles each id was seen under.
func enumerate(ctx context.Context, rc resolvedConfig, factory ui.UI, profiles []testid.Profile) (map[testid.ID]*testid.Meta, error) {
	metaByID := map[testid.ID]*testid.Meta{}

	for _, profile := range profiles {
		vars := map[string]string{
			"PROFILE": string(profile),
			"LISTOPT": rc.testListOption,
			"IDLIST":  rc.testIDListDefault,
			"IDFILE":  "",
			"IDOPTION": "",
		}
		command := subst.Expand(rc.testCommand, vars)

		cmd := factory.NewCommand(ctx, command)
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("%w: enumeration for profile %s: %v", ErrListFailed, profile, err)
		}
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		cmd.Stdin = nil
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("%w: enumeration for profile %s: %v", ErrListFailed, profile, err)
		}

		complete := make(chan struct{})
		finished := make(chan struct{})
		go handleTermination(ctx, log.WithField("enumerate", profile), cmd, rc.terminationGrace, complete, finished)

		ids, err := testlist.ParseEnumeration(stdout)
		waitErr := cmd.Wait()
		close(complete)
		<-finished
		if err != nil {
			forwardStderr(factory, stderr.Bytes())
			return nil, fmt.Errorf("%w: enumeration for profile %s: %v", ErrListFailed, profile, err)
		}
		if waitErr != nil {
			forwardStderr(factory, stderr.Bytes())
			return nil, fmt.Errorf("%w: enumeration for profile %s exited non-zero: %v", ErrListFailed, profile, waitErr)
		}

		for _, id := range ids {
			meta, ok := metaByID[id]
			if !ok {
				meta = &testid.Meta{}
				metaByID[id] = meta
			}
			meta.AddProfile(profile)
		}
	}

	return metaByID, nil
}
