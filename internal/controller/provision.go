package controller

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/coalesceci/testr/internal/pool"
	"github.com/coalesceci/testr/internal/subst"
	"github.com/coalesceci/testr/internal/testid"
	"github.com/coalesceci/testr/internal/ui"
)

// obtainInstance implements spec.md §4.5: if instance_provision is absent,
// there is nothing to provision and the caller proceeds with a nil
// instance. Otherwise, if the pool holds fewer than concurrency instances
// for profile (available and allocated together), it tops the pool up
// before allocating one.
func obtainInstance(ctx context.Context, rc resolvedConfig, p *pool.Pool, profile testid.Profile, concurrency int, factory ui.UI) (*pool.Instance, error) {
	if rc.instanceProvision == "" {
		return nil, nil
	}

	if p.Size(string(profile)) < concurrency {
		if err := provisionFor(ctx, rc, p, profile, concurrency, factory); err != nil {
			return nil, err
		}
	}

	inst, err := p.Allocate(string(profile))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvisionFailed, err)
	}
	return &inst, nil
}

func provisionFor(ctx context.Context, rc resolvedConfig, p *pool.Pool, profile testid.Profile, concurrency int, factory ui.UI) error {
	need := concurrency - p.Size(string(profile))
	vars := map[string]string{
		"INSTANCE_COUNT": strconv.Itoa(need),
		"PROFILE":        string(profile),
	}
	command := subst.Expand(rc.instanceProvision, vars)

	out, errOut, err := runCapture(ctx, log.StandardLogger(), factory.NewCommand(ctx, command), rc.terminationGrace)
	if err != nil {
		forwardStderr(factory, errOut)
		return fmt.Errorf("%w: %v", ErrProvisionFailed, err)
	}

	tokens := strings.Fields(string(out))
	if len(tokens) == 0 {
		return fmt.Errorf("%w: provisioning produced no instance ids", ErrProvisionFailed)
	}
	for _, token := range tokens {
		inst, err := pool.NewInstance(string(profile), token)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrProvisionFailed, err)
		}
		p.Add(inst)
	}
	return nil
}

// disposeAll implements the teardown half of spec.md §4.5: if
// instance_dispose is configured, run it once with every known instance id
// across all profiles; the pool is cleared regardless of the outcome.
func disposeAll(ctx context.Context, rc resolvedConfig, p *pool.Pool, factory ui.UI) error {
	all := p.All()
	defer drainPool(p, all)

	if rc.instanceDispose == "" {
		return nil
	}

	ids := make([]string, len(all))
	for i, inst := range all {
		ids[i] = inst.ID
	}
	sort.Strings(ids)

	command := subst.Expand(rc.instanceDispose, map[string]string{
		"INSTANCE_IDS": strings.Join(ids, " "),
	})
	if _, errOut, err := runCapture(ctx, log.StandardLogger(), factory.NewCommand(ctx, command), rc.terminationGrace); err != nil {
		forwardStderr(factory, errOut)
		return fmt.Errorf("%w: %v", ErrDisposeFailed, err)
	}
	return nil
}

// drainPool empties every profile present in instances, regardless of
// whether each instance currently sits in available or allocated — Pool's
// contract only allows removing allocated instances, so this allocates
// whatever's left in a profile before removing it.
func drainPool(p *pool.Pool, instances []pool.Instance) {
	profiles := map[string]struct{}{}
	for _, inst := range instances {
		profiles[inst.Profile] = struct{}{}
		// Allocated instances are removed directly; available ones are
		// left for the allocate-then-remove loop below.
		_ = p.Remove(inst)
	}
	for profile := range profiles {
		for p.Size(profile) > 0 {
			inst, err := p.Allocate(profile)
			if err != nil {
				break
			}
			p.Remove(inst)
		}
	}
}
