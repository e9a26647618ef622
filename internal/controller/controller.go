// Package controller implements the run controller from spec.md §4.4: it
// resolves configuration, determines which tests to run and under which
// profiles, partitions them across workers, provisions instances, spawns
// and streams worker output into the repository and the UI, and tears
// down afterwards.
package controller

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/rck/errorlog"

	"github.com/coalesceci/testr/internal/config"
	"github.com/coalesceci/testr/internal/event"
	"github.com/coalesceci/testr/internal/pool"
	"github.com/coalesceci/testr/internal/repository"
	"github.com/coalesceci/testr/internal/scheduler"
	"github.com/coalesceci/testr/internal/testid"
	"github.com/coalesceci/testr/internal/ui"
)

// Controller glues the config, repository, instance pool and UI together
// to drive one or more runs.
type Controller struct {
	bag     *config.Bag
	repo    *repository.Repository
	pool    *pool.Pool
	factory ui.UI
	workDir string
}

// New returns a Controller. workDir is where partition list files are
// written; it should be writable and need not be the repository's own
// directory.
func New(bag *config.Bag, repo *repository.Repository, p *pool.Pool, factory ui.UI, workDir string) *Controller {
	return &Controller{bag: bag, repo: repo, pool: p, factory: factory, workDir: workDir}
}

// Options configures a single Run invocation.
type Options struct {
	// TestIDs, if non-nil, are used as-is instead of enumerating.
	TestIDs []testid.ID
	// ExtraArgs are appended verbatim to the assembled worker command line.
	ExtraArgs []string
	// Filters are unanchored substring/regex searches; an id survives if
	// any filter matches it.
	Filters []string
	// Concurrency overrides config/CPU-count resolution when > 0.
	Concurrency int
	// FailingOnly runs exactly the repository's current failing set,
	// spec.md §4.4's "failing-only mode".
	FailingOnly bool
}

// assignment is one partition's worker, with its instance (if any)
// acquired ahead of time so that pool mutation stays confined to the
// single goroutine driving Run, per spec.md §5.
type assignment struct {
	profile  testid.Profile
	ids      []testid.ID // nil means "let the runner pick its own tests"
	instance *pool.Instance
}

// Run executes spec.md §4.4's run(test_ids?, extra_args, filters?)
// contract. It reports whether every test succeeded; err is non-nil for
// configuration or infrastructure failures (provisioning, disposal,
// enumeration/listing callouts), distinct from ordinary test failure.
func (c *Controller) Run(ctx context.Context, opts Options) (success bool, err error) {
	rc, err := resolve(c.bag)
	if err != nil {
		return false, err
	}

	concurrency, err := resolveConcurrency(ctx, c.bag, c.factory, opts.Concurrency, rc.terminationGrace)
	if err != nil {
		return false, err
	}

	profiles, err := resolveProfiles(ctx, rc.listProfilesCmd, c.factory, rc.terminationGrace)
	if err != nil {
		return false, err
	}
	defaultProfiles := profiles
	if rc.defaultProfilesCmd != "" {
		defaultProfiles, err = resolveProfiles(ctx, rc.defaultProfilesCmd, c.factory, rc.terminationGrace)
		if err != nil {
			return false, err
		}
	}

	groupOf := buildGroupOf(rc.groupRegex)

	perProfileIDs, partial, err := c.determineTestIDs(ctx, rc, defaultProfiles, concurrency, opts)
	if err != nil {
		return false, err
	}

	timing, err := c.buildTiming(perProfileIDs)
	if err != nil {
		return false, err
	}

	assignments, err := c.acquireAssignments(ctx, rc, defaultProfiles, perProfileIDs, concurrency, timing, groupOf)
	if err != nil {
		return false, err
	}

	ins, err := c.repo.GetInserter(partial, profiles)
	if err != nil {
		return false, err
	}
	if err := ins.Start(); err != nil {
		return false, err
	}

	events := make(chan event.TestEvent, 256)
	errs := errorlog.NewErrorLog()
	var wg sync.WaitGroup

	for i, a := range assignments {
		wg.Add(1)
		go func(i int, a assignment) {
			defer wg.Done()
			command, _, err := buildCommand(rc, a.profile, a.ids, a.instance, opts.ExtraArgs, c.workDir, opts.FailingOnly)
			if err != nil {
				errs.Append(err)
				return
			}
			label := fmt.Sprintf("%s/%d", a.profile, i)
			if werr := runWorker(ctx, c.factory, label, command, rc.terminationGrace, events); werr != nil {
				errs.Append(fmt.Errorf("%w: %v", ErrWorkerNonZero, werr))
			}
		}(i, a)
	}

	go func() {
		wg.Wait()
		close(events)
	}()

	sawFail := false
	for ev := range events {
		if ev.Status == event.Fail {
			sawFail = true
		}
		c.factory.Output("%s: %s\n", ev.Status, ev.ID)
		if err := ins.Status(ev); err != nil {
			errs.Append(err)
		}
	}

	// Pool mutation (release) happens only here, after every worker has
	// exited, so it never races with the acquisition pass above.
	for _, a := range assignments {
		if a.instance == nil {
			continue
		}
		if err := c.pool.Release(*a.instance); err != nil {
			errs.Append(err)
		}
	}

	if err := disposeAll(ctx, rc, c.pool, c.factory); err != nil {
		errs.Append(err)
	}

	if _, err := ins.Stop(); err != nil {
		errs.Append(err)
	}

	if errs.Len() > 0 {
		return false, errs.Errs()[0]
	}
	return !sawFail, nil
}

// RunFailing runs exactly the repository's current failing set, spec.md
// §4.4's failing-only mode.
func (c *Controller) RunFailing(ctx context.Context, opts Options) (bool, error) {
	opts.FailingOnly = true
	return c.Run(ctx, opts)
}

// RunUntilFailure repeats Run with opts until a run reports a failure (or
// an infrastructure error occurs), per spec.md §4.4's until-failure mode.
func (c *Controller) RunUntilFailure(ctx context.Context, opts Options) (bool, error) {
	for {
		success, err := c.Run(ctx, opts)
		if err != nil {
			return false, err
		}
		if !success {
			return false, nil
		}
	}
}

// acquireAssignments obtains an instance (if instance_provision is
// configured) for every non-empty partition, sequentially, so that no two
// goroutines ever mutate the pool at once.
func (c *Controller) acquireAssignments(ctx context.Context, rc resolvedConfig, defaultProfiles []testid.Profile, perProfileIDs map[testid.Profile][]testid.ID, concurrency int, timing scheduler.Timing, groupOf scheduler.GroupOf) ([]assignment, error) {
	var assignments []assignment

	for _, profile := range defaultProfiles {
		ids, haveIDs := perProfileIDs[profile]

		var partitions [][]testid.ID
		if !haveIDs {
			partitions = make([][]testid.ID, concurrency)
		} else {
			partitions = scheduler.Partition(ids, concurrency, timing, groupOf)
		}

		for _, partition := range partitions {
			if haveIDs && len(partition) == 0 {
				continue
			}
			inst, err := obtainInstance(ctx, rc, c.pool, profile, concurrency, c.factory)
			if err != nil {
				return nil, err
			}
			a := assignment{profile: profile, instance: inst}
			if haveIDs {
				a.ids = partition
			}
			assignments = append(assignments, a)
		}
	}

	return assignments, nil
}

// determineTestIDs implements spec.md §4.4 step 4. The returned map has
// no entry for a profile whose tests should be left for the runner to
// pick on its own (concurrency==1, no ids supplied, no filters).
func (c *Controller) determineTestIDs(ctx context.Context, rc resolvedConfig, defaultProfiles []testid.Profile, concurrency int, opts Options) (map[testid.Profile][]testid.ID, bool, error) {
	switch {
	case opts.FailingOnly:
		failingRun, err := c.repo.GetFailing()
		if err != nil {
			return nil, true, err
		}
		ids := applyFilters(uniqueIDs(failingRun.Events), opts.Filters)
		return sameForEveryProfile(defaultProfiles, ids), true, nil

	case opts.TestIDs != nil:
		ids := applyFilters(opts.TestIDs, opts.Filters)
		return sameForEveryProfile(defaultProfiles, ids), len(opts.Filters) > 0, nil

	case concurrency == 1 && len(opts.Filters) == 0:
		return map[testid.Profile][]testid.ID{}, false, nil

	default:
		metaByID, err := enumerate(ctx, rc, c.factory, defaultProfiles)
		if err != nil {
			return nil, false, err
		}
		perProfileIDs := map[testid.Profile][]testid.ID{}
		for profile := range groupProfiles(defaultProfiles) {
			var ids []testid.ID
			for id, meta := range metaByID {
				for _, p := range meta.Profiles {
					if p == profile {
						ids = append(ids, id)
						break
					}
				}
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			perProfileIDs[profile] = applyFilters(ids, opts.Filters)
		}
		return perProfileIDs, false, nil
	}
}

func groupProfiles(profiles []testid.Profile) map[testid.Profile]struct{} {
	set := make(map[testid.Profile]struct{}, len(profiles))
	for _, p := range profiles {
		set[p] = struct{}{}
	}
	return set
}

func sameForEveryProfile(profiles []testid.Profile, ids []testid.ID) map[testid.Profile][]testid.ID {
	out := make(map[testid.Profile][]testid.ID, len(profiles))
	for _, p := range profiles {
		out[p] = ids
	}
	return out
}

func uniqueIDs(events []event.TestEvent) []testid.ID {
	seen := map[testid.ID]struct{}{}
	var ids []testid.ID
	for _, ev := range events {
		if _, ok := seen[ev.ID]; ok {
			continue
		}
		seen[ev.ID] = struct{}{}
		ids = append(ids, ev.ID)
	}
	return ids
}

// applyFilters keeps only ids matched by at least one filter, using
// unanchored regex search per spec.md §4.4 step 5. A nil/empty filter
// list passes everything through unchanged.
func applyFilters(ids []testid.ID, filters []string) []testid.ID {
	if len(filters) == 0 {
		return ids
	}
	res := make([]*regexp.Regexp, 0, len(filters))
	for _, f := range filters {
		if re, err := regexp.Compile(f); err == nil {
			res = append(res, re)
		}
	}
	var out []testid.ID
	for _, id := range ids {
		for _, re := range res {
			if re.MatchString(string(id)) {
				out = append(out, id)
				break
			}
		}
	}
	return out
}

// buildGroupOf implements spec.md §9's "regex group callback" design
// note: group_regex is matched anchored at the start of the id, and the
// matched prefix becomes the group key. An empty pattern makes every id
// its own group.
func buildGroupOf(pattern string) scheduler.GroupOf {
	if pattern == "" {
		return func(id testid.ID) string { return string(id) }
	}
	re := regexp.MustCompile(`^(?:` + pattern + `)`)
	return func(id testid.ID) string {
		s := string(id)
		if loc := re.FindStringIndex(s); loc != nil {
			return s[:loc[1]]
		}
		return s
	}
}

// buildTiming asks the repository for the last known duration of every
// id across every profile, forming the timing oracle §4.3's scheduler
// needs.
func (c *Controller) buildTiming(perProfileIDs map[testid.Profile][]testid.ID) (scheduler.Timing, error) {
	seen := map[testid.ID]struct{}{}
	var all []testid.ID
	for _, ids := range perProfileIDs {
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			all = append(all, id)
		}
	}
	if len(all) == 0 {
		return scheduler.Timing{Known: map[testid.ID]float64{}, Unknown: map[testid.ID]struct{}{}}, nil
	}
	times, err := c.repo.GetTestTimes(all)
	if err != nil {
		return scheduler.Timing{}, err
	}
	return scheduler.Timing{Known: times.Known, Unknown: times.Unknown}, nil
}
