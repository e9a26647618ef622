package cmd

import (
	"context"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/coalesceci/testr/internal/controller"
	"github.com/coalesceci/testr/internal/pool"
	"github.com/coalesceci/testr/internal/testid"
)

// runCommand implements spec.md §4.4's run(test_ids?, extra_args,
// filters?) contract.
func runCommand() *cobra.Command {
	var g globalFlags
	var testIDs []string
	var filters []string
	var concurrency int
	var failingOnly bool
	var untilFailure bool
	var jsonSummaryPath string

	cmd := &cobra.Command{
		Use:   "run [-- extra args passed to the test command]",
		Short: "Run tests and record the result",
		Run: func(cmd *cobra.Command, args []string) {
			if failingOnly && untilFailure {
				log.Fatal("run: --failing and --until-failure are mutually exclusive")
			}

			bag, err := g.loadConfig()
			if err != nil {
				log.Fatal(err)
			}
			repo, err := g.openRepository()
			if err != nil {
				log.Fatal(err)
			}
			factory, err := g.openUI()
			if err != nil {
				log.Fatal(err)
			}

			workDir, err := os.Getwd()
			if err != nil {
				workDir = os.TempDir()
			}

			ctl := controller.New(bag, repo, pool.New(), factory, workDir)

			var explicitIDs []testid.ID
			if len(testIDs) > 0 {
				explicitIDs = make([]testid.ID, len(testIDs))
				for i, s := range testIDs {
					explicitIDs[i] = testid.ID(s)
				}
			}

			opts := controller.Options{
				TestIDs:     explicitIDs,
				ExtraArgs:   args,
				Filters:     filters,
				Concurrency: concurrency,
			}

			ctx := context.Background()

			var success bool
			switch {
			case failingOnly:
				success, err = ctl.RunFailing(ctx, opts)
			case untilFailure:
				success, err = ctl.RunUntilFailure(ctx, opts)
			default:
				success, err = ctl.Run(ctx, opts)
			}

			if err != nil {
				log.Errorf("run: %v", err)
			}

			if jsonSummaryPath != "" && !untilFailure {
				if latest, lerr := repo.LatestID(); lerr == nil && latest > 0 {
					if run, rerr := repo.GetTestRun(latest); rerr == nil {
						if serr := saveRunJSON(jsonSummaryPath, run); serr != nil {
							log.Errorf("run: writing json summary: %v", serr)
						}
					}
				}
			}

			os.Exit(exitCode(success, err))
		},
	}

	g.register(cmd)
	cmd.Flags().StringSliceVarP(&testIDs, "test-id", "", nil, "explicit test ids to run (repeatable); if unset, tests are enumerated, except at concurrency 1 with no --filter, where the test command picks its own")
	cmd.Flags().StringSliceVarP(&filters, "filter", "", nil, "regex filters applied to the candidate test ids (repeatable, OR'd together)")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", 0, "number of concurrent workers (0: resolve from config or CPU count)")
	cmd.Flags().BoolVarP(&failingOnly, "failing", "", false, "run only the tests currently in the failing set")
	cmd.Flags().BoolVarP(&untilFailure, "until-failure", "", false, "repeat the run until a failure is observed")
	cmd.Flags().StringVarP(&jsonSummaryPath, "json-summary", "", "", "write a JSON summary of the run's test results to this path")

	return cmd
}
