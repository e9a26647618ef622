package cmd

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/coalesceci/testr/internal/controller"
	"github.com/coalesceci/testr/internal/ui"
)

// listTestsCommand implements spec.md §10's "testr list-tests": enumerate
// only, and print the resulting ids, grounded on testrepository's
// commands/list_tests.py.
func listTestsCommand() *cobra.Command {
	var g globalFlags
	var jsonMode bool

	cmd := &cobra.Command{
		Use:   "list-tests",
		Short: "Enumerate tests without running them",
		Run: func(cmd *cobra.Command, args []string) {
			bag, err := g.loadConfig()
			if err != nil {
				log.Fatal(err)
			}
			factory, err := g.openUI()
			if err != nil {
				log.Fatal(err)
			}

			metaByID, err := controller.Enumerate(context.Background(), bag, factory)
			if err != nil {
				log.Fatal(err)
			}

			tests := make(map[string]ui.TestMeta, len(metaByID))
			for id, meta := range metaByID {
				profiles := make([]string, len(meta.Profiles))
				for i, p := range meta.Profiles {
					profiles[i] = string(p)
				}
				tests[string(id)] = ui.TestMeta{Profiles: profiles}
			}

			style := "list"
			if jsonMode {
				style = "json"
			}
			if err := factory.OutputTestsMeta(tests, style); err != nil {
				log.Fatal(err)
			}
		},
	}

	g.register(cmd)
	cmd.Flags().BoolVarP(&jsonMode, "json", "", false, "render as JSON instead of a plain id list")
	return cmd
}
