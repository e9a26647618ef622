package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/coalesceci/testr/internal/failing"
)

// failingCommand implements spec.md §4.7's failing-view command.
func failingCommand() *cobra.Command {
	var g globalFlags
	var subunitMode bool
	var listMode bool
	var jsonMode bool

	cmd := &cobra.Command{
		Use:   "failing",
		Short: "Show the tests currently in the failing set",
		Run: func(cmd *cobra.Command, args []string) {
			repo, err := g.openRepository()
			if err != nil {
				log.Fatal(err)
			}
			factory, err := g.openUI()
			if err != nil {
				log.Fatal(err)
			}

			mode := failing.Default
			style := failing.StyleText
			switch {
			case subunitMode:
				mode = failing.Stream
			case listMode || jsonMode:
				mode = failing.List
				if jsonMode {
					style = failing.StyleJSON
				}
			}

			has, err := failing.Render(repo, factory, mode, style)
			if err != nil {
				log.Fatal(err)
			}

			if mode == failing.Stream {
				os.Exit(0)
			}
			if has {
				os.Exit(1)
			}
			os.Exit(0)
		},
	}

	g.register(cmd)
	cmd.Flags().BoolVarP(&subunitMode, "subunit", "", false, "pass the failing set through as a raw subunit stream")
	cmd.Flags().BoolVarP(&listMode, "list", "", false, "render the failing set as a plain list of ids, one per line")
	cmd.Flags().BoolVarP(&jsonMode, "json", "", false, "render the failing set as JSON (implies --list)")

	return cmd
}
