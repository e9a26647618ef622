package cmd

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/coalesceci/testr/internal/subunit"
)

// loadCommand implements spec.md §10's "testr load": read a subunit
// stream from stdin (or a file) and insert it as a run, independent of
// spawning any workers, grounded on testrepository's load command.
func loadCommand() *cobra.Command {
	var g globalFlags
	var inputPath string
	var partial bool

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Insert a subunit stream as a run",
		Run: func(cmd *cobra.Command, args []string) {
			repo, err := g.openRepository()
			if err != nil {
				log.Fatal(err)
			}

			var src io.Reader = os.Stdin
			if inputPath != "" {
				f, err := os.Open(inputPath)
				if err != nil {
					log.Fatal(err)
				}
				defer f.Close()
				src = f
			}

			ins, err := repo.GetInserter(partial, nil)
			if err != nil {
				log.Fatal(err)
			}
			if err := ins.Start(); err != nil {
				log.Fatal(err)
			}

			dec := subunit.NewDecoder(src)
			for {
				ev, raw, derr := dec.Next()
				if derr == io.EOF {
					break
				}
				if derr != nil {
					log.Fatalf("load: %v", derr)
				}
				if raw != nil {
					continue
				}
				if err := ins.Status(*ev); err != nil {
					log.Fatal(err)
				}
			}

			id, err := ins.Stop()
			if err != nil {
				log.Fatal(err)
			}
			log.Infof("loaded run %d", id)
		},
	}

	g.register(cmd)
	cmd.Flags().StringVarP(&inputPath, "file", "f", "", "file to read the subunit stream from (default: stdin)")
	cmd.Flags().BoolVarP(&partial, "partial", "", false, "mark the inserted run as partial")

	return cmd
}
