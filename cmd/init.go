package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/coalesceci/testr/internal/repository"
)

// initCommand implements spec.md §10's "testr init": create an empty
// repository at a URL, grounded on testrepository's
// AbstractRepositoryFactory.initialise contract.
func initCommand() *cobra.Command {
	var repoURL string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an empty repository",
		Run: func(cmd *cobra.Command, args []string) {
			if repoURL == "" {
				fatalf("init: --repository-url must name a directory")
			}
			if _, err := repository.InitialiseFile(repoURL); err != nil {
				fatalf("init: %v", err)
			}
			log.Infof("initialised repository at %s", repoURL)
		},
	}

	cmd.Flags().StringVarP(&repoURL, "repository-url", "r", ".testrepository", "directory to create the repository in")
	return cmd
}
