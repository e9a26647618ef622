// Package cmd roots testr's cobra command tree: init, run, failing,
// list-tests and load, adapted from the teacher's rootCommand()/Execute()
// construction in vmshed.go.
package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/coalesceci/testr/internal/config"
	"github.com/coalesceci/testr/internal/repository"
	"github.com/coalesceci/testr/internal/ui"
)

// Execute runs testr's root command, exiting the process with the
// resulting exit code.
func Execute() {
	log.SetFormatter(ui.StandardLogFormatter())

	if err := rootCommand().Execute(); err != nil {
		log.Fatal(err)
	}
}

// globalFlags are accepted by every subcommand that touches a repository
// or config bag.
type globalFlags struct {
	configPath string
	repoURL    string
	jenkinsWS  string
}

func (g *globalFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&g.configPath, "config", "c", ".testr.conf", "path to the testr config file")
	cmd.Flags().StringVarP(&g.repoURL, "repository-url", "r", ".testrepository", "path to the repository directory (empty for an in-memory repository)")
	cmd.Flags().StringVarP(&g.jenkinsWS, "jenkins", "", "", "if set, use the Jenkins UI rooted at this workspace directory (created if missing)")
}

func (g *globalFlags) loadConfig() (*config.Bag, error) {
	if g.configPath == "" {
		return config.Empty(), nil
	}
	if _, err := os.Stat(g.configPath); os.IsNotExist(err) {
		return config.Empty(), nil
	}
	return config.LoadFile(g.configPath)
}

func (g *globalFlags) openRepository() (*repository.Repository, error) {
	if g.repoURL == "" {
		return repository.OpenMemory(), nil
	}
	return repository.OpenFile(g.repoURL)
}

func (g *globalFlags) openUI() (ui.UI, error) {
	if g.jenkinsWS != "" {
		return ui.NewJenkins(g.jenkinsWS)
	}
	return ui.NewConsole(), nil
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "testr",
		Short: "Drive external test processes and maintain a run history",
		Long:  "testr orchestrates external test-runner processes across profiles and instances, and maintains a persistent repository of runs and currently-failing tests.",
	}

	root.AddCommand(initCommand())
	root.AddCommand(runCommand())
	root.AddCommand(failingCommand())
	root.AddCommand(listTestsCommand())
	root.AddCommand(loadCommand())

	return root
}

func fatalf(format string, args ...interface{}) {
	log.Fatal(fmt.Sprintf(format, args...))
}
