package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
)

// Jenkins is a UI backend that behaves like Console and adds LogArtifact,
// which writes an artifact into a Jenkins workspace, adapted from the
// teacher's cmd/jenkins.go (Jenkins.Log, Jenkins.XMLLog, Jenkins.SubDir).
// The UI interface has no artifact method, so worker output is not
// mirrored into the workspace automatically.
type Jenkins struct {
	Console
	wsPath string
}

// NewJenkins returns a Jenkins UI rooted at workspacePath. An empty path
// disables artifact mirroring and IsActive reports false.
func NewJenkins(workspacePath string) (*Jenkins, error) {
	if workspacePath != "" {
		if err := checkWorkspacePath(workspacePath); err != nil {
			return nil, err
		}
	}
	return &Jenkins{
		Console: Console{Out: os.Stdout},
		wsPath:  workspacePath,
	}, nil
}

func checkWorkspacePath(path string) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf("%q is not an absolute path", path)
	}
	if st, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("could not stat %s: %w", path, err)
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("could not mkdir %s: %w", path, err)
		}
	} else if !st.IsDir() {
		return fmt.Errorf("%q is not a directory", path)
	}
	return nil
}

// IsActive reports whether a workspace path was configured.
func (j *Jenkins) IsActive() bool { return j.wsPath != "" }

// SubDir returns subdir joined under the Jenkins workspace.
func (j *Jenkins) SubDir(subdir string) string {
	return filepath.Join(j.wsPath, subdir)
}

func (j *Jenkins) createSubDir(subdir string) (string, error) {
	if !j.IsActive() {
		return "", errors.New("ui: not a jenkins run")
	}
	p := j.SubDir(subdir)
	if st, err := os.Stat(p); err == nil && st.IsDir() {
		return p, nil
	}
	return p, os.MkdirAll(p, 0755)
}

// LogArtifact writes r to <workspace>/<subDir>/<name>, a no-op if this
// Jenkins UI has no workspace configured.
func (j *Jenkins) LogArtifact(subDir, name string, r io.Reader) error {
	if !j.IsActive() {
		return nil
	}
	p, err := j.createSubDir(subDir)
	if err != nil {
		return err
	}
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return err
	}
	return ioutil.WriteFile(filepath.Join(p, name), b, 0644)
}

func (j *Jenkins) NewCommand(ctx context.Context, shellCommand string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", shellCommand)
	cmd.Stdin = nil
	return cmd
}
