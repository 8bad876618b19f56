// Package condaenv locates pre-built conda-style environments and
// prepares child process environments that run inside them. The
// environment manager itself is never invoked.
package condaenv

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/origamihpc/origami/config"
	"github.com/pkg/errors"
)

// Activation is a named environment resolved to its prefix directory.
type Activation struct {
	Name   string
	Prefix string
}

// Activate resolves a named environment. An absolute name is used as the
// prefix directly; otherwise the usual roots are searched for envs/<name>.
// A missing environment is an error, reported before any process starts.
func Activate(name string) (*Activation, error) {
	if name == "" {
		return nil, errors.New("empty environment name")
	}
	if filepath.IsAbs(name) {
		if isEnvPrefix(name) {
			return &Activation{Name: filepath.Base(name), Prefix: name}, nil
		}
		return nil, errors.Errorf("no environment at %s", name)
	}
	roots := condaRoots()
	for _, root := range roots {
		prefix := filepath.Join(root, "envs", name)
		if isEnvPrefix(prefix) {
			return &Activation{Name: name, Prefix: prefix}, nil
		}
	}
	return nil, errors.Errorf("environment %q not found under %s", name, strings.Join(roots, ", "))
}

func condaRoots() []string {
	roots := make([]string, 0, 5)
	if root := os.Getenv(config.EnvCondaRoot); root != "" {
		roots = append(roots, root)
	}
	if prefix := os.Getenv("CONDA_PREFIX"); prefix != "" {
		// An already-active env lives at <root>/envs/<name>; walk back up
		// to the root in that case.
		if filepath.Base(filepath.Dir(prefix)) == "envs" {
			roots = append(roots, filepath.Dir(filepath.Dir(prefix)))
		} else {
			roots = append(roots, prefix)
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		roots = append(roots, filepath.Join(home, "miniconda3"), filepath.Join(home, "anaconda3"))
	}
	roots = append(roots, "/opt/conda")
	return roots
}

func isEnvPrefix(dir string) bool {
	fi, err := os.Stat(filepath.Join(dir, "bin"))
	return err == nil && fi.IsDir()
}

// Environ returns a copy of base with the environment activated: the
// env's bin directory leads PATH and the conda bookkeeping variables
// point at the prefix.
func (a *Activation) Environ(base []string) []string {
	env := make([]string, 0, len(base)+3)
	sawPath := false
	for _, kv := range base {
		switch {
		case strings.HasPrefix(kv, "PATH="):
			env = append(env, "PATH="+filepath.Join(a.Prefix, "bin")+string(os.PathListSeparator)+kv[len("PATH="):])
			sawPath = true
		case strings.HasPrefix(kv, "CONDA_PREFIX="), strings.HasPrefix(kv, "CONDA_DEFAULT_ENV="):
			continue
		default:
			env = append(env, kv)
		}
	}
	if !sawPath {
		env = append(env, "PATH="+filepath.Join(a.Prefix, "bin"))
	}
	env = append(env, "CONDA_PREFIX="+a.Prefix, "CONDA_DEFAULT_ENV="+a.Name)
	return env
}
