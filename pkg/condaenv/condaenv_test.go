package condaenv

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/origamihpc/origami/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeEnv creates a fake environment prefix under root/envs/name and
// returns the prefix path.
func makeEnv(t *testing.T, root string, name string) string {
	t.Helper()
	prefix := filepath.Join(root, "envs", name)
	require.NoError(t, os.MkdirAll(filepath.Join(prefix, "bin"), 0o755))
	return prefix
}

func TestActivate(t *testing.T) {
	root := t.TempDir()
	prefix := makeEnv(t, root, "af2")
	t.Setenv(config.EnvCondaRoot, root)
	t.Setenv("CONDA_PREFIX", "")

	a, err := Activate("af2")
	require.NoError(t, err)
	assert.Equal(t, "af2", a.Name)
	assert.Equal(t, prefix, a.Prefix)
}

func TestActivateAbsolutePath(t *testing.T) {
	root := t.TempDir()
	prefix := makeEnv(t, root, "proteinmpnn")

	a, err := Activate(prefix)
	require.NoError(t, err)
	assert.Equal(t, "proteinmpnn", a.Name)
	assert.Equal(t, prefix, a.Prefix)
}

func TestActivateMissing(t *testing.T) {
	root := t.TempDir()
	t.Setenv(config.EnvCondaRoot, root)
	t.Setenv("CONDA_PREFIX", "")

	_, err := Activate("nonexistent")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "nonexistent")
}

func TestActivateViaCondaPrefix(t *testing.T) {
	root := t.TempDir()
	makeEnv(t, root, "base-tools")
	prefix := makeEnv(t, root, "af2")
	t.Setenv(config.EnvCondaRoot, "")
	// Simulate running inside an already-activated sibling env.
	t.Setenv("CONDA_PREFIX", filepath.Join(root, "envs", "base-tools"))

	a, err := Activate("af2")
	require.NoError(t, err)
	assert.Equal(t, prefix, a.Prefix)
}

func TestEnviron(t *testing.T) {
	a := &Activation{Name: "af2", Prefix: "/opt/conda/envs/af2"}
	base := []string{
		"HOME=/home/fold",
		"PATH=/usr/local/bin:/usr/bin",
		"CONDA_PREFIX=/opt/conda/envs/old",
		"CONDA_DEFAULT_ENV=old",
	}

	env := a.Environ(base)

	envMap := make(map[string]string, len(env))
	for _, kv := range env {
		parts := strings.SplitN(kv, "=", 2)
		require.Len(t, parts, 2)
		envMap[parts[0]] = parts[1]
	}
	assert.Equal(t, "/home/fold", envMap["HOME"])
	assert.Equal(t, "/opt/conda/envs/af2", envMap["CONDA_PREFIX"])
	assert.Equal(t, "af2", envMap["CONDA_DEFAULT_ENV"])
	assert.True(t, strings.HasPrefix(envMap["PATH"], "/opt/conda/envs/af2/bin"+string(os.PathListSeparator)),
		"PATH should start with the env bin dir, got %q", envMap["PATH"])
	assert.Contains(t, envMap["PATH"], "/usr/local/bin")
}

func TestEnvironWithoutPath(t *testing.T) {
	a := &Activation{Name: "af2", Prefix: "/opt/conda/envs/af2"}

	env := a.Environ([]string{"HOME=/home/fold"})

	assert.Contains(t, env, "PATH=/opt/conda/envs/af2/bin")
	assert.Contains(t, env, "CONDA_PREFIX=/opt/conda/envs/af2")
	assert.Contains(t, env, "CONDA_DEFAULT_ENV=af2")
}
