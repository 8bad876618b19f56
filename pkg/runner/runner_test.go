package runner

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/origamihpc/origami/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recordingTool = `#!/bin/sh
echo run >> "$FOLD_RECORD.count"
pwd > "$FOLD_RECORD.pwd"
printf '%s\n' "$@" > "$FOLD_RECORD.args"
exit ${FOLD_EXIT:-0}
`

const trappingTool = `#!/bin/sh
trap 'exit 143' TERM
: > "$FOLD_RECORD.started"
sleep 30 &
wait $!
`

// setupEnv creates a fake conda env with the given tool script installed
// in its bin directory and points the env root variables at it.
func setupEnv(t *testing.T, tool string, script string) {
	t.Helper()
	root := t.TempDir()
	binDir := filepath.Join(root, "envs", "af2", "bin")
	require.NoError(t, os.MkdirAll(binDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(binDir, tool), []byte(script), 0o755))
	t.Setenv(config.EnvCondaRoot, root)
	t.Setenv("CONDA_PREFIX", "")
	t.Setenv("PBS_O_WORKDIR", "")
}

func quietRunner() *Runner {
	r := New()
	r.Stdout = io.Discard
	r.Stderr = io.Discard
	return r
}

func TestRunInvokesToolOnce(t *testing.T) {
	setupEnv(t, "fold_tool", recordingTool)
	workDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "designs.fasta"), []byte(">a\nMK\n"), 0o644))
	record := filepath.Join(t.TempDir(), "record")

	job := Job{
		Tool:      "fold_tool",
		CondaEnv:  "af2",
		OutputDir: "out/",
		FastaPath: "designs.fasta",
		WorkDir:   workDir,
		ExtraEnv:  []string{"FOLD_RECORD=" + record},
	}
	require.NoError(t, quietRunner().Run(context.Background(), job))

	count, err := os.ReadFile(record + ".count")
	require.NoError(t, err)
	assert.Equal(t, "run\n", string(count), "tool should run exactly once")

	pwd, err := os.ReadFile(record + ".pwd")
	require.NoError(t, err)
	wantDir, err := filepath.EvalSymlinks(workDir)
	require.NoError(t, err)
	gotDir, err := filepath.EvalSymlinks(string(pwd[:len(pwd)-1]))
	require.NoError(t, err)
	assert.Equal(t, wantDir, gotDir, "tool should run in the job working directory")

	args, err := os.ReadFile(record + ".args")
	require.NoError(t, err)
	assert.Equal(t, "out/\ndesigns.fasta\n", string(args), "arguments must be passed in order, unmodified")
}

func TestRunWorkDirFromSubmitEnv(t *testing.T) {
	setupEnv(t, "fold_tool", recordingTool)
	submitDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(submitDir, "designs.fasta"), []byte(">a\nMK\n"), 0o644))
	t.Setenv("PBS_O_WORKDIR", submitDir)
	record := filepath.Join(t.TempDir(), "record")

	job := Job{
		Tool:      "fold_tool",
		CondaEnv:  "af2",
		OutputDir: "out/",
		FastaPath: "designs.fasta",
		WorkDir:   t.TempDir(), // loses to $PBS_O_WORKDIR
		ExtraEnv:  []string{"FOLD_RECORD=" + record},
	}
	require.NoError(t, quietRunner().Run(context.Background(), job))

	pwd, err := os.ReadFile(record + ".pwd")
	require.NoError(t, err)
	wantDir, err := filepath.EvalSymlinks(submitDir)
	require.NoError(t, err)
	gotDir, err := filepath.EvalSymlinks(string(pwd[:len(pwd)-1]))
	require.NoError(t, err)
	assert.Equal(t, wantDir, gotDir)
}

func TestRunPropagatesExitStatus(t *testing.T) {
	setupEnv(t, "fold_tool", recordingTool)
	workDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "designs.fasta"), []byte(">a\nMK\n"), 0o644))
	record := filepath.Join(t.TempDir(), "record")

	job := Job{
		Tool:      "fold_tool",
		CondaEnv:  "af2",
		OutputDir: "out/",
		FastaPath: "designs.fasta",
		WorkDir:   workDir,
		ExtraEnv:  []string{"FOLD_RECORD=" + record, "FOLD_EXIT=3"},
	}
	err := quietRunner().Run(context.Background(), job)

	var ee *ExitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 3, ee.Code)
}

func TestRunMissingInput(t *testing.T) {
	setupEnv(t, "fold_tool", recordingTool)
	workDir := t.TempDir()
	record := filepath.Join(t.TempDir(), "record")

	job := Job{
		Tool:      "fold_tool",
		CondaEnv:  "af2",
		OutputDir: filepath.Join(workDir, "out"),
		FastaPath: "designs.fasta",
		WorkDir:   workDir,
		ExtraEnv:  []string{"FOLD_RECORD=" + record},
	}
	err := quietRunner().Run(context.Background(), job)
	require.Error(t, err)

	_, statErr := os.Stat(job.OutputDir)
	assert.True(t, os.IsNotExist(statErr), "output dir must not be fabricated")
	_, statErr = os.Stat(record + ".count")
	assert.True(t, os.IsNotExist(statErr), "tool must not start when the input is missing")
}

func TestRunMissingEnvironment(t *testing.T) {
	setupEnv(t, "fold_tool", recordingTool)
	workDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "designs.fasta"), []byte(">a\nMK\n"), 0o644))
	record := filepath.Join(t.TempDir(), "record")

	job := Job{
		Tool:      "fold_tool",
		CondaEnv:  "missing-env",
		OutputDir: "out/",
		FastaPath: "designs.fasta",
		WorkDir:   workDir,
		ExtraEnv:  []string{"FOLD_RECORD=" + record},
	}
	err := quietRunner().Run(context.Background(), job)
	require.Error(t, err)

	_, statErr := os.Stat(record + ".count")
	assert.True(t, os.IsNotExist(statErr), "tool must not start when the environment is missing")
}

func TestRunTerminatesOnCancel(t *testing.T) {
	setupEnv(t, "fold_tool", trappingTool)
	workDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "designs.fasta"), []byte(">a\nMK\n"), 0o644))
	record := filepath.Join(t.TempDir(), "record")

	job := Job{
		Tool:      "fold_tool",
		CondaEnv:  "af2",
		OutputDir: "out/",
		FastaPath: "designs.fasta",
		WorkDir:   workDir,
		ExtraEnv:  []string{"FOLD_RECORD=" + record},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- quietRunner().Run(ctx, job) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(record + ".started")
		return err == nil
	}, 5*time.Second, 10*time.Millisecond, "tool never started")
	cancel()

	select {
	case err := <-errCh:
		var ee *ExitError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, 143, ee.Code)
	case <-time.After(10 * time.Second):
		t.Fatal("runner did not return after cancellation")
	}
}
