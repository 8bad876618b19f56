// Package runner executes a folding job on the node it is called from,
// reproducing the behavior of the batch script: change into the job's
// working directory, activate the job's environment, then invoke the
// folding tool once and report its exit status.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/origamihpc/origami/pkg/condaenv"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Job is everything the runner needs to execute one folding job.
type Job struct {
	// Tool is the folding tool to invoke. A bare name is resolved in the
	// activated environment's bin directory first, then on PATH.
	Tool     string
	CondaEnv string
	// OutputDir and FastaPath are passed to the tool as its only two
	// arguments, in this order, exactly as given.
	OutputDir string
	FastaPath string
	// WorkDir is the directory to run in. $PBS_O_WORKDIR takes precedence
	// when set; the caller's working directory is the fallback.
	WorkDir string
	// ExtraEnv entries are appended to the process environment before
	// activation, e.g. CUDA_VISIBLE_DEVICES.
	ExtraEnv []string
}

// ExitError reports that the tool ran and exited non-zero. The code is
// passed through as-is.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("folding tool exited with status %d", e.Code)
}

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
}

func New() *Runner {
	return &Runner{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run executes the job and blocks until the tool exits. A non-zero exit
// becomes an *ExitError carrying the tool's status. When ctx is canceled
// the tool receives SIGTERM and Run returns after it exits.
//
// The input FASTA is checked before the tool starts; when it is missing
// Run fails without creating the output directory or anything else.
func (r *Runner) Run(ctx context.Context, job Job) error {
	workDir, err := resolveWorkDir(job)
	if err != nil {
		return err
	}

	activation, err := condaenv.Activate(job.CondaEnv)
	if err != nil {
		return errors.Wrap(err, "activate environment")
	}

	fastaPath := job.FastaPath
	if !filepath.IsAbs(fastaPath) {
		fastaPath = filepath.Join(workDir, fastaPath)
	}
	if _, err := os.Stat(fastaPath); err != nil {
		return errors.Wrap(err, "input fasta")
	}

	toolPath, err := resolveTool(activation, job.Tool)
	if err != nil {
		return err
	}

	cmd := exec.Command(toolPath, job.OutputDir, job.FastaPath)
	cmd.Dir = workDir
	cmd.Env = activation.Environ(append(os.Environ(), job.ExtraEnv...))
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	klog.InfoS("Starting folding tool", "tool", job.Tool, "outputDir", job.OutputDir,
		"fasta", job.FastaPath, "workDir", workDir, "env", activation.Name)

	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "start %s", job.Tool)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			klog.V(3).InfoS("Terminating folding tool", "tool", job.Tool)
			cmd.Process.Signal(syscall.SIGTERM)
		case <-done:
		}
	}()

	err = cmd.Wait()
	if err == nil {
		klog.V(3).InfoS("Folding tool finished", "tool", job.Tool)
		return nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return &ExitError{Code: ee.ExitCode()}
	}
	return errors.Wrapf(err, "wait for %s", job.Tool)
}

// resolveWorkDir picks the job's working directory the way the batch
// script's cd does. $PBS_O_WORKDIR wins when present.
func resolveWorkDir(job Job) (string, error) {
	if dir := os.Getenv("PBS_O_WORKDIR"); dir != "" {
		return dir, nil
	}
	if job.WorkDir != "" {
		return job.WorkDir, nil
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", errors.Wrap(err, "resolve working directory")
	}
	return dir, nil
}

// resolveTool mimics the PATH lookup a shell would do after activation:
// a bare tool name is searched in the env's bin directory first.
func resolveTool(activation *condaenv.Activation, tool string) (string, error) {
	if strings.ContainsRune(tool, os.PathSeparator) {
		return tool, nil
	}
	candidate := filepath.Join(activation.Prefix, "bin", tool)
	if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() && fi.Mode()&0o111 != 0 {
		return candidate, nil
	}
	path, err := exec.LookPath(tool)
	if err != nil {
		return "", errors.Wrapf(err, "tool %q not found in environment %s or on PATH", tool, activation.Name)
	}
	return path, nil
}
