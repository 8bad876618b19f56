package pbs

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/origamihpc/origami/config"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// State is a job state letter as reported by qstat.
type State string

const (
	StateQueued    State = "Q"
	StateRunning   State = "R"
	StateExiting   State = "E"
	StateCompleted State = "C"
	StateHeld      State = "H"
	StateWaiting   State = "W"
)

// Client drives the cluster scheduler through its own CLI tools. Binary
// paths can be overridden through the environment for sites that wrap
// qsub, otherwise they are resolved from PATH.
type Client struct {
	QsubPath  string
	QstatPath string
	QdelPath  string
}

func NewClient() *Client {
	c := &Client{
		QsubPath:  os.Getenv(config.EnvQsubPath),
		QstatPath: os.Getenv(config.EnvQstatPath),
		QdelPath:  os.Getenv(config.EnvQdelPath),
	}
	if c.QsubPath == "" {
		c.QsubPath = "qsub"
	}
	if c.QstatPath == "" {
		c.QstatPath = "qstat"
	}
	if c.QdelPath == "" {
		c.QdelPath = "qdel"
	}
	return c
}

// Submit feeds the script to qsub on stdin, running it from workDir so the
// scheduler records workDir as PBS_O_WORKDIR. It returns the
// scheduler-assigned job id.
func (c *Client) Submit(ctx context.Context, script, workDir string) (string, error) {
	cmd := exec.CommandContext(ctx, c.QsubPath)
	cmd.Stdin = strings.NewReader(script)
	cmd.Dir = workDir

	out, err := cmd.Output()
	if err != nil {
		return "", errors.Wrapf(err, "qsub: %s", cmdStderr(err))
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		return "", errors.New("qsub returned no job id")
	}
	klog.V(4).InfoS("Submitted job script", "jobID", id, "workDir", workDir)
	return id, nil
}

// Status asks qstat for the job's state letter. A job qstat no longer
// knows has left the queue and is reported as completed; the dispatcher
// decides success or failure from the job's own records.
func (c *Client) Status(ctx context.Context, jobID string) (State, error) {
	cmd := exec.CommandContext(ctx, c.QstatPath, jobID)
	out, err := cmd.Output()
	if err != nil {
		if isUnknownJob(cmdStderr(err)) {
			return StateCompleted, nil
		}
		return "", errors.Wrapf(err, "qstat %s: %s", jobID, cmdStderr(err))
	}
	return parseQstatState(string(out), jobID)
}

// ExitStatus asks qstat for the exit status of a finished job, searching
// completed job history with -x. The second return is false when the
// scheduler no longer knows the status.
func (c *Client) ExitStatus(ctx context.Context, jobID string) (int, bool, error) {
	cmd := exec.CommandContext(ctx, c.QstatPath, "-f", "-x", jobID)
	out, err := cmd.Output()
	if err != nil {
		if isUnknownJob(cmdStderr(err)) {
			return 0, false, nil
		}
		return 0, false, errors.Wrapf(err, "qstat -f -x %s: %s", jobID, cmdStderr(err))
	}
	return parseExitStatus(string(out))
}

// Delete removes the job from the queue. Deleting a job that already left
// the queue is not an error.
func (c *Client) Delete(ctx context.Context, jobID string) error {
	cmd := exec.CommandContext(ctx, c.QdelPath, jobID)
	if err := cmd.Run(); err != nil {
		if isUnknownJob(cmdStderr(err)) {
			return nil
		}
		return errors.Wrapf(err, "qdel %s: %s", jobID, cmdStderr(err))
	}
	klog.V(4).InfoS("Deleted job from scheduler queue", "jobID", jobID)
	return nil
}

// parseQstatState extracts the state letter of a job from plain qstat
// output. The job id column may be truncated for long ids, so the match
// works on prefixes in both directions.
func parseQstatState(out, jobID string) (State, error) {
	for _, line := range strings.Split(out, "\n") {
		f := strings.Fields(line)
		if len(f) < 6 {
			continue
		}
		if !sameJob(f[0], jobID) {
			continue
		}
		return State(f[4]), nil
	}
	return "", errors.Errorf("job %s not in qstat output", jobID)
}

// parseExitStatus scans full qstat output for the exit_status attribute.
// Jobs that are still running or were deleted have none.
func parseExitStatus(out string) (int, bool, error) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "exit_status") {
			continue
		}
		_, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		code, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, false, errors.Wrapf(err, "parse exit_status %q", value)
		}
		return code, true, nil
	}
	return 0, false, nil
}

func sameJob(column, jobID string) bool {
	if column == "" || jobID == "" {
		return false
	}
	return strings.HasPrefix(jobID, column) || strings.HasPrefix(column, jobID)
}

func isUnknownJob(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "unknown job id")
}

func cmdStderr(err error) string {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return strings.TrimSpace(string(ee.Stderr))
	}
	return err.Error()
}
