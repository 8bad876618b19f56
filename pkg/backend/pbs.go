package backend

import (
	"context"
	"os"
	"strconv"

	"github.com/origamihpc/origami/config"
	"github.com/origamihpc/origami/pkg/common/foldingjob"
	"github.com/origamihpc/origami/pkg/common/types"
	"github.com/origamihpc/origami/pkg/pbs"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const defaultPBSTotalGPUs = 4

// PBS renders each folding job into a job script and qsubs it. The PBS
// server owns node placement; this backend only submits and watches.
type PBS struct {
	client   *pbs.Client
	totalGPU int
}

func NewPBS() *PBS {
	totalGPU := defaultPBSTotalGPUs
	if v := os.Getenv(config.EnvPBSTotalGPUs); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			totalGPU = n
		} else {
			klog.ErrorS(err, "Ignoring invalid GPU capacity", "value", v)
		}
	}
	return &PBS{
		client:   pbs.NewClient(),
		totalGPU: totalGPU,
	}
}

func (b *PBS) Name() string {
	return "pbs"
}

func (b *PBS) TotalGPUs() int {
	return b.totalGPU
}

func (b *PBS) Submit(ctx context.Context, job *foldingjob.FoldingJob) (string, error) {
	script := pbs.FromJob(job)
	rendered, err := script.Render()
	if err != nil {
		return "", errors.Wrapf(err, "render job script for %s", job.JobName)
	}
	id, err := b.client.Submit(ctx, rendered, job.Config.WorkDir)
	if err != nil {
		return "", errors.Wrapf(err, "submit %s", job.JobName)
	}
	klog.V(3).InfoS("Submitted job to PBS", "job", job.JobName, "jobID", id)
	return id, nil
}

func (b *PBS) Status(ctx context.Context, id string) (types.JobStatusType, error) {
	state, err := b.client.Status(ctx, id)
	if err != nil {
		return "", err
	}
	if state != pbs.StateCompleted {
		return statePhase(state), nil
	}
	// Finished; success or failure comes from the recorded exit status.
	code, found, err := b.client.ExitStatus(ctx, id)
	if err != nil {
		return "", err
	}
	if found && code != 0 {
		return types.JobFailed, nil
	}
	return types.JobCompleted, nil
}

func (b *PBS) ExitStatus(ctx context.Context, id string) (int, bool, error) {
	return b.client.ExitStatus(ctx, id)
}

func (b *PBS) Cancel(ctx context.Context, id string) error {
	return b.client.Delete(ctx, id)
}

func statePhase(state pbs.State) types.JobStatusType {
	switch state {
	case pbs.StateRunning, pbs.StateExiting:
		return types.JobRunning
	case pbs.StateQueued, pbs.StateHeld, pbs.StateWaiting:
		return types.JobQueued
	case pbs.StateCompleted:
		return types.JobCompleted
	default:
		return types.JobQueued
	}
}
