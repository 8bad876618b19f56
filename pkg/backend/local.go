package backend

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/origamihpc/origami/pkg/common/foldingjob"
	"github.com/origamihpc/origami/pkg/common/types"
	"github.com/origamihpc/origami/pkg/placement"
	"github.com/origamihpc/origami/pkg/runner"
	"k8s.io/klog/v2"
)

// Local runs folding jobs as child processes on this node's GPUs. Device
// assignment comes from the placement manager; each job sees only its own
// devices through CUDA_VISIBLE_DEVICES.
type Local struct {
	schedulerID string
	pm          *placement.PlacementManager
	runner      *runner.Runner

	// jobs and their states, protected by mutex.
	mutex sync.RWMutex
	jobs  map[string]*localJob
}

type localJob struct {
	name   string
	cancel context.CancelFunc

	mutex    sync.Mutex
	status   types.JobStatusType
	exitCode int
	hasExit  bool
}

func NewLocal(schedulerID string) *Local {
	b := &Local{
		schedulerID: schedulerID,
		pm:          placement.NewPlacementManager(schedulerID),
		runner:      runner.New(),
		jobs:        map[string]*localJob{},
	}
	return b
}

func (b *Local) Name() string {
	return "local"
}

func (b *Local) TotalGPUs() int {
	return b.pm.TotalDevices()
}

// Place delegates to the placement manager.
func (b *Local) Place(result types.JobScheduleResult) {
	b.pm.Place(result)
}

func (b *Local) Submit(ctx context.Context, job *foldingjob.FoldingJob) (string, error) {
	id := uuid.NewString()

	devices := b.pm.Devices(job.JobName)
	rjob := runner.Job{
		Tool:      job.Config.Tool,
		CondaEnv:  job.Config.CondaEnv,
		OutputDir: job.Config.OutputDir,
		FastaPath: job.Config.Fasta,
		WorkDir:   job.Config.WorkDir,
		ExtraEnv:  []string{"CUDA_VISIBLE_DEVICES=" + placement.VisibleDevices(devices)},
	}

	// The job outlives the submit call and gets its own context.
	jobCtx, cancel := context.WithCancel(context.Background())
	lj := &localJob{
		name:   job.JobName,
		cancel: cancel,
		status: types.JobRunning,
	}
	b.mutex.Lock()
	b.jobs[id] = lj
	b.mutex.Unlock()

	klog.V(3).InfoS("Starting job on local GPUs", "job", job.JobName, "jobID", id,
		"devices", devices, "scheduler", b.schedulerID)

	go func() {
		err := b.runner.Run(jobCtx, rjob)
		cancel()

		lj.mutex.Lock()
		defer lj.mutex.Unlock()
		if err == nil {
			lj.status = types.JobCompleted
			lj.hasExit = true
			return
		}
		lj.status = types.JobFailed
		var ee *runner.ExitError
		if errors.As(err, &ee) {
			lj.exitCode = ee.Code
			lj.hasExit = true
		}
		klog.ErrorS(err, "Local job failed", "job", lj.name, "jobID", id, "scheduler", b.schedulerID)
	}()

	return id, nil
}

func (b *Local) Status(ctx context.Context, id string) (types.JobStatusType, error) {
	b.mutex.RLock()
	lj, ok := b.jobs[id]
	b.mutex.RUnlock()
	if !ok {
		return types.JobCompleted, nil
	}

	lj.mutex.Lock()
	defer lj.mutex.Unlock()
	return lj.status, nil
}

func (b *Local) ExitStatus(ctx context.Context, id string) (int, bool, error) {
	b.mutex.RLock()
	lj, ok := b.jobs[id]
	b.mutex.RUnlock()
	if !ok {
		return 0, false, nil
	}

	lj.mutex.Lock()
	defer lj.mutex.Unlock()
	return lj.exitCode, lj.hasExit, nil
}

func (b *Local) Cancel(ctx context.Context, id string) error {
	b.mutex.RLock()
	lj, ok := b.jobs[id]
	b.mutex.RUnlock()
	if !ok {
		return nil
	}

	klog.V(4).InfoS("Canceling local job", "job", lj.name, "jobID", id, "scheduler", b.schedulerID)
	lj.cancel()
	return nil
}
