// Package backend abstracts how folding jobs reach compute. Jobs either
// go through a PBS/Torque server or run directly on the local node's
// GPUs; the dispatcher drives both through the same interface.
package backend

import (
	"context"

	"github.com/origamihpc/origami/pkg/common/foldingjob"
	"github.com/origamihpc/origami/pkg/common/types"
	"github.com/pkg/errors"
)

// Backend submits folding jobs to compute and tracks them afterwards.
type Backend interface {
	Name() string
	// TotalGPUs is the GPU capacity the scheduling algorithm may hand out.
	TotalGPUs() int
	// Submit hands the job to the backend and returns a backend job id.
	Submit(ctx context.Context, job *foldingjob.FoldingJob) (string, error)
	// Status reports the phase of a previously submitted job. A job the
	// backend no longer knows is reported as completed.
	Status(ctx context.Context, id string) (types.JobStatusType, error)
	// ExitStatus reports the exit status of a finished job. The second
	// return is false when the backend does not know it.
	ExitStatus(ctx context.Context, id string) (int, bool, error)
	// Cancel stops a previously submitted job. Canceling an unknown or
	// finished job is not an error.
	Cancel(ctx context.Context, id string) error
}

// Placer is implemented by backends that manage GPU device placement
// themselves. The dispatcher calls Place after every rescheduling.
type Placer interface {
	Place(types.JobScheduleResult)
}

func NewBackendFactory(name string, schedulerID string) (Backend, error) {
	switch name {
	case "pbs":
		return NewPBS(), nil
	case "local":
		return NewLocal(schedulerID), nil
	default:
		return nil, errors.Errorf("unknown backend %q", name)
	}
}
