/*
https://github.com/kubernetes/kubernetes/blob/master/pkg/scheduler/core/generic_scheduler.go
https://github.com/microsoft/hivedscheduler/blob/master/pkg/internal/types.go
*/

package algorithm

import (
	"errors"

	"github.com/origamihpc/origami/pkg/common/foldingjob"
	"github.com/origamihpc/origami/pkg/common/types"
)

type ReadyJobs []foldingjob.FoldingJob

// SchedulerAlgorithm is an interface implemented by things that know how to schedule folding jobs
type SchedulerAlgorithm interface {
	Schedule(ReadyJobs, int) types.JobScheduleResult
	GetName() string
	// Whether need folding job info for scheduling
	NeedJobInfo() bool
}

func NewAlgorithmFactory(algorithm string, schedulerID string) (SchedulerAlgorithm, error) {
	switch algorithm {
	case "FIFO":
		return NewFIFO(schedulerID), nil
	case "SJF":
		return NewSJF(schedulerID), nil
	default:
		return nil, errors.New("Not found")
	}
}
