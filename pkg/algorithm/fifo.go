// https://github.com/kubernetes/kubernetes/blob/master/pkg/scheduler/core/generic_scheduler.go

package algorithm

import (
	"sort"

	"github.com/origamihpc/origami/pkg/common/types"
	"k8s.io/klog/v2"
)

type FIFO struct {
	algorithm   string
	schedulerID string
}

func NewFIFO(id string) *FIFO {
	a := &FIFO{
		algorithm:   "FIFO",
		schedulerID: id,
	}
	return a
}

func (a *FIFO) Schedule(jobs ReadyJobs, totalGPU int) (result types.JobScheduleResult) {
	result = make(map[string]int)
	freeGPU := totalGPU

	// sort the queue by submitted time
	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].Submitted.Before(jobs[j].Submitted)
	})

	klog.V(5).InfoS("Started scheduling", "jobs", jobs, "freeGpu", freeGPU, "scheduler", a.schedulerID,
		"algorithm", a.algorithm)

	// allocate jobs their requested GPUs in arrival order
	for _, job := range jobs {
		result[job.JobName] = 0
		if freeGPU >= job.Config.GPUs {
			result[job.JobName] = job.Config.GPUs
			freeGPU -= job.Config.GPUs
		}
	}

	klog.V(4).InfoS("Finished scheduling", "result", result, "freeGpu", freeGPU, "scheduler", a.schedulerID,
		"algorithm", a.algorithm)

	validateResult(totalGPU, result, jobs)
	return result
}

func (a *FIFO) GetName() string {
	return a.algorithm
}

func (a *FIFO) NeedJobInfo() bool {
	return false
}
