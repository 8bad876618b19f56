// https://github.com/kubernetes/kubernetes/blob/master/pkg/scheduler/core/generic_scheduler.go

package algorithm

import (
	"sort"

	"github.com/origamihpc/origami/pkg/common/types"
	"k8s.io/klog/v2"
)

// SJF favors short sequences. Folding time grows with residue count, so
// scheduling the smallest proteins first minimizes mean waiting time.
type SJF struct {
	algorithm   string
	schedulerID string
}

func NewSJF(id string) *SJF {
	a := &SJF{
		algorithm:   "SJF",
		schedulerID: id,
	}
	return a
}

func (a *SJF) Schedule(jobs ReadyJobs, totalGPU int) (result types.JobScheduleResult) {
	result = make(map[string]int)
	freeGPU := totalGPU

	// sort the queue by residue count, ties broken by submitted time
	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].Info.Residues != jobs[j].Info.Residues {
			return jobs[i].Info.Residues < jobs[j].Info.Residues
		}
		return jobs[i].Submitted.Before(jobs[j].Submitted)
	})

	klog.V(5).InfoS("Started scheduling", "jobs", jobs, "freeGpu", freeGPU, "scheduler", a.schedulerID,
		"algorithm", a.algorithm)

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

func (a *SJF) GetName() string {
	return a.algorithm
}

func (a *SJF) NeedJobInfo() bool {
	return true
}
