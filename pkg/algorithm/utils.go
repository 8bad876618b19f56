package algorithm

import (
	"errors"

	"github.com/origamihpc/origami/pkg/common/types"
)

// validateResult panics on an allocation the scheduler must never emit.
// A folding job requests a fixed GPU count; it is scheduled with exactly
// that many GPUs or not at all.
func validateResult(totalGPU int, result types.JobScheduleResult, jobs ReadyJobs) {
	jobGPU := make(map[string]int)
	for _, job := range jobs {
		jobGPU[job.JobName] = job.Config.GPUs
	}

	allocatedGPU := 0
	for job, n := range result {
		if n < 0 {
			panic(errors.New("Invalid GPU allocations: can't be negative"))
		}
		if n != 0 && n != jobGPU[job] {
			panic(errors.New("Invalid GPU allocations: must match job request or be zero"))
		}
		allocatedGPU += n
	}
	if allocatedGPU > totalGPU {
		panic(errors.New("Invalid GPU allocations: exceeded total GPUs"))
	}
}
