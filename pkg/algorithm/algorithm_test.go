package algorithm

import (
	"testing"
	"time"

	"github.com/origamihpc/origami/pkg/common/foldingjob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeJob(name string, gpus int, residues int, submitted time.Time) foldingjob.FoldingJob {
	job := foldingjob.FoldingJob{
		JobName:   name,
		Submitted: submitted,
	}
	job.Config.GPUs = gpus
	job.Info.Residues = residues
	return job
}

func TestAlgorithmFactory(t *testing.T) {
	tests := map[string]struct {
		wantName string
		wantErr  bool
	}{
		"FIFO":   {wantName: "FIFO"},
		"SJF":    {wantName: "SJF"},
		"Tetris": {wantErr: true},
		"":       {wantErr: true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			a, err := NewAlgorithmFactory(name, "scheduler-test")
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantName, a.GetName())
		})
	}
}

func TestFIFOSchedule(t *testing.T) {
	base := time.Now()
	jobs := ReadyJobs{
		makeJob("job-c", 2, 800, base.Add(2*time.Minute)),
		makeJob("job-a", 1, 100, base),
		makeJob("job-b", 2, 50, base.Add(time.Minute)),
	}

	result := NewFIFO("scheduler-test").Schedule(jobs, 3)

	// 3 GPUs: job-a (1) then job-b (2) fit, job-c has to wait.
	assert.Equal(t, 1, result["job-a"])
	assert.Equal(t, 2, result["job-b"])
	assert.Equal(t, 0, result["job-c"])
}

func TestFIFOScheduleNoFreeGPU(t *testing.T) {
	base := time.Now()
	jobs := ReadyJobs{
		makeJob("job-a", 2, 100, base),
		makeJob("job-b", 1, 50, base.Add(time.Minute)),
	}

	result := NewFIFO("scheduler-test").Schedule(jobs, 0)

	assert.Equal(t, 0, result["job-a"])
	assert.Equal(t, 0, result["job-b"])
}

func TestSJFSchedule(t *testing.T) {
	base := time.Now()
	jobs := ReadyJobs{
		makeJob("job-long", 1, 900, base),
		makeJob("job-short", 1, 60, base.Add(2*time.Minute)),
		makeJob("job-mid", 1, 300, base.Add(time.Minute)),
	}

	result := NewSJF("scheduler-test").Schedule(jobs, 2)

	// 2 GPUs: the two shortest sequences run, the longest waits even
	// though it was submitted first.
	assert.Equal(t, 1, result["job-short"])
	assert.Equal(t, 1, result["job-mid"])
	assert.Equal(t, 0, result["job-long"])
}

func TestSJFScheduleTieBreaksBySubmitted(t *testing.T) {
	base := time.Now()
	jobs := ReadyJobs{
		makeJob("job-later", 1, 200, base.Add(time.Minute)),
		makeJob("job-earlier", 1, 200, base),
	}

	result := NewSJF("scheduler-test").Schedule(jobs, 1)

	assert.Equal(t, 1, result["job-earlier"])
	assert.Equal(t, 0, result["job-later"])
}

func TestValidateResultPanics(t *testing.T) {
	base := time.Now()
	jobs := ReadyJobs{makeJob("job-a", 2, 100, base)}

	assert.Panics(t, func() {
		validateResult(4, map[string]int{"job-a": 1}, jobs) // partial allocation
	})
	assert.Panics(t, func() {
		validateResult(1, map[string]int{"job-a": 2}, jobs) // exceeds total
	})
	assert.NotPanics(t, func() {
		validateResult(4, map[string]int{"job-a": 2}, jobs)
	})
}
