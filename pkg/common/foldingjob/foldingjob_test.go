package foldingjob

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/origamihpc/origami/pkg/common/types"
)

func minimalSpec() JobSpec {
	return JobSpec{
		Name:      "fold-ub",
		Tool:      "af2_predict",
		CondaEnv:  "af2",
		Fasta:     "designs.fasta",
		OutputDir: "out/",
	}
}

func TestNewFoldingJobDefaults(t *testing.T) {
	submitted := time.Date(2022, 3, 14, 15, 9, 26, 0, time.UTC)
	job, err := NewFoldingJob(minimalSpec(), "folding-jobs", submitted)
	require.NoError(t, err)

	assert.Equal(t, "fold-ub", job.JobName)
	assert.Equal(t, "folding-jobs", job.JobCollection)
	assert.Equal(t, submitted, job.Submitted)
	assert.Equal(t, types.JobSubmitted, job.Status)

	assert.Equal(t, 1, job.Config.Nodes)
	assert.Equal(t, 4, job.Config.PPN)
	assert.Equal(t, 1, job.Config.GPUs)
	assert.True(t, job.Config.Rerunnable)
	assert.Equal(t, "pbs", job.Config.Backend)
}

func TestNewFoldingJobExplicitValues(t *testing.T) {
	gpus := 2
	rerunnable := false

	spec := minimalSpec()
	spec.WorkDir = "/scratch/ub"
	spec.Queue = "gpu"
	spec.Nodes = 2
	spec.PPN = 8
	spec.GPUs = &gpus
	spec.Rerunnable = &rerunnable
	spec.Backend = "local"
	spec.FilterPlan = "plans/standard.hcl"

	job, err := NewFoldingJob(spec, "jobs", time.Now())
	require.NoError(t, err)

	assert.Equal(t, "/scratch/ub", job.Config.WorkDir)
	assert.Equal(t, "gpu", job.Config.Queue)
	assert.Equal(t, 2, job.Config.Nodes)
	assert.Equal(t, 8, job.Config.PPN)
	assert.Equal(t, 2, job.Config.GPUs)
	assert.False(t, job.Config.Rerunnable)
	assert.Equal(t, "local", job.Config.Backend)
	assert.Equal(t, "plans/standard.hcl", job.Config.FilterPlan)
}

func TestNewFoldingJobZeroGPUs(t *testing.T) {
	// An explicit zero differs from an omitted field; CPU-only jobs are
	// allowed.
	gpus := 0
	spec := minimalSpec()
	spec.GPUs = &gpus

	job, err := NewFoldingJob(spec, "jobs", time.Now())
	require.NoError(t, err)
	assert.Zero(t, job.Config.GPUs)
}

func TestNewFoldingJobValidation(t *testing.T) {
	tests := map[string]func(*JobSpec){
		"missing name":      func(s *JobSpec) { s.Name = "" },
		"missing tool":      func(s *JobSpec) { s.Tool = "" },
		"missing condaEnv":  func(s *JobSpec) { s.CondaEnv = "" },
		"missing fasta":     func(s *JobSpec) { s.Fasta = "" },
		"missing outputDir": func(s *JobSpec) { s.OutputDir = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			spec := minimalSpec()
			mutate(&spec)
			_, err := NewFoldingJob(spec, "jobs", time.Now())
			assert.Error(t, err)
		})
	}
}
