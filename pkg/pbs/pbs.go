// Package pbs models PBS/Torque job scripts for folding jobs: rendering,
// parsing, translation to Slurm, and a qsub/qstat/qdel client.
package pbs

import (
	"github.com/origamihpc/origami/pkg/common/foldingjob"
)

const (
	// Log destinations are named by the scheduler-assigned job id.
	defaultOutputPath = "$PBS_JOBID.out"
	defaultErrorPath  = "$PBS_JOBID.err"
)

// Descriptor carries the declarative resource-request directives of a job
// script. Values are opaque to us; they pass through to the scheduler
// unchanged.
type Descriptor struct {
	JobName    string
	OutputPath string
	ErrorPath  string
	Queue      string
	Nodes      int
	PPN        int
	GPUs       int
	Rerunnable bool
	// Directives we do not interpret, kept verbatim, e.g. walltime limits.
	Extra []string
}

// Invocation is the single command the job script runs after changing into
// the submission working directory and activating the environment.
type Invocation struct {
	CondaEnv  string
	Tool      string
	OutputDir string
	FastaPath string
}

// JobScript is a complete job script: directives plus the invocation.
type JobScript struct {
	Descriptor Descriptor
	Invocation Invocation
}

// FromJob builds the job script of a folding job.
func FromJob(j *foldingjob.FoldingJob) JobScript {
	return JobScript{
		Descriptor: Descriptor{
			JobName:    j.JobName,
			OutputPath: defaultOutputPath,
			ErrorPath:  defaultErrorPath,
			Queue:      j.Config.Queue,
			Nodes:      j.Config.Nodes,
			PPN:        j.Config.PPN,
			GPUs:       j.Config.GPUs,
			Rerunnable: j.Config.Rerunnable,
		},
		Invocation: Invocation{
			CondaEnv:  j.Config.CondaEnv,
			Tool:      j.Config.Tool,
			OutputDir: j.Config.OutputDir,
			FastaPath: j.Config.Fasta,
		},
	}
}
