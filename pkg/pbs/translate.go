package pbs

import (
	"strings"
	"text/template"

	"github.com/pkg/errors"
)

// slurmView is the target-scheduler rendering of a JobScript. Directive
// values are carried over verbatim; only the syntax changes.
type slurmView struct {
	JobName    string
	OutputPath string
	ErrorPath  string
	Queue      string
	Nodes      int
	PPN        int
	GPUs       int
	Rerunnable bool
	CondaEnv   string
	Tool       string
	OutputDir  string
	FastaPath  string
}

var slurmTemplate = template.Must(template.New("slurm").Parse(`#!/bin/bash
#SBATCH --job-name {{.JobName}}
#SBATCH --output {{.OutputPath}}
#SBATCH --error {{.ErrorPath}}
{{if ne .Queue "" -}}
{{printf "#SBATCH --partition %s" .Queue}}
{{end -}}
#SBATCH --nodes {{.Nodes}}
#SBATCH --ntasks-per-node {{.PPN}}
{{if ne .GPUs 0 -}}
{{printf "#SBATCH --gres gpu:%d" .GPUs}}
{{end -}}
#SBATCH {{if .Rerunnable}}--requeue{{else}}--no-requeue{{end}}

cd $SLURM_SUBMIT_DIR

source activate {{.CondaEnv}}

{{.Tool}} {{.OutputDir}} {{.FastaPath}}
`))

// Translate renders the job as an equivalent Slurm batch script. Queue,
// node/processor counts and the GPU request keep their exact values; the
// job-id token in log destinations becomes Slurm's %j and the submission
// directory variable becomes SLURM_SUBMIT_DIR. Directives we do not
// interpret have no general Slurm equivalent and are dropped.
func (s JobScript) Translate() (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	if s.Descriptor.OutputPath == "" {
		s.Descriptor.OutputPath = defaultOutputPath
	}
	if s.Descriptor.ErrorPath == "" {
		s.Descriptor.ErrorPath = defaultErrorPath
	}

	v := slurmView{
		JobName:    s.Descriptor.JobName,
		OutputPath: slurmLogPath(s.Descriptor.OutputPath),
		ErrorPath:  slurmLogPath(s.Descriptor.ErrorPath),
		Queue:      s.Descriptor.Queue,
		Nodes:      s.Descriptor.Nodes,
		PPN:        s.Descriptor.PPN,
		GPUs:       s.Descriptor.GPUs,
		Rerunnable: s.Descriptor.Rerunnable,
		CondaEnv:   s.Invocation.CondaEnv,
		Tool:       s.Invocation.Tool,
		OutputDir:  s.Invocation.OutputDir,
		FastaPath:  s.Invocation.FastaPath,
	}

	var b strings.Builder
	if err := slurmTemplate.Execute(&b, v); err != nil {
		return "", errors.Wrap(err, "translate job script")
	}
	return b.String(), nil
}

// slurmLogPath rewrites the job-id token of a log destination.
func slurmLogPath(p string) string {
	p = strings.ReplaceAll(p, "${PBS_JOBID}", "%j")
	return strings.ReplaceAll(p, "$PBS_JOBID", "%j")
}
