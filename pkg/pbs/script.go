package pbs

import (
	"strings"
	"text/template"

	"github.com/pkg/errors"
)

var pbsTemplate = template.Must(template.New("pbs").Parse(`#!/bin/bash
#PBS -N {{.Descriptor.JobName}}
#PBS -o {{.Descriptor.OutputPath}}
#PBS -e {{.Descriptor.ErrorPath}}
{{if ne .Descriptor.Queue "" -}}
{{printf "#PBS -q %s" .Descriptor.Queue}}
{{end -}}
#PBS -l nodes={{.Descriptor.Nodes}}:ppn={{.Descriptor.PPN}}
{{if ne .Descriptor.GPUs 0 -}}
{{printf "#PBS -l gres=gpu:%d" .Descriptor.GPUs}}
{{end -}}
#PBS -r {{if .Descriptor.Rerunnable}}y{{else}}n{{end}}
{{range .Descriptor.Extra -}}
{{printf "#PBS %s" .}}
{{end}}
cd $PBS_O_WORKDIR

source activate {{.Invocation.CondaEnv}}

{{.Invocation.Tool}} {{.Invocation.OutputDir}} {{.Invocation.FastaPath}}
`))

// Validate reports whether the script has everything a submittable job
// needs.
func (s JobScript) Validate() error {
	d := s.Descriptor
	if d.JobName == "" {
		return errors.New("descriptor missing job name")
	}
	if d.Nodes <= 0 {
		return errors.Errorf("descriptor has invalid node count %d", d.Nodes)
	}
	if d.PPN <= 0 {
		return errors.Errorf("descriptor has invalid processor count %d", d.PPN)
	}
	if d.GPUs < 0 {
		return errors.Errorf("descriptor has invalid gpu count %d", d.GPUs)
	}
	inv := s.Invocation
	if inv.CondaEnv == "" {
		return errors.New("invocation missing environment name")
	}
	if inv.Tool == "" {
		return errors.New("invocation missing tool")
	}
	if inv.OutputDir == "" {
		return errors.New("invocation missing output directory")
	}
	if inv.FastaPath == "" {
		return errors.New("invocation missing input fasta")
	}
	return nil
}

// Render produces the job script text. The body changes into the
// submission working directory, activates the environment and invokes the
// folding tool exactly once, output directory first, input fasta second.
// The tool invocation is the script's last command, so its exit status is
// the job's exit status.
func (s JobScript) Render() (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	if s.Descriptor.OutputPath == "" {
		s.Descriptor.OutputPath = defaultOutputPath
	}
	if s.Descriptor.ErrorPath == "" {
		s.Descriptor.ErrorPath = defaultErrorPath
	}

	var b strings.Builder
	if err := pbsTemplate.Execute(&b, s); err != nil {
		return "", errors.Wrap(err, "render job script")
	}
	return b.String(), nil
}
