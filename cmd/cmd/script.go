package cmd

import (
	"errors"
	"fmt"
	"io/ioutil"
	"time"

	"github.com/origamihpc/origami/pkg/common/foldingjob"
	"github.com/origamihpc/origami/pkg/pbs"
	"github.com/urfave/cli/v2"
	"sigs.k8s.io/yaml"
)

// Script renders the job script of a folding job without submitting
// it. The job comes either from a YAML spec (--filename) or from an
// existing script (--from), and goes to stdout as PBS or, with
// --slurm, as its Slurm translation.
func Script(c *cli.Context) error {
	var script pbs.JobScript

	if from := c.String("from"); from != "" {
		data, err := ioutil.ReadFile(from)
		if err != nil {
			return err
		}
		script, err = pbs.Parse(string(data))
		if err != nil {
			return err
		}
	} else {
		file := c.String("filename")
		if file == "" {
			return errors.New("must specify --filename or --from")
		}
		data, err := ioutil.ReadFile(file)
		if err != nil {
			return err
		}
		spec := foldingjob.JobSpec{}
		if err = yaml.Unmarshal(data, &spec); err != nil {
			return err
		}
		t, err := foldingjob.NewFoldingJob(spec, spec.Name, time.Now())
		if err != nil {
			return err
		}
		script = pbs.FromJob(t)
	}

	var rendered string
	var err error
	if c.Bool("slurm") {
		rendered, err = script.Translate()
	} else {
		rendered, err = script.Render()
	}
	if err != nil {
		return err
	}
	fmt.Print(rendered)
	return nil
}
