package cmd

import (
	"context"
	"errors"
	"io/ioutil"
	"os"
	"os/signal"
	"syscall"

	"github.com/origamihpc/origami/pkg/common/foldingjob"
	"github.com/origamihpc/origami/pkg/runner"
	"github.com/urfave/cli/v2"
	"sigs.k8s.io/yaml"
)

// RunJob executes a folding job on the local node, the way the batch
// script would: working directory, environment activation, one tool
// invocation. The tool's exit status becomes ours.
func RunJob(c *cli.Context) error {
	file := c.String("filename")
	data, err := ioutil.ReadFile(file)
	if err != nil {
		return err
	}
	spec := foldingjob.JobSpec{}
	if err = yaml.Unmarshal(data, &spec); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = runner.New().Run(ctx, runner.Job{
		Tool:      spec.Tool,
		CondaEnv:  spec.CondaEnv,
		OutputDir: spec.OutputDir,
		FastaPath: spec.Fasta,
		WorkDir:   spec.WorkDir,
	})
	var exitErr *runner.ExitError
	if errors.As(err, &exitErr) {
		return cli.Exit("", exitErr.Code)
	}
	return err
}
