package cmd

import (
	"errors"
	"fmt"

	"github.com/origamihpc/origami/pkg/pipeline"
	"github.com/urfave/cli/v2"
)

// FilterStructures runs a filter plan over a directory of folded
// structures, the same pass the dispatcher runs after a job completes.
func FilterStructures(c *cli.Context) error {
	dir := c.Args().Get(0)
	if dir == "" {
		return errors.New("must specify a directory of structures")
	}

	plan, err := pipeline.LoadPlan(c.String("plan"))
	if err != nil {
		return err
	}

	r := pipeline.NewRunner(plan)
	r.DryRun = c.Bool("dry-run")

	result, err := r.Run(c.Context, dir)
	if err != nil {
		return err
	}

	fmt.Printf("%d/%d structures survived, report: %s\n",
		len(result.Survivors), result.Total, result.Report)
	for _, path := range result.Survivors {
		fmt.Println(path)
	}
	return nil
}
