package main

import (
	"os"
	"sort"

	"github.com/origamihpc/origami/cmd/cmd"
	"github.com/origamihpc/origami/config"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

func main() {
	app := cli.NewApp()
	app.Name = config.Name
	app.Version = config.Version
	app.Usage = "Protein folding batch jobs"
	app.Description = "Manage folding jobs in Origami scheduler"
	app.Commands = []*cli.Command{
		{
			Name:   "create",
			Usage:  "Create a new folding job from YAML",
			Action: cmd.CreateJob,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "filename",
					Aliases:  []string{"f"},
					Usage:    "`FILENAME` to use to create the folding job",
					Required: true,
				},
			},
		},
		{
			Name:   "delete",
			Usage:  "Delete a folding job by name",
			Action: cmd.DeleteJob,
		},
		{
			Name:  "get",
			Usage: "Display one or many resources",
			Subcommands: []*cli.Command{
				{
					Name:   "jobs",
					Usage:  "Prints a table of all folding jobs.",
					Action: cmd.GetJobs,
				},
				{
					Name:   "job",
					Usage:  "Prints a single folding job by name.",
					Action: cmd.GetJob,
				},
			},
		},
		{
			Name:   "script",
			Usage:  "Render the job script of a folding job without submitting it",
			Action: cmd.Script,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "filename",
					Aliases: []string{"f"},
					Usage:   "`FILENAME` of the YAML spec to render",
				},
				&cli.StringFlag{
					Name:  "from",
					Usage: "existing PBS `SCRIPT` to parse instead of a YAML spec",
				},
				&cli.BoolFlag{
					Name:  "slurm",
					Usage: "render the Slurm translation of the script",
				},
			},
		},
		{
			Name:   "run",
			Usage:  "Run a folding job on this node without a batch system",
			Action: cmd.RunJob,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "filename",
					Aliases:  []string{"f"},
					Usage:    "`FILENAME` of the YAML spec to run",
					Required: true,
				},
			},
		},
		{
			Name:      "filter",
			Usage:     "Run a filter plan over a directory of folded structures",
			ArgsUsage: "DIRECTORY",
			Action:    cmd.FilterStructures,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "plan",
					Usage:    "`FILENAME` of the HCL filter plan",
					Required: true,
				},
				&cli.BoolFlag{
					Name:  "dry-run",
					Usage: "report verdicts without moving any structure",
				},
			},
		},
		{
			Name:   "rename",
			Usage:  "Rename the designs of a FASTA file under a common prefix",
			Action: cmd.RenameFasta,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "input",
					Aliases:  []string{"i"},
					Usage:    "`FILENAME` of the FASTA file to rename",
					Required: true,
				},
				&cli.StringFlag{
					Name:    "output",
					Aliases: []string{"o"},
					Usage:   "`FILENAME` to write to (defaults to rewriting the input)",
				},
				&cli.StringFlag{
					Name:    "prefix",
					Aliases: []string{"p"},
					Usage:   "design `PREFIX` (defaults to one derived from the first header)",
				},
			},
		},
	}

	sort.Sort(cli.FlagsByName(app.Flags))
	sort.Sort(cli.CommandsByName(app.Commands))

	err := app.Run(os.Args)
	if err != nil {
		klog.ErrorS(err, "Failed")
		os.Exit(1)
	}
}
