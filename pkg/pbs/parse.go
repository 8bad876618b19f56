package pbs

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Parse reads a job script back into its descriptor and invocation. It is
// the inverse of Render and is strict about the execution contract: the
// script must change into $PBS_O_WORKDIR before the tool invocation, and
// the invocation must be a single command with exactly two path arguments.
func Parse(script string) (JobScript, error) {
	var (
		s        JobScript
		sawChdir bool
		command  []string
	)

	sc := bufio.NewScanner(strings.NewReader(script))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue

		case strings.HasPrefix(line, "#PBS"):
			rest := strings.TrimSpace(strings.TrimPrefix(line, "#PBS"))
			if err := parseDirective(&s.Descriptor, rest); err != nil {
				return s, err
			}

		case strings.HasPrefix(line, "#"):
			// shebang and comments
			continue

		case line == "cd $PBS_O_WORKDIR" || line == `cd "$PBS_O_WORKDIR"`:
			if command != nil {
				return s, errors.New("tool invoked before changing into $PBS_O_WORKDIR")
			}
			sawChdir = true

		case strings.HasPrefix(line, "source activate "), strings.HasPrefix(line, "conda activate "):
			f := strings.Fields(line)
			s.Invocation.CondaEnv = f[len(f)-1]

		case strings.HasPrefix(line, "source "), strings.HasPrefix(line, "module load "):
			// shell-integration boilerplate, e.g. conda.sh hooks
			continue

		default:
			if command != nil {
				return s, errors.Errorf("more than one command in job script: %q", line)
			}
			command = strings.Fields(line)
		}
	}
	if err := sc.Err(); err != nil {
		return s, errors.Wrap(err, "scan job script")
	}

	if !sawChdir {
		return s, errors.New("job script does not change into $PBS_O_WORKDIR")
	}
	if s.Invocation.CondaEnv == "" {
		return s, errors.New("job script does not activate an environment")
	}
	if command == nil {
		return s, errors.New("job script has no tool invocation")
	}
	if len(command) != 3 {
		return s, errors.Errorf("tool invocation must have exactly two arguments, got %q", strings.Join(command, " "))
	}
	s.Invocation.Tool = command[0]
	s.Invocation.OutputDir = command[1]
	s.Invocation.FastaPath = command[2]

	return s, nil
}

func parseDirective(d *Descriptor, rest string) error {
	f := strings.Fields(rest)
	if len(f) < 2 {
		return errors.Errorf("malformed directive %q", rest)
	}
	switch f[0] {
	case "-N":
		d.JobName = f[1]
	case "-o":
		d.OutputPath = f[1]
	case "-e":
		d.ErrorPath = f[1]
	case "-q":
		d.Queue = f[1]
	case "-r":
		d.Rerunnable = f[1] == "y"
	case "-l":
		return parseResourceList(d, rest, f[1])
	default:
		d.Extra = append(d.Extra, rest)
	}
	return nil
}

func parseResourceList(d *Descriptor, rest, v string) error {
	switch {
	case strings.HasPrefix(v, "nodes="):
		for _, part := range strings.Split(v, ":") {
			kv := strings.SplitN(part, "=", 2)
			if len(kv) != 2 {
				return errors.Errorf("malformed resource list %q", v)
			}
			n, err := strconv.Atoi(kv[1])
			if err != nil {
				return errors.Wrapf(err, "resource list %q", v)
			}
			switch kv[0] {
			case "nodes":
				d.Nodes = n
			case "ppn":
				d.PPN = n
			case "gpus":
				d.GPUs = n
			default:
				d.Extra = append(d.Extra, rest)
				return nil
			}
		}
	case strings.HasPrefix(v, "gres=gpu"):
		gres := strings.TrimPrefix(v, "gres=")
		parts := strings.SplitN(gres, ":", 2)
		if parts[0] != "gpu" && parts[0] != "gpus" {
			d.Extra = append(d.Extra, rest)
			return nil
		}
		if len(parts) == 1 {
			d.GPUs = 1
			return nil
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			return errors.Wrapf(err, "gres request %q", gres)
		}
		d.GPUs = n
	default:
		// other resource requests (walltime, mem, ...) pass through verbatim
		d.Extra = append(d.Extra, rest)
	}
	return nil
}
