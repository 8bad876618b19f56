package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/origamihpc/origami/pkg/filter"
	"github.com/origamihpc/origami/pkg/pdb"
)

// ReportFileName is created inside the evaluated directory.
const ReportFileName = "filter_report.jsonl"

// Runner evaluates a filter plan over a directory of PDB structures.
type Runner struct {
	Plan *Plan

	// DryRun reports verdicts without moving any file.
	DryRun bool
}

func NewRunner(plan *Plan) *Runner {
	return &Runner{Plan: plan}
}

// Result summarizes one run.
type Result struct {
	RunID     string
	Dir       string
	Total     int
	Survivors []string
	Rejected  int
	Report    string
	Elapsed   time.Duration
}

// reportEntry is one line of the run report.
type reportEntry struct {
	RunID     string         `json:"run_id"`
	Time      time.Time      `json:"time"`
	Structure string         `json:"structure"`
	Stage     string         `json:"stage,omitempty"`
	Filter    string         `json:"filter,omitempty"`
	Metrics   filter.Metrics `json:"metrics,omitempty"`
	Keep      bool           `json:"keep"`
	Error     string         `json:"error,omitempty"`
}

type candidate struct {
	path string
	s    *pdb.Structure
}

type stageVerdict struct {
	keep    bool
	failed  error
	entries []reportEntry
}

// Run evaluates every .pdb file in dir through the plan's stages.
// Structures that fail a filter move to the rejected directory unless
// DryRun is set; structures that cannot be read or scored stay in
// place but drop out of the run. Every verdict lands in the report
// file inside dir.
func (r *Runner) Run(ctx context.Context, dir string) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	metrics.plansTotal.Inc()

	paths, err := listStructures(dir)
	if err != nil {
		return nil, err
	}
	klog.InfoS("Starting filter plan", "plan", r.Plan.Path, "dir", dir,
		"structures", len(paths), "runID", runID, "dryRun", r.DryRun)

	reportPath := filepath.Join(dir, ReportFileName)
	report, err := os.Create(reportPath)
	if err != nil {
		return nil, errors.Wrap(err, "create report")
	}
	defer report.Close()
	enc := json.NewEncoder(report)

	live := make([]candidate, 0, len(paths))
	for _, path := range paths {
		s, err := pdb.ReadFile(path)
		if err != nil {
			klog.ErrorS(err, "Skipping unreadable structure", "path", path)
			if encErr := enc.Encode(reportEntry{
				RunID:     runID,
				Time:      time.Now().UTC(),
				Structure: filepath.Base(path),
				Error:     err.Error(),
			}); encErr != nil {
				return nil, errors.Wrap(encErr, "write report")
			}
			continue
		}
		live = append(live, candidate{path: path, s: s})
	}
	metrics.structuresTotal.Add(float64(len(paths)))

	for _, stage := range r.Plan.Stages {
		if len(live) == 0 {
			break
		}
		verdicts := make([]stageVerdict, len(live))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.Plan.Workers)
		for i := range live {
			i := i
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				verdicts[i] = evalStage(stage, live[i].s)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, errors.Wrapf(err, "stage %s", stage.Name)
		}

		next := make([]candidate, 0, len(live))
		for i, c := range live {
			v := verdicts[i]
			for _, e := range v.entries {
				e.RunID = runID
				e.Structure = filepath.Base(c.path)
				e.Stage = stage.Name
				if err := enc.Encode(e); err != nil {
					return nil, errors.Wrap(err, "write report")
				}
			}
			switch {
			case v.failed != nil:
				klog.ErrorS(v.failed, "Structure could not be judged",
					"structure", c.path, "stage", stage.Name)
			case v.keep:
				next = append(next, c)
			default:
				if !r.DryRun {
					if err := r.reject(dir, c.path); err != nil {
						return nil, err
					}
				}
			}
		}
		klog.V(4).InfoS("Stage finished", "stage", stage.Name,
			"in", len(live), "out", len(next))
		live = next
	}

	survivors := make([]string, len(live))
	for i, c := range live {
		survivors[i] = c.path
	}
	result := &Result{
		RunID:     runID,
		Dir:       dir,
		Total:     len(paths),
		Survivors: survivors,
		Rejected:  len(paths) - len(survivors),
		Report:    reportPath,
		Elapsed:   time.Since(start),
	}
	metrics.structuresRejected.Add(float64(result.Rejected))
	metrics.planDuration.Observe(result.Elapsed.Seconds())

	klog.InfoS("Filter plan finished", "plan", r.Plan.Path, "runID", runID,
		"total", result.Total, "survivors", len(survivors),
		"rejected", result.Rejected, "elapsed", result.Elapsed)
	return result, nil
}

// evalStage runs the stage's filters in order, stopping at the first
// rejection or error.
func evalStage(st Stage, s *pdb.Structure) stageVerdict {
	v := stageVerdict{keep: true}
	for _, f := range st.Filters {
		keep, m, err := f.Keep(s)
		now := time.Now().UTC()
		if err != nil {
			v.keep = false
			v.failed = err
			v.entries = append(v.entries, reportEntry{Time: now, Filter: f.Name(), Error: err.Error()})
			return v
		}
		v.entries = append(v.entries, reportEntry{Time: now, Filter: f.Name(), Metrics: m, Keep: keep})
		if !keep {
			v.keep = false
			return v
		}
	}
	return v
}

func (r *Runner) reject(dir, path string) error {
	rejDir := r.Plan.RejectedDir
	if !filepath.IsAbs(rejDir) {
		rejDir = filepath.Join(dir, rejDir)
	}
	if err := os.MkdirAll(rejDir, 0755); err != nil {
		return errors.Wrap(err, "create rejected dir")
	}
	dest := filepath.Join(rejDir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		return errors.Wrapf(err, "move %s", path)
	}
	klog.V(5).InfoS("Moved rejected structure", "from", path, "to", dest)
	return nil
}

// listStructures returns the .pdb files of dir in name order.
func listStructures(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read dir %s", dir)
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".pdb" {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}
