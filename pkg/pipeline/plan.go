// Package pipeline runs filter plans over directories of folded
// structures. A plan is an HCL file declaring stages of filters with
// dependencies between stages; the runner walks the stages in
// topological order and fans evaluation out across worker goroutines.
package pipeline

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/dominikbraun/graph"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/pkg/errors"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/origamihpc/origami/pkg/filter"
	"github.com/origamihpc/origami/pkg/pdb"
)

// Plan is a loaded filter plan. Stages are stored in execution order.
type Plan struct {
	Path        string
	Workers     int
	RejectedDir string
	Stages      []Stage
}

// Stage is a named group of filters evaluated together. A structure
// must pass every filter of the stage to reach the next one.
type Stage struct {
	Name    string
	After   []string
	Filters []filter.Filter
}

// Default thresholds, tuned for compact single-domain designs.
const (
	defaultRgMin         = 1.0
	defaultRgMax         = 2.0
	defaultNetChargeMax  = -1.0
	defaultSASAMin       = 100.0
	defaultSASAMax       = 200.0
	defaultGlobalRMSDMax = 0.2
	defaultLocalRMSDMax  = 0.1
	defaultRMSDSelection = "name CA"
)

type planFile struct {
	Workers     *int         `hcl:"workers,optional"`
	RejectedDir *string      `hcl:"rejected_dir,optional"`
	Stages      []stageBlock `hcl:"stage,block"`
}

type stageBlock struct {
	Name    string        `hcl:"name,label"`
	After   []string      `hcl:"after,optional"`
	Filters []filterBlock `hcl:"filter,block"`
}

type filterBlock struct {
	Kind string   `hcl:"kind,label"`
	Body hcl.Body `hcl:",remain"`
}

type rangeConfig struct {
	Min *float64 `hcl:"min,optional"`
	Max *float64 `hcl:"max,optional"`
}

type chargeConfig struct {
	Max *float64 `hcl:"max,optional"`
}

type globalRMSDConfig struct {
	Reference string   `hcl:"reference"`
	Max       *float64 `hcl:"max,optional"`
}

type localRMSDConfig struct {
	Reference string   `hcl:"reference"`
	Selection *string  `hcl:"selection,optional"`
	Max       *float64 `hcl:"max,optional"`
}

type polarConfig struct {
	Max       *float64 `hcl:"max,optional"`
	Reference *string  `hcl:"reference,optional"`
}

// LoadPlan reads an HCL filter plan. Filters are constructed up
// front, so a missing reference structure or a bad threshold fails
// here instead of halfway through a run.
func LoadPlan(path string) (*Plan, error) {
	file, diags := hclparse.NewParser().ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, errors.Wrapf(diags, "parse plan %s", path)
	}

	evalCtx := planEvalContext()
	var pf planFile
	if diags := gohcl.DecodeBody(file.Body, evalCtx, &pf); diags.HasErrors() {
		return nil, errors.Wrapf(diags, "decode plan %s", path)
	}
	if len(pf.Stages) == 0 {
		return nil, errors.Errorf("plan %s declares no stages", path)
	}

	plan := &Plan{
		Path:        path,
		Workers:     runtime.NumCPU(),
		RejectedDir: "rejected",
	}
	if pf.Workers != nil {
		if *pf.Workers < 1 {
			return nil, errors.Errorf("plan %s: workers must be positive", path)
		}
		plan.Workers = *pf.Workers
	}
	if pf.RejectedDir != nil {
		plan.RejectedDir = *pf.RejectedDir
	}

	planDir := filepath.Dir(path)
	seen := make(map[string]bool, len(pf.Stages))
	for _, sb := range pf.Stages {
		if seen[sb.Name] {
			return nil, errors.Errorf("duplicate stage %q", sb.Name)
		}
		seen[sb.Name] = true
		if len(sb.Filters) == 0 {
			return nil, errors.Errorf("stage %q has no filters", sb.Name)
		}

		stage := Stage{Name: sb.Name, After: sb.After}
		for _, fb := range sb.Filters {
			f, err := buildFilter(fb, evalCtx, planDir)
			if err != nil {
				return nil, errors.Wrapf(err, "stage %q", sb.Name)
			}
			stage.Filters = append(stage.Filters, f)
		}
		plan.Stages = append(plan.Stages, stage)
	}

	ordered, err := orderStages(plan.Stages)
	if err != nil {
		return nil, errors.Wrapf(err, "plan %s", path)
	}
	plan.Stages = ordered
	return plan, nil
}

// planEvalContext exposes env("NAME") to plan expressions, so paths
// and thresholds can come from the environment.
func planEvalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Functions: map[string]function.Function{
			"env": function.New(&function.Spec{
				Params: []function.Parameter{
					{Name: "name", Type: cty.String},
				},
				Type: function.StaticReturnType(cty.String),
				Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
					return cty.StringVal(os.Getenv(args[0].AsString())), nil
				},
			}),
		},
	}
}

func buildFilter(fb filterBlock, evalCtx *hcl.EvalContext, planDir string) (filter.Filter, error) {
	switch fb.Kind {
	case "rg":
		var cfg rangeConfig
		if diags := gohcl.DecodeBody(fb.Body, evalCtx, &cfg); diags.HasErrors() {
			return nil, errors.Wrap(diags, "filter rg")
		}
		return filter.NewRg(floatOr(cfg.Min, defaultRgMin), floatOr(cfg.Max, defaultRgMax)), nil

	case "netcharge":
		var cfg chargeConfig
		if diags := gohcl.DecodeBody(fb.Body, evalCtx, &cfg); diags.HasErrors() {
			return nil, errors.Wrap(diags, "filter netcharge")
		}
		return filter.NewNetCharge(floatOr(cfg.Max, defaultNetChargeMax)), nil

	case "sasa":
		var cfg rangeConfig
		if diags := gohcl.DecodeBody(fb.Body, evalCtx, &cfg); diags.HasErrors() {
			return nil, errors.Wrap(diags, "filter sasa")
		}
		return filter.NewSASA(floatOr(cfg.Min, defaultSASAMin), floatOr(cfg.Max, defaultSASAMax)), nil

	case "rmsd_global":
		var cfg globalRMSDConfig
		if diags := gohcl.DecodeBody(fb.Body, evalCtx, &cfg); diags.HasErrors() {
			return nil, errors.Wrap(diags, "filter rmsd_global")
		}
		ref, err := loadReference(planDir, cfg.Reference)
		if err != nil {
			return nil, errors.Wrap(err, "filter rmsd_global")
		}
		return filter.NewGlobalRMSD(ref, floatOr(cfg.Max, defaultGlobalRMSDMax)), nil

	case "rmsd_local":
		var cfg localRMSDConfig
		if diags := gohcl.DecodeBody(fb.Body, evalCtx, &cfg); diags.HasErrors() {
			return nil, errors.Wrap(diags, "filter rmsd_local")
		}
		ref, err := loadReference(planDir, cfg.Reference)
		if err != nil {
			return nil, errors.Wrap(err, "filter rmsd_local")
		}
		selection := defaultRMSDSelection
		if cfg.Selection != nil {
			selection = *cfg.Selection
		}
		return filter.NewLocalRMSD(ref, selection, floatOr(cfg.Max, defaultLocalRMSDMax)), nil

	case "polar":
		var cfg polarConfig
		if diags := gohcl.DecodeBody(fb.Body, evalCtx, &cfg); diags.HasErrors() {
			return nil, errors.Wrap(diags, "filter polar")
		}
		switch {
		case cfg.Max != nil && cfg.Reference != nil:
			return nil, errors.New("filter polar: set max or reference, not both")
		case cfg.Max != nil:
			return filter.NewPolar(*cfg.Max), nil
		case cfg.Reference != nil:
			ref, err := loadReference(planDir, *cfg.Reference)
			if err != nil {
				return nil, errors.Wrap(err, "filter polar")
			}
			threshold, err := filter.PolarScore(ref)
			if err != nil {
				return nil, errors.Wrap(err, "filter polar: score reference")
			}
			return filter.NewPolar(threshold), nil
		default:
			return nil, errors.New("filter polar: needs max or reference")
		}

	default:
		return nil, errors.Errorf("unknown filter kind %q", fb.Kind)
	}
}

// loadReference reads a reference structure, resolving relative paths
// against the plan file's directory.
func loadReference(planDir, path string) (*pdb.Structure, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(planDir, path)
	}
	return pdb.ReadFile(path)
}

// orderStages sorts the stages topologically by their after edges.
// Ties keep the declaration order of the plan file.
func orderStages(stages []Stage) ([]Stage, error) {
	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())
	pos := make(map[string]int, len(stages))
	byName := make(map[string]Stage, len(stages))
	for i, st := range stages {
		pos[st.Name] = i
		byName[st.Name] = st
		if err := g.AddVertex(st.Name); err != nil {
			return nil, errors.Wrapf(err, "stage %q", st.Name)
		}
	}
	for _, st := range stages {
		for _, dep := range st.After {
			if _, ok := byName[dep]; !ok {
				return nil, errors.Errorf("stage %q: unknown dependency %q", st.Name, dep)
			}
			if err := g.AddEdge(dep, st.Name); err != nil {
				return nil, errors.Wrapf(err, "stage %q after %q", st.Name, dep)
			}
		}
	}

	names, err := graph.StableTopologicalSort(g, func(a, b string) bool {
		return pos[a] < pos[b]
	})
	if err != nil {
		return nil, errors.Wrap(err, "order stages")
	}
	ordered := make([]Stage, len(names))
	for i, name := range names {
		ordered[i] = byName[name]
	}
	return ordered, nil
}

func floatOr(v *float64, fallback float64) float64 {
	if v != nil {
		return *v
	}
	return fallback
}
