package pipeline

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/origamihpc/origami/pkg/filter"
	"github.com/origamihpc/origami/pkg/pdb"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// writeStructure lays the named residues along the x axis and writes
// them as a PDB file.
func writeStructure(t *testing.T, path string, resNames ...string) {
	t.Helper()
	s := &pdb.Structure{}
	serial := 1
	for i, name := range resNames {
		x := 3.8 * float64(i)
		s.Atoms = append(s.Atoms,
			pdb.Atom{Serial: serial, Name: "CA", ResName: name, ChainID: 'A',
				ResSeq: i + 1, X: x, Occupancy: 1, Element: "C"},
			pdb.Atom{Serial: serial + 1, Name: "C", ResName: name, ChainID: 'A',
				ResSeq: i + 1, X: x + 1.5, Occupancy: 1, Element: "C"},
		)
		serial += 2
	}
	require.NoError(t, pdb.WriteFile(path, s))
}

func TestLoadPlan(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "plan.hcl", `
workers      = 2
rejected_dir = "losers"

stage "charge" {
  filter "netcharge" {
    max = 0
  }
}

stage "geometry" {
  after = ["charge"]

  filter "rg" {
    min = 0.5
    max = 3.0
  }
  filter "sasa" {}
}
`)

	plan, err := LoadPlan(path)
	require.NoError(t, err)
	assert.Equal(t, 2, plan.Workers)
	assert.Equal(t, "losers", plan.RejectedDir)
	require.Len(t, plan.Stages, 2)
	assert.Equal(t, "charge", plan.Stages[0].Name)
	assert.Equal(t, "geometry", plan.Stages[1].Name)
	require.Len(t, plan.Stages[1].Filters, 2)
	assert.Equal(t, "rg", plan.Stages[1].Filters[0].Name())
	assert.Equal(t, "sasa", plan.Stages[1].Filters[1].Name())

	rg := plan.Stages[1].Filters[0].(*filter.Rg)
	assert.Equal(t, 0.5, rg.Min)
	assert.Equal(t, 3.0, rg.Max)
}

func TestLoadPlanDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "plan.hcl", `
stage "all" {
  filter "rg" {}
  filter "netcharge" {}
  filter "sasa" {}
}
`)
	plan, err := LoadPlan(path)
	require.NoError(t, err)
	assert.Equal(t, runtime.NumCPU(), plan.Workers)
	assert.Equal(t, "rejected", plan.RejectedDir)

	rg := plan.Stages[0].Filters[0].(*filter.Rg)
	assert.Equal(t, 1.0, rg.Min)
	assert.Equal(t, 2.0, rg.Max)
	nc := plan.Stages[0].Filters[1].(*filter.NetCharge)
	assert.Equal(t, -1.0, nc.Max)
	sasa := plan.Stages[0].Filters[2].(*filter.SASA)
	assert.Equal(t, 100.0, sasa.Min)
	assert.Equal(t, 200.0, sasa.Max)
}

func TestLoadPlanOrdersStages(t *testing.T) {
	// "refine" is declared first but depends on "coarse".
	path := writeFile(t, t.TempDir(), "plan.hcl", `
stage "refine" {
  after = ["coarse"]

  filter "netcharge" {}
}

stage "coarse" {
  filter "rg" {}
}
`)
	plan, err := LoadPlan(path)
	require.NoError(t, err)
	require.Len(t, plan.Stages, 2)
	assert.Equal(t, "coarse", plan.Stages[0].Name)
	assert.Equal(t, "refine", plan.Stages[1].Name)
}

func TestLoadPlanWithReference(t *testing.T) {
	dir := t.TempDir()
	writeStructure(t, filepath.Join(dir, "ref.pdb"), "GLY", "ALA")
	path := writeFile(t, dir, "plan.hcl", `
stage "shape" {
  filter "rmsd_global" {
    reference = "ref.pdb"
    max       = 0.3
  }
  filter "rmsd_local" {
    reference = "ref.pdb"
    selection = "resid 1 and name CA"
  }
  filter "polar" {
    reference = "ref.pdb"
  }
}
`)
	plan, err := LoadPlan(path)
	require.NoError(t, err)
	require.Len(t, plan.Stages[0].Filters, 3)

	g := plan.Stages[0].Filters[0].(*filter.GlobalRMSD)
	assert.Equal(t, 0.3, g.Max)
	require.NotNil(t, g.Reference)
	assert.Len(t, g.Reference.Atoms, 4)

	l := plan.Stages[0].Filters[1].(*filter.LocalRMSD)
	assert.Equal(t, "resid 1 and name CA", l.Selection)
	assert.Equal(t, 0.1, l.Max)

	// GLY and ALA are not hydrophobic, so the reference scores zero.
	p := plan.Stages[0].Filters[2].(*filter.Polar)
	assert.InDelta(t, 0.0, p.Max, 1e-9)
}

func TestLoadPlanEnvFunction(t *testing.T) {
	dir := t.TempDir()
	writeStructure(t, filepath.Join(dir, "ref.pdb"), "GLY")
	t.Setenv("ORIGAMI_TEST_REFERENCE", "ref.pdb")

	path := writeFile(t, dir, "plan.hcl", `
stage "shape" {
  filter "rmsd_global" {
    reference = env("ORIGAMI_TEST_REFERENCE")
  }
}
`)
	plan, err := LoadPlan(path)
	require.NoError(t, err)

	g := plan.Stages[0].Filters[0].(*filter.GlobalRMSD)
	assert.Equal(t, 0.2, g.Max)
	require.NotNil(t, g.Reference)
}

func TestLoadPlanErrors(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"no stages": ``,
		"unknown filter": `
stage "s" {
  filter "zeta" {}
}
`,
		"empty stage": `
stage "s" {
}
`,
		"duplicate stage": `
stage "s" {
  filter "rg" {}
}

stage "s" {
  filter "rg" {}
}
`,
		"unknown dependency": `
stage "s" {
  after = ["ghost"]

  filter "rg" {}
}
`,
		"cycle": `
stage "a" {
  after = ["b"]

  filter "rg" {}
}

stage "b" {
  after = ["a"]

  filter "rg" {}
}
`,
		"polar needs a threshold": `
stage "s" {
  filter "polar" {}
}
`,
		"polar rejects both": `
stage "s" {
  filter "polar" {
    max       = 0.4
    reference = "ref.pdb"
  }
}
`,
		"missing reference": `
stage "s" {
  filter "rmsd_global" {
    reference = "nope.pdb"
  }
}
`,
		"bad workers": `
workers = 0

stage "s" {
  filter "rg" {}
}
`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, dir, strings.ReplaceAll(name, " ", "_")+".hcl", content)
			_, err := LoadPlan(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadPlanMissingFile(t *testing.T) {
	_, err := LoadPlan(filepath.Join(t.TempDir(), "nope.hcl"))
	assert.Error(t, err)
}
