package filter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/origamihpc/origami/pkg/pdb"
)

// atom builds a bare atom for synthetic structures.
func atom(name, resName string, seq int, x, y, z float64) pdb.Atom {
	return pdb.Atom{
		Name:    name,
		ResName: resName,
		ChainID: 'A',
		ResSeq:  seq,
		X:       x,
		Y:       y,
		Z:       z,
		Element: name[:1],
	}
}

// backboneChain lays the named residues along the x axis, 3.8 Å
// apart, each with a CA and a carbonyl C.
func backboneChain(resNames ...string) *pdb.Structure {
	s := &pdb.Structure{}
	for i, name := range resNames {
		x := 3.8 * float64(i)
		s.Atoms = append(s.Atoms,
			atom("CA", name, i+1, x, 0, 0),
			atom("C", name, i+1, x+1.5, 0, 0),
		)
	}
	return s
}

func TestRadiusOfGyration(t *testing.T) {
	// Two equal masses 2 Å apart sit 1 Å from the center each.
	s := &pdb.Structure{Atoms: []pdb.Atom{
		atom("C1", "GLY", 1, 0, 0, 0),
		atom("C2", "GLY", 1, 2, 0, 0),
	}}
	assert.InDelta(t, 0.1, RadiusOfGyration(s), 1e-9)
}

func TestRadiusOfGyrationMassWeighted(t *testing.T) {
	// Unequal masses: rg = d·sqrt(m1·m2)/(m1+m2).
	s := &pdb.Structure{Atoms: []pdb.Atom{
		atom("C1", "GLY", 1, 0, 0, 0),
		atom("O1", "GLY", 1, 2, 0, 0),
	}}
	mC, mO := 12.011, 15.999
	want := 2 * math.Sqrt(mC*mO) / (mC + mO) * 0.1
	assert.InDelta(t, want, RadiusOfGyration(s), 1e-9)
}

func TestRadiusOfGyrationEmpty(t *testing.T) {
	assert.Zero(t, RadiusOfGyration(&pdb.Structure{}))
}

func TestRgKeep(t *testing.T) {
	small := &pdb.Structure{Atoms: []pdb.Atom{
		atom("C1", "GLY", 1, 0, 0, 0),
		atom("C2", "GLY", 1, 2, 0, 0),
	}}

	f := NewRg(1.0, 2.0)
	assert.Equal(t, "rg", f.Name())

	keep, metrics, err := f.Keep(small)
	require.NoError(t, err)
	assert.False(t, keep, "0.1 nm is far below the window")
	assert.InDelta(t, 0.1, metrics["rg_nm"], 1e-9)

	keep, _, err = NewRg(0.05, 0.5).Keep(small)
	require.NoError(t, err)
	assert.True(t, keep)
}

func TestCharge(t *testing.T) {
	tests := map[string]struct {
		resNames []string
		want     int
	}{
		"neutral":       {resNames: []string{"ARG", "LYS", "ASP", "GLU", "GLY"}, want: 0},
		"negative":      {resNames: []string{"ASP", "ASP", "LYS"}, want: -1},
		"positive":      {resNames: []string{"ARG", "ARG", "GLU"}, want: 1},
		"histidine":     {resNames: []string{"HIS", "HIS"}, want: 0},
		"uncharged":     {resNames: []string{"GLY", "ALA", "SER"}, want: 0},
		"all negatives": {resNames: []string{"GLU", "ASP", "GLU"}, want: -3},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, Charge(backboneChain(tt.resNames...)))
		})
	}
}

func TestNetChargeKeep(t *testing.T) {
	f := NewNetCharge(-1)
	assert.Equal(t, "netcharge", f.Name())

	keep, metrics, err := f.Keep(backboneChain("ASP", "ASP", "LYS"))
	require.NoError(t, err)
	assert.True(t, keep)
	assert.InDelta(t, -1, metrics["net_charge"], 1e-9)

	keep, _, err = f.Keep(backboneChain("ARG", "GLU"))
	require.NoError(t, err)
	assert.False(t, keep, "net charge 0 is above the -1 threshold")
}
