package pdb

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A two-residue fragment with correct fixed columns.
const miniPDB = `HEADER    DE NOVO PROTEIN
ATOM      1  N   MET A   1      27.340  24.430   2.614  1.00  9.67           N
ATOM      2  CA  MET A   1      26.266  25.413   2.842  1.00 10.38           C
ATOM      3  C   MET A   1      26.913  26.639   3.531  1.00  9.62           C
ATOM      4  O   MET A   1      27.886  26.463   4.263  1.00  9.62           O
ATOM      5  CB  MET A   1      25.112  24.880   3.649  1.00 13.77           C
ATOM      6  N   GLN A   2      26.335  27.770   3.258  1.00  9.27           N
ATOM      7  CA  GLN A   2      26.850  29.021   3.898  1.00  9.07           C
ATOM      8  C   GLN A   2      26.100  29.253   5.202  1.00  8.72           C
ATOM      9  O   GLN A   2      24.865  29.024   5.330  1.00  8.22           O
TER      10      GLN A   2
END
`

func TestParse(t *testing.T) {
	s, err := Parse(strings.NewReader(miniPDB))
	require.NoError(t, err)
	require.Len(t, s.Atoms, 9)

	a := s.Atoms[1]
	assert.Equal(t, 2, a.Serial)
	assert.Equal(t, "CA", a.Name)
	assert.Equal(t, "MET", a.ResName)
	assert.Equal(t, byte('A'), a.ChainID)
	assert.Equal(t, 1, a.ResSeq)
	assert.InDelta(t, 26.266, a.X, 1e-9)
	assert.InDelta(t, 25.413, a.Y, 1e-9)
	assert.InDelta(t, 2.842, a.Z, 1e-9)
	assert.InDelta(t, 1.00, a.Occupancy, 1e-9)
	assert.InDelta(t, 10.38, a.TempFactor, 1e-9)
	assert.Equal(t, "C", a.Element)
}

func TestParseFirstModelOnly(t *testing.T) {
	multi := "MODEL        1\n" + miniPDB + "MODEL        2\n" +
		"ATOM     11  N   ALA A   3       0.000   0.000   0.000  1.00  0.00           N\n" +
		"ENDMDL\n"

	s, err := Parse(strings.NewReader(multi))
	require.NoError(t, err)
	assert.Len(t, s.Atoms, 9, "atoms of later models must be ignored")
}

func TestParseNoAtoms(t *testing.T) {
	_, err := Parse(strings.NewReader("HEADER    EMPTY\nEND\n"))
	assert.Error(t, err)
}

func TestParseMissingElementColumns(t *testing.T) {
	short := "ATOM      1  CA  MET A   1      27.340  24.430   2.614\n"
	s, err := Parse(strings.NewReader(short))
	require.NoError(t, err)
	require.Len(t, s.Atoms, 1)
	assert.Equal(t, "C", s.Atoms[0].Element, "element guessed from the atom name")
}

func TestResidues(t *testing.T) {
	s, err := Parse(strings.NewReader(miniPDB))
	require.NoError(t, err)

	residues := s.Residues()
	require.Len(t, residues, 2)
	assert.Equal(t, "MET", residues[0].Name)
	assert.Len(t, residues[0].Atoms, 5)
	assert.Equal(t, "GLN", residues[1].Name)
	assert.Len(t, residues[1].Atoms, 4)
}

func TestSelect(t *testing.T) {
	s, err := Parse(strings.NewReader(miniPDB))
	require.NoError(t, err)

	tests := map[string]struct {
		expr string
		want int
	}{
		"alpha carbons":   {expr: "name CA", want: 2},
		"backbone":        {expr: "backbone", want: 8},
		"backbone C":      {expr: "backbone and name C", want: 2},
		"residue range":   {expr: "resid 2 to 2", want: 4},
		"single residue":  {expr: "resid 1", want: 5},
		"chain":           {expr: "chain A", want: 9},
		"missing chain":   {expr: "chain B", want: 0},
		"range and name":  {expr: "resid 1 to 2 and name CA", want: 2},
		"out of range":    {expr: "resid 5 to 9", want: 0},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			atoms, err := s.Select(tt.expr)
			require.NoError(t, err)
			assert.Len(t, atoms, tt.want)
		})
	}
}

func TestSelectRejectsUnknownTerms(t *testing.T) {
	s, err := Parse(strings.NewReader(miniPDB))
	require.NoError(t, err)

	for _, expr := range []string{"water", "resid x to y", "resid 5 to 1", "chain AB"} {
		_, err := s.Select(expr)
		assert.Error(t, err, "expr %q", expr)
	}
}

func TestCAlpha(t *testing.T) {
	s, err := Parse(strings.NewReader(miniPDB))
	require.NoError(t, err)

	cas := s.CAlpha()
	require.Len(t, cas, 2)
	assert.Equal(t, "MET", cas[0].ResName)
	assert.Equal(t, "GLN", cas[1].ResName)
}

func TestWriteRoundTrip(t *testing.T) {
	s, err := Parse(strings.NewReader(miniPDB))
	require.NoError(t, err)

	var b strings.Builder
	require.NoError(t, Write(&b, s))

	again, err := Parse(strings.NewReader(b.String()))
	require.NoError(t, err)
	assert.Equal(t, s.Atoms, again.Atoms)
}

func TestMass(t *testing.T) {
	assert.InDelta(t, 12.011, Atom{Element: "C"}.Mass(), 1e-9)
	assert.InDelta(t, 32.06, Atom{Element: "S"}.Mass(), 1e-9)
	// unknown elements fall back to carbon
	assert.InDelta(t, 12.011, Atom{Element: "X"}.Mass(), 1e-9)
}
