package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/origamihpc/origami/pkg/pdb"
)

// caTrace builds a structure with one CA per residue at the given
// coordinates.
func caTrace(coords ...[3]float64) *pdb.Structure {
	s := &pdb.Structure{}
	for i, c := range coords {
		s.Atoms = append(s.Atoms, atom("CA", "GLY", i+1, c[0], c[1], c[2]))
	}
	return s
}

func TestSuperposedRMSDIdentical(t *testing.T) {
	s := caTrace([3]float64{0, 0, 0}, [3]float64{1, 0, 0}, [3]float64{0, 2, 0}, [3]float64{0, 0, 3})
	rmsd, err := SuperposedRMSD(s, s, "name CA")
	require.NoError(t, err)
	assert.InDelta(t, 0, rmsd, 1e-6)
}

func TestSuperposedRMSDRigidMotion(t *testing.T) {
	s := caTrace([3]float64{0, 0, 0}, [3]float64{1, 0, 0}, [3]float64{0, 2, 0}, [3]float64{0, 0, 3})

	// Rotate 90° about z and translate. Superposition must undo both.
	moved := &pdb.Structure{}
	for _, a := range s.Atoms {
		b := a
		b.X, b.Y = -a.Y+5, a.X-3
		b.Z = a.Z + 2
		moved.Atoms = append(moved.Atoms, b)
	}

	rmsd, err := SuperposedRMSD(moved, s, "name CA")
	require.NoError(t, err)
	assert.InDelta(t, 0, rmsd, 1e-6)
}

func TestSuperposedRMSDTwoAtoms(t *testing.T) {
	// Pairs 2 Å and 4 Å long differ by 1 Å per atom after optimal
	// superposition.
	s := caTrace([3]float64{0, 0, 0}, [3]float64{2, 0, 0})
	ref := caTrace([3]float64{0, 0, 0}, [3]float64{4, 0, 0})

	rmsd, err := SuperposedRMSD(s, ref, "name CA")
	require.NoError(t, err)
	assert.InDelta(t, 0.1, rmsd, 1e-6)
}

func TestSuperposedRMSDMirror(t *testing.T) {
	s := caTrace([3]float64{0, 0, 0}, [3]float64{1, 0, 0}, [3]float64{0, 2, 0}, [3]float64{0, 0, 3})

	mirror := &pdb.Structure{}
	for _, a := range s.Atoms {
		b := a
		b.X = -a.X
		mirror.Atoms = append(mirror.Atoms, b)
	}

	// A chiral set cannot be superposed onto its mirror image with a
	// proper rotation.
	rmsd, err := SuperposedRMSD(mirror, s, "name CA")
	require.NoError(t, err)
	assert.Greater(t, rmsd, 0.01)
}

func TestSuperposedRMSDCountMismatch(t *testing.T) {
	s := caTrace([3]float64{0, 0, 0}, [3]float64{1, 0, 0}, [3]float64{0, 2, 0})
	ref := caTrace([3]float64{0, 0, 0}, [3]float64{1, 0, 0})

	_, err := SuperposedRMSD(s, ref, "name CA")
	assert.Error(t, err)
}

func TestSuperposedRMSDEmptySelection(t *testing.T) {
	s := caTrace([3]float64{0, 0, 0})
	_, err := SuperposedRMSD(s, s, "name CB")
	assert.Error(t, err)
}

func TestGlobalRMSDKeep(t *testing.T) {
	ref := caTrace([3]float64{0, 0, 0}, [3]float64{3.8, 0, 0}, [3]float64{7.6, 0, 0})

	f := NewGlobalRMSD(ref, 0.2)
	assert.Equal(t, "rmsd_global", f.Name())

	keep, metrics, err := f.Keep(ref)
	require.NoError(t, err)
	assert.True(t, keep)
	assert.InDelta(t, 0, metrics["rmsd_nm"], 1e-6)

	// Swinging the last CA out by 10 Å changes the shape too much for
	// any superposition to hide.
	bent := caTrace([3]float64{0, 0, 0}, [3]float64{3.8, 0, 0}, [3]float64{7.6, 10, 0})
	keep, metrics, err = f.Keep(bent)
	require.NoError(t, err)
	assert.False(t, keep)
	assert.Greater(t, metrics["rmsd_nm"], 0.2)
}

func TestLocalRMSDKeep(t *testing.T) {
	ref := caTrace(
		[3]float64{0, 0, 0}, [3]float64{3.8, 0, 0},
		[3]float64{7.6, 0, 0}, [3]float64{11.4, 0, 0},
	)
	// The tail moves but residues 1-2 stay put.
	moved := caTrace(
		[3]float64{0, 0, 0}, [3]float64{3.8, 0, 0},
		[3]float64{7.6, 8, 0}, [3]float64{11.4, 8, 0},
	)

	f := NewLocalRMSD(ref, "resid 1 to 2 and name CA", 0.1)
	assert.Equal(t, "rmsd_local", f.Name())

	keep, metrics, err := f.Keep(moved)
	require.NoError(t, err)
	assert.True(t, keep, "the selected region is unchanged")
	assert.InDelta(t, 0, metrics["rmsd_nm"], 1e-6)

	whole := NewLocalRMSD(ref, "name CA", 0.1)
	keep, _, err = whole.Keep(moved)
	require.NoError(t, err)
	assert.False(t, keep)
}
