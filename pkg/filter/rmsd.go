package filter

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/origamihpc/origami/pkg/pdb"
)

// GlobalRMSD keeps structures that stay within Max nanometers of a
// reference after optimal superposition of the α-carbons.
type GlobalRMSD struct {
	Reference *pdb.Structure
	Max       float64
}

func NewGlobalRMSD(ref *pdb.Structure, max float64) *GlobalRMSD {
	return &GlobalRMSD{Reference: ref, Max: max}
}

func (f *GlobalRMSD) Name() string { return "rmsd_global" }

func (f *GlobalRMSD) Keep(s *pdb.Structure) (bool, Metrics, error) {
	rmsd, err := SuperposedRMSD(s, f.Reference, "name CA")
	if err != nil {
		return false, nil, err
	}
	return rmsd <= f.Max, Metrics{"rmsd_nm": rmsd}, nil
}

// LocalRMSD is GlobalRMSD restricted to a selection, typically a
// binding site or an interface region.
type LocalRMSD struct {
	Reference *pdb.Structure
	Selection string
	Max       float64
}

func NewLocalRMSD(ref *pdb.Structure, selection string, max float64) *LocalRMSD {
	return &LocalRMSD{Reference: ref, Selection: selection, Max: max}
}

func (f *LocalRMSD) Name() string { return "rmsd_local" }

func (f *LocalRMSD) Keep(s *pdb.Structure) (bool, Metrics, error) {
	rmsd, err := SuperposedRMSD(s, f.Reference, f.Selection)
	if err != nil {
		return false, nil, err
	}
	return rmsd <= f.Max, Metrics{"rmsd_nm": rmsd}, nil
}

// SuperposedRMSD superposes the selected atoms of s onto the same
// selection of ref with the Kabsch algorithm and returns the root
// mean square deviation in nanometers. The selection must yield the
// same number of atoms in both structures.
func SuperposedRMSD(s, ref *pdb.Structure, selection string) (float64, error) {
	sel, err := s.Select(selection)
	if err != nil {
		return 0, err
	}
	refSel, err := ref.Select(selection)
	if err != nil {
		return 0, err
	}
	if len(sel) == 0 {
		return 0, errors.Errorf("selection %q matches no atoms", selection)
	}
	if len(sel) != len(refSel) {
		return 0, errors.Errorf("selection %q: %d atoms vs %d in reference",
			selection, len(sel), len(refSel))
	}

	p := centered(sel)
	q := centered(refSel)
	rotated := kabschRotate(p, q)

	n, _ := rotated.Dims()
	var sum float64
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			d := rotated.At(i, j) - q.At(i, j)
			sum += d * d
		}
	}
	return math.Sqrt(sum/float64(n)) * nmPerAngstrom, nil
}

// centered returns the n×3 coordinate matrix with the centroid moved
// to the origin.
func centered(atoms []pdb.Atom) *mat.Dense {
	n := len(atoms)
	var cx, cy, cz float64
	for _, a := range atoms {
		cx += a.X
		cy += a.Y
		cz += a.Z
	}
	cx /= float64(n)
	cy /= float64(n)
	cz /= float64(n)

	m := mat.NewDense(n, 3, nil)
	for i, a := range atoms {
		m.Set(i, 0, a.X-cx)
		m.Set(i, 1, a.Y-cy)
		m.Set(i, 2, a.Z-cz)
	}
	return m
}

// kabschRotate rotates the centered coordinates p onto q using the
// SVD of the covariance matrix. The sign of det(V·Uᵀ) guards against
// an improper rotation flipping the structure through a mirror.
func kabschRotate(p, q *mat.Dense) *mat.Dense {
	var h mat.Dense
	h.Mul(p.T(), q)

	var svd mat.SVD
	if ok := svd.Factorize(&h, mat.SVDThin); !ok {
		// Degenerate coordinates. Leave p unrotated and let the
		// resulting RMSD speak for itself.
		return p
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var vut mat.Dense
	vut.Mul(&v, u.T())
	d := mat.Det(&vut)

	sign := mat.NewDiagDense(3, []float64{1, 1, math.Copysign(1, d)})
	var vd, rot mat.Dense
	vd.Mul(&v, sign)
	rot.Mul(&vd, u.T())

	var out mat.Dense
	out.Mul(p, rot.T())
	return &out
}
