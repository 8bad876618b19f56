package filter

import (
	"math"

	"github.com/origamihpc/origami/pkg/pdb"
)

// Rg keeps structures whose mass-weighted radius of gyration falls
// inside [Min, Max] nanometers. Compact single-domain designs land
// around 1-2 nm; anything outside is unfolded or oversized.
type Rg struct {
	Min float64
	Max float64
}

func NewRg(min, max float64) *Rg { return &Rg{Min: min, Max: max} }

func (f *Rg) Name() string { return "rg" }

func (f *Rg) Keep(s *pdb.Structure) (bool, Metrics, error) {
	rg := RadiusOfGyration(s)
	return f.Min <= rg && rg <= f.Max, Metrics{"rg_nm": rg}, nil
}

// RadiusOfGyration returns the mass-weighted radius of gyration of
// the structure in nanometers.
func RadiusOfGyration(s *pdb.Structure) float64 {
	var mass, cx, cy, cz float64
	for _, a := range s.Atoms {
		m := a.Mass()
		mass += m
		cx += m * a.X
		cy += m * a.Y
		cz += m * a.Z
	}
	if mass == 0 {
		return 0
	}
	cx /= mass
	cy /= mass
	cz /= mass

	var sum float64
	for _, a := range s.Atoms {
		dx, dy, dz := a.X-cx, a.Y-cy, a.Z-cz
		sum += a.Mass() * (dx*dx + dy*dy + dz*dz)
	}
	return math.Sqrt(sum/mass) * nmPerAngstrom
}
