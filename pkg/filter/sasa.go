package filter

import (
	"math"

	"github.com/origamihpc/origami/pkg/pdb"
)

// SASA keeps structures whose total solvent accessible surface area
// falls inside [Min, Max] nm².
type SASA struct {
	Min float64
	Max float64
}

func NewSASA(min, max float64) *SASA { return &SASA{Min: min, Max: max} }

func (f *SASA) Name() string { return "sasa" }

func (f *SASA) Keep(s *pdb.Structure) (bool, Metrics, error) {
	area := TotalSASA(s)
	return f.Min <= area && area <= f.Max, Metrics{"sasa_nm2": area}, nil
}

const (
	// Water probe radius in nm.
	probeRadius = 0.14
	// Test points per atom. More points, smoother area, slower run.
	spherePoints = 960
)

// TotalSASA computes the Shrake-Rupley solvent accessible surface
// area of the structure in nm². Each atom is wrapped in a sphere of
// test points at its van der Waals radius plus the probe radius;
// points falling inside a neighboring sphere are buried, the rest
// count toward the atom's exposed area.
func TotalSASA(s *pdb.Structure) float64 {
	n := len(s.Atoms)
	if n == 0 {
		return 0
	}

	xs := make([]float64, n)
	ys := make([]float64, n)
	zs := make([]float64, n)
	radii := make([]float64, n)
	for i, a := range s.Atoms {
		xs[i] = a.X * nmPerAngstrom
		ys[i] = a.Y * nmPerAngstrom
		zs[i] = a.Z * nmPerAngstrom
		radii[i] = vdwRadius(a.Element) + probeRadius
	}

	sphere := unitSphere(spherePoints)

	var total float64
	neighbors := make([]int, 0, 64)
	for i := 0; i < n; i++ {
		neighbors = neighbors[:0]
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			cutoff := radii[i] + radii[j]
			if dist2(xs[i]-xs[j], ys[i]-ys[j], zs[i]-zs[j]) < cutoff*cutoff {
				neighbors = append(neighbors, j)
			}
		}

		accessible := 0
		for _, p := range sphere {
			px := xs[i] + radii[i]*p[0]
			py := ys[i] + radii[i]*p[1]
			pz := zs[i] + radii[i]*p[2]
			buried := false
			for _, j := range neighbors {
				if dist2(px-xs[j], py-ys[j], pz-zs[j]) < radii[j]*radii[j] {
					buried = true
					break
				}
			}
			if !buried {
				accessible++
			}
		}
		total += 4 * math.Pi * radii[i] * radii[i] * float64(accessible) / float64(len(sphere))
	}
	return total
}

// unitSphere spreads n points evenly over the unit sphere with the
// golden section spiral.
func unitSphere(n int) [][3]float64 {
	points := make([][3]float64, n)
	inc := math.Pi * (3 - math.Sqrt(5))
	offset := 2.0 / float64(n)
	for i := range points {
		y := float64(i)*offset - 1 + offset/2
		r := math.Sqrt(1 - y*y)
		phi := float64(i) * inc
		points[i] = [3]float64{math.Cos(phi) * r, y, math.Sin(phi) * r}
	}
	return points
}

func dist2(dx, dy, dz float64) float64 { return dx*dx + dy*dy + dz*dz }

// vdwRadius returns the van der Waals radius of an element in nm,
// the Bondi values commonly tabulated for surface area work. Unknown
// elements count as carbon.
func vdwRadius(element string) float64 {
	switch element {
	case "H":
		return 0.120
	case "C":
		return 0.170
	case "N":
		return 0.155
	case "O":
		return 0.152
	case "S":
		return 0.180
	case "P":
		return 0.180
	case "SE":
		return 0.190
	}
	return 0.170
}
