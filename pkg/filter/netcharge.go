package filter

import "github.com/origamihpc/origami/pkg/pdb"

// NetCharge keeps structures whose net charge at neutral pH is at
// most Max. Designs meant for expression usually want a slightly
// negative net charge.
type NetCharge struct {
	Max float64
}

func NewNetCharge(max float64) *NetCharge { return &NetCharge{Max: max} }

func (f *NetCharge) Name() string { return "netcharge" }

func (f *NetCharge) Keep(s *pdb.Structure) (bool, Metrics, error) {
	charge := Charge(s)
	return float64(charge) <= f.Max, Metrics{"net_charge": float64(charge)}, nil
}

// Charge counts charged residues, positive ARG and LYS against
// negative ASP and GLU. Histidine stays neutral.
func Charge(s *pdb.Structure) int {
	charge := 0
	for _, r := range s.Residues() {
		switch r.Name {
		case "ARG", "LYS":
			charge++
		case "ASP", "GLU":
			charge--
		}
	}
	return charge
}
