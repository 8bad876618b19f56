// Package filter scores folded structures and decides which survive.
//
// Each filter computes one property of a structure and judges it
// against a threshold. Conventions follow common design-screening
// practice: lengths in nanometers, areas in nm², thresholds inclusive.
package filter

import "github.com/origamihpc/origami/pkg/pdb"

// Metrics carries the values a filter computed while deciding, keyed
// by metric name. They end up in the pipeline report.
type Metrics map[string]float64

// Filter judges a single structure.
type Filter interface {
	// Name identifies the filter in logs and reports.
	Name() string
	// Keep reports whether the structure survives, along with the
	// metrics behind the decision. An error means the structure could
	// not be judged at all.
	Keep(s *pdb.Structure) (bool, Metrics, error)
}

// PDB files carry ångströms; every metric here is in nanometers.
const nmPerAngstrom = 0.1
