// Package pdb reads protein structures in PDB format. It understands
// just enough of the format for the post-folding filters: ATOM records
// of the first model, fixed columns per the wwPDB v3.3 specification.
package pdb

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Atom is a single ATOM record. Coordinates are in angstrom as stored
// in the file.
type Atom struct {
	Serial     int
	Name       string
	AltLoc     byte
	ResName    string
	ChainID    byte
	ResSeq     int
	ICode      byte
	X, Y, Z    float64
	Occupancy  float64
	TempFactor float64
	Element    string
}

// Residue is a group of atoms sharing a chain, sequence number and
// insertion code.
type Residue struct {
	Name    string
	ChainID byte
	Seq     int
	ICode   byte
	Atoms   []Atom
}

// Structure holds the atoms of the first model of a PDB file in file
// order.
type Structure struct {
	Atoms []Atom
}

// ReadFile parses the structure from a PDB file.
func ReadFile(path string) (*Structure, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open pdb %s", path)
	}
	defer f.Close()

	s, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parse pdb %s", path)
	}
	return s, nil
}

// Parse reads ATOM records until the first model ends. Predicted
// structures usually carry a single model; additional models are
// ignored.
func Parse(r io.Reader) (*Structure, error) {
	s := &Structure{}
	models := 0

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if len(text) < 6 {
			continue
		}
		switch strings.TrimSpace(text[:6]) {
		case "MODEL":
			models++
			if models > 1 {
				return s, nil
			}
		case "ENDMDL", "END":
			if len(s.Atoms) > 0 {
				return s, nil
			}
		case "ATOM":
			a, err := parseAtom(text)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", line)
			}
			s.Atoms = append(s.Atoms, a)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(s.Atoms) == 0 {
		return nil, errors.New("no ATOM records")
	}
	return s, nil
}

func parseAtom(line string) (Atom, error) {
	a := Atom{}
	var err error

	if a.Serial, err = strconv.Atoi(field(line, 6, 11)); err != nil {
		return a, errors.Errorf("bad atom serial %q", field(line, 6, 11))
	}
	a.Name = field(line, 12, 16)
	a.AltLoc = byteAt(line, 16)
	a.ResName = field(line, 17, 20)
	a.ChainID = byteAt(line, 21)
	if a.ResSeq, err = strconv.Atoi(field(line, 22, 26)); err != nil {
		return a, errors.Errorf("bad residue number %q", field(line, 22, 26))
	}
	a.ICode = byteAt(line, 26)
	if a.X, err = coord(line, 30, 38); err != nil {
		return a, err
	}
	if a.Y, err = coord(line, 38, 46); err != nil {
		return a, err
	}
	if a.Z, err = coord(line, 46, 54); err != nil {
		return a, err
	}
	a.Occupancy, _ = strconv.ParseFloat(field(line, 54, 60), 64)
	a.TempFactor, _ = strconv.ParseFloat(field(line, 60, 66), 64)
	a.Element = field(line, 76, 78)
	if a.Element == "" {
		a.Element = elementFromName(a.Name)
	}
	return a, nil
}

func field(line string, lo, hi int) string {
	if lo >= len(line) {
		return ""
	}
	if hi > len(line) {
		hi = len(line)
	}
	return strings.TrimSpace(line[lo:hi])
}

func byteAt(line string, i int) byte {
	if i >= len(line) {
		return ' '
	}
	return line[i]
}

func coord(line string, lo, hi int) (float64, error) {
	v, err := strconv.ParseFloat(field(line, lo, hi), 64)
	if err != nil {
		return 0, errors.Errorf("bad coordinate %q", field(line, lo, hi))
	}
	return v, nil
}

// elementFromName guesses the element from the atom name when the
// element columns are empty. The first letter rule holds for all atoms
// of the standard amino acids.
func elementFromName(name string) string {
	trimmed := strings.TrimLeft(name, "0123456789")
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "SE") {
		return "SE"
	}
	return trimmed[:1]
}

// Mass returns the standard atomic mass of the atom's element.
func (a Atom) Mass() float64 {
	switch a.Element {
	case "H":
		return 1.008
	case "C":
		return 12.011
	case "N":
		return 14.007
	case "O":
		return 15.999
	case "S":
		return 32.06
	case "P":
		return 30.974
	case "SE":
		return 78.971
	}
	return 12.011
}

// Residues groups the atoms into residues in file order.
func (s *Structure) Residues() []Residue {
	residues := make([]Residue, 0, len(s.Atoms)/8)
	for _, a := range s.Atoms {
		n := len(residues)
		if n == 0 || residues[n-1].ChainID != a.ChainID ||
			residues[n-1].Seq != a.ResSeq || residues[n-1].ICode != a.ICode {
			residues = append(residues, Residue{
				Name:    a.ResName,
				ChainID: a.ChainID,
				Seq:     a.ResSeq,
				ICode:   a.ICode,
			})
			n++
		}
		residues[n-1].Atoms = append(residues[n-1].Atoms, a.clone())
	}
	return residues
}

func (a Atom) clone() Atom {
	return a
}

// CAlpha returns the alpha carbons in file order, one per residue.
func (s *Structure) CAlpha() []Atom {
	atoms, _ := s.Select("name CA")
	return atoms
}

// Select returns the atoms matched by a selection expression. Only the
// small subset the filters use is understood: "name X", "backbone",
// "chain X", "resid N to M", and conjunctions such as
// "resid 10 to 25 and name CA". Alternate locations other than A are
// dropped so each position appears once.
func (s *Structure) Select(expr string) ([]Atom, error) {
	want := ""
	backbone := false
	chain := byte(0)
	residLo, residHi := 0, 0
	haveResid := false

	for _, term := range strings.Split(expr, " and ") {
		term = strings.TrimSpace(term)
		switch {
		case term == "":
		case term == "backbone":
			backbone = true
		case strings.HasPrefix(term, "name "):
			want = strings.TrimSpace(strings.TrimPrefix(term, "name "))
		case strings.HasPrefix(term, "chain "):
			id := strings.TrimSpace(strings.TrimPrefix(term, "chain "))
			if len(id) != 1 {
				return nil, errors.Errorf("bad chain id %q", id)
			}
			chain = id[0]
		case strings.HasPrefix(term, "resid "):
			var err error
			residLo, residHi, err = parseResidRange(strings.TrimPrefix(term, "resid "))
			if err != nil {
				return nil, err
			}
			haveResid = true
		default:
			return nil, errors.Errorf("unsupported selection %q", term)
		}
	}

	atoms := make([]Atom, 0, len(s.Atoms))
	for _, a := range s.Atoms {
		if a.AltLoc != 0 && a.AltLoc != ' ' && a.AltLoc != 'A' {
			continue
		}
		if backbone && !isBackbone(a.Name) {
			continue
		}
		if want != "" && a.Name != want {
			continue
		}
		if chain != 0 && a.ChainID != chain {
			continue
		}
		if haveResid && (a.ResSeq < residLo || a.ResSeq > residHi) {
			continue
		}
		atoms = append(atoms, a)
	}
	return atoms, nil
}

// parseResidRange reads "N to M" or a single "N". Bounds are residue
// sequence numbers as stored in the file, both inclusive.
func parseResidRange(r string) (int, int, error) {
	lo, hi, ranged := strings.Cut(strings.TrimSpace(r), " to ")
	n, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return 0, 0, errors.Errorf("bad residue range %q", r)
	}
	if !ranged {
		return n, n, nil
	}
	m, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil || m < n {
		return 0, 0, errors.Errorf("bad residue range %q", r)
	}
	return n, m, nil
}

func isBackbone(name string) bool {
	switch name {
	case "N", "CA", "C", "O":
		return true
	}
	return false
}
