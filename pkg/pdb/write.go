package pdb

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Write emits the structure as ATOM records in fixed columns, one TER
// per chain and a final END. Everything the parser does not keep
// (headers, remarks, extra models) is gone; the output is meant for
// downstream tools that only read coordinates.
func Write(w io.Writer, s *Structure) error {
	bw := bufio.NewWriter(w)
	for i, a := range s.Atoms {
		_, err := fmt.Fprintf(bw, "ATOM  %5d %-4s%c%3s %c%4d%c   %8.3f%8.3f%8.3f%6.2f%6.2f          %2s\n",
			a.Serial, atomNameField(a.Name), altLocField(a.AltLoc), a.ResName,
			chainField(a.ChainID), a.ResSeq, altLocField(a.ICode),
			a.X, a.Y, a.Z, a.Occupancy, a.TempFactor, a.Element)
		if err != nil {
			return err
		}
		if i+1 == len(s.Atoms) || s.Atoms[i+1].ChainID != a.ChainID {
			if _, err := fmt.Fprintf(bw, "TER   %5d      %3s %c%4d\n",
				a.Serial+1, a.ResName, chainField(a.ChainID), a.ResSeq); err != nil {
				return err
			}
		}
	}
	if _, err := fmt.Fprintln(bw, "END"); err != nil {
		return err
	}
	return bw.Flush()
}

// WriteFile writes the structure to path, replacing an existing file.
func WriteFile(path string, s *Structure) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create pdb %s", path)
	}
	if err := Write(f, s); err != nil {
		f.Close()
		return errors.Wrapf(err, "write pdb %s", path)
	}
	return f.Close()
}

// atomNameField follows the wwPDB alignment rule: names shorter than
// four characters start one column in.
func atomNameField(name string) string {
	if len(name) >= 4 {
		return name
	}
	return " " + name
}

func altLocField(b byte) byte {
	if b == 0 {
		return ' '
	}
	return b
}

func chainField(b byte) byte {
	if b == 0 || b == ' ' {
		return 'A'
	}
	return b
}
