package fasta

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Record represents a single FASTA sequence. Description is the full
// header line without the leading '>'; ID is its first whitespace token.
type Record struct {
	ID          string
	Description string
	Seq         []byte
}

// multiReadCloser closes multiple io.Closers when Close() is called.
type multiReadCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiReadCloser) Close() error {
	var err error
	for _, c := range m.closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Open opens a FASTA file for reading. "-" means stdin. Gzip input is
// detected by magic number (1F 8B) or by .gz suffix.
func Open(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	var sig [2]byte
	n, _ := fh.Read(sig[:])
	_, _ = fh.Seek(0, io.SeekStart)
	if (n == 2 && sig[0] == 0x1f && sig[1] == 0x8b) || strings.HasSuffix(path, ".gz") {
		gr, err := gzip.NewReader(fh)
		if err != nil {
			_ = fh.Close()
			return nil, err
		}
		return &multiReadCloser{Reader: gr, closers: []io.Closer{gr, fh}}, nil
	}
	return fh, nil
}

// Stream parses FASTA from r and calls emit for every record. It returns
// promptly when ctx is done, even mid-record.
func Stream(ctx context.Context, r io.Reader, emit func(Record) error) error {
	sc := bufio.NewScanner(r)
	const maxLine = 64 * 1024 * 1024 // allow very long single-line sequences (64 MiB)
	buf := make([]byte, 64*1024)
	sc.Buffer(buf, maxLine)

	var (
		desc string
		seq  = make([]byte, 0, 1<<20)
		open bool
	)

	flush := func() error {
		if !open {
			return nil
		}
		rec := Record{
			ID:          headerID(desc),
			Description: desc,
			Seq:         append([]byte(nil), seq...),
		}
		return emit(rec)
	}

	for sc.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			if err := flush(); err != nil {
				return err
			}
			desc = string(bytes.TrimSpace(line[1:]))
			seq = seq[:0]
			open = true
			continue
		}
		seq = append(seq, bytes.TrimSpace(line)...)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("fasta scan: %w", err)
	}
	return flush()
}

func headerID(desc string) string {
	if i := strings.IndexAny(desc, " \t"); i >= 0 {
		return desc[:i]
	}
	return desc
}

// ReadFile reads all records of a FASTA file into memory.
func ReadFile(path string) ([]Record, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open fasta %s", path)
	}
	defer rc.Close()

	records := make([]Record, 0, 8)
	err = Stream(context.Background(), rc, func(rec Record) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "read fasta %s", path)
	}
	return records, nil
}

// TotalResidues sums the sequence lengths over all records in the file.
// The dispatcher uses it to rank jobs by input size.
func TotalResidues(path string) (int, error) {
	rc, err := Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "open fasta %s", path)
	}
	defer rc.Close()

	total := 0
	err = Stream(context.Background(), rc, func(rec Record) error {
		total += len(rec.Seq)
		return nil
	})
	if err != nil {
		return 0, errors.Wrapf(err, "read fasta %s", path)
	}
	return total, nil
}

// Write writes records to w, wrapping sequence lines at the given width.
// width <= 0 writes each sequence on a single line.
func Write(w io.Writer, records []Record, width int) error {
	bw := bufio.NewWriter(w)
	for _, rec := range records {
		if _, err := fmt.Fprintf(bw, ">%s\n", rec.Description); err != nil {
			return err
		}
		seq := rec.Seq
		if width <= 0 {
			if _, err := bw.Write(append(seq, '\n')); err != nil {
				return err
			}
			continue
		}
		for off := 0; off < len(seq); off += width {
			end := off + width
			if end > len(seq) {
				end = len(seq)
			}
			if _, err := bw.Write(seq[off:end]); err != nil {
				return err
			}
			if err := bw.WriteByte('\n'); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}
