package fasta

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// RenameDesigns rewrites the headers of a sequence-design output file
// (ProteinMPNN style) so downstream tools get stable sequence names.
//
// The first record is the design template; it defines the default prefix
// (its name up to the first comma) and is dropped from the output. Every
// following record has the first header field replaced by prefix plus the
// record's sample number, e.g.
//
//	>T=0.1, sample=3, score=1.59, ...  ->  >4gyt3, sample=3, score=1.59, ...
//
// An empty prefix means "use the template name". outPath may equal inPath.
func RenameDesigns(inPath, outPath, prefix string) error {
	records, err := ReadFile(inPath)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return errors.Errorf("no records in %s", inPath)
	}

	template := records[0]
	if prefix == "" {
		prefix = templateName(template.Description)
	}

	renamed := make([]Record, 0, len(records)-1)
	for i, rec := range records[1:] {
		fields := strings.Split(rec.Description, ",")
		fields[0] = prefix + sampleNumber(fields, i+1)
		desc := strings.Join(fields, ",")
		renamed = append(renamed, Record{
			ID:          headerID(desc),
			Description: desc,
			Seq:         rec.Seq,
		})
	}

	tmp := outPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrapf(err, "create %s", tmp)
	}
	if err := Write(f, renamed, 0); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrapf(err, "write %s", tmp)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, outPath)
}

// templateName extracts the protein name from the template header: the
// first comma-separated field.
func templateName(desc string) string {
	if i := strings.Index(desc, ","); i >= 0 {
		return desc[:i]
	}
	return desc
}

// sampleNumber returns the value of the "sample=" header field, falling
// back to the record's 1-based position when the field is absent.
func sampleNumber(fields []string, idx int) string {
	for _, f := range fields[1:] {
		f = strings.TrimSpace(f)
		if strings.HasPrefix(f, "sample=") {
			return f[len("sample="):]
		}
	}
	return strconv.Itoa(idx)
}
