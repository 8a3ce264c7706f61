package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Column names every split file must carry.
const (
	ColSrcJavadoc = "src_javadoc"
	ColDstMethod  = "dst_method"
	ColDstJavadoc = "dst_javadoc"
)

// SplitName identifies one of the three dataset splits.
type SplitName string

const (
	Train SplitName = "train"
	Valid SplitName = "valid"
	Test  SplitName = "test"
)

// Record is one dataset row. The three text fields are immutable after load;
// Prompt is derived later and set exactly once per split.
type Record struct {
	SrcJavadoc string
	DstMethod  string
	DstJavadoc string
	Prompt     string
}

// Split is a named, ordered sequence of records.
type Split struct {
	Name    SplitName
	Records []Record

	prompted bool
}

// Dataset holds the three named splits.
type Dataset struct {
	Train *Split
	Valid *Split
	Test  *Split
}

// Files maps each split to its CSV filename inside the data directory.
// The default configuration points all three at the same file.
type Files struct {
	Train string
	Valid string
	Test  string
}

// Splits returns the three splits in pipeline order.
func (d *Dataset) Splits() []*Split {
	return []*Split{d.Train, d.Valid, d.Test}
}

// AttachPrompts renders one prompt per record and stores it on the record.
// The prompt column is append-only: attaching twice is an error.
func (s *Split) AttachPrompts(render func(Record) string) error {
	if s.prompted {
		return fmt.Errorf("split %s: prompt column already attached", s.Name)
	}
	for i := range s.Records {
		s.Records[i].Prompt = render(s.Records[i])
	}
	s.prompted = true
	return nil
}

// LoadDir reads the three split CSVs from dir.
func LoadDir(dir string, files Files) (*Dataset, error) {
	ds := &Dataset{}
	for _, it := range []struct {
		name SplitName
		file string
		dst  **Split
	}{
		{Train, files.Train, &ds.Train},
		{Valid, files.Valid, &ds.Valid},
		{Test, files.Test, &ds.Test},
	} {
		s, err := loadSplit(it.name, filepath.Join(dir, it.file))
		if err != nil {
			return nil, err
		}
		*it.dst = s
	}
	return ds, nil
}

func loadSplit(name SplitName, path string) (*Split, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	// Rows may carry extra columns beyond the three required ones.
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("split %s: %s: empty file", name, path)
		}
		return nil, fmt.Errorf("split %s: %s: %w", name, path, err)
	}

	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[col] = i
	}
	for _, col := range []string{ColSrcJavadoc, ColDstMethod, ColDstJavadoc} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("split %s: %s: missing column %q", name, path, col)
		}
	}

	s := &Split{Name: name}
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("split %s: %s: %w", name, path, err)
		}
		rec, err := rowToRecord(row, idx)
		if err != nil {
			return nil, fmt.Errorf("split %s: %s: line %d: %w", name, path, line, err)
		}
		s.Records = append(s.Records, rec)
	}
	return s, nil
}

func rowToRecord(row []string, idx map[string]int) (Record, error) {
	get := func(col string) (string, error) {
		i := idx[col]
		if i >= len(row) {
			return "", fmt.Errorf("missing field %q", col)
		}
		return row[i], nil
	}
	var rec Record
	var err error
	if rec.SrcJavadoc, err = get(ColSrcJavadoc); err != nil {
		return rec, err
	}
	if rec.DstMethod, err = get(ColDstMethod); err != nil {
		return rec, err
	}
	if rec.DstJavadoc, err = get(ColDstJavadoc); err != nil {
		return rec, err
	}
	return rec, nil
}
