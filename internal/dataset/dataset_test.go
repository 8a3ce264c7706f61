package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sampleCSV = `id,src_javadoc,dst_method,dst_javadoc
1,"old comment","int f(){return 1;}","returns one"
2,"other","void g(){}","does nothing"
`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadDirSharedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "dummy_train.csv", sampleCSV)

	ds, err := LoadDir(dir, Files{Train: "dummy_train.csv", Valid: "dummy_train.csv", Test: "dummy_train.csv"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []Record{
		{SrcJavadoc: "old comment", DstMethod: "int f(){return 1;}", DstJavadoc: "returns one"},
		{SrcJavadoc: "other", DstMethod: "void g(){}", DstJavadoc: "does nothing"},
	}
	for _, s := range ds.Splits() {
		if diff := cmp.Diff(want, s.Records); diff != "" {
			t.Fatalf("split %s records mismatch (-want +got):\n%s", s.Name, diff)
		}
	}
}

func TestLoadDirMissingColumn(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "train.csv", "src_javadoc,dst_method\nx,y\n")

	_, err := LoadDir(dir, Files{Train: "train.csv", Valid: "train.csv", Test: "train.csv"})
	if err == nil {
		t.Fatal("expected error for missing column")
	}
	if !strings.Contains(err.Error(), "dst_javadoc") {
		t.Fatalf("error does not name the column: %v", err)
	}
	if !strings.Contains(err.Error(), "train.csv") {
		t.Fatalf("error does not name the file: %v", err)
	}
}

func TestLoadDirMissingFile(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadDir(dir, Files{Train: "nope.csv", Valid: "nope.csv", Test: "nope.csv"}); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadDirEmptyFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.csv", "")
	_, err := LoadDir(dir, Files{Train: "empty.csv", Valid: "empty.csv", Test: "empty.csv"})
	if err == nil || !strings.Contains(err.Error(), "empty file") {
		t.Fatalf("expected empty-file error, got %v", err)
	}
}

func TestAttachPromptsAppendOnly(t *testing.T) {
	s := &Split{Name: Train, Records: []Record{{DstMethod: "void g(){}"}}}
	render := func(r Record) string { return "P:" + r.DstMethod }

	if err := s.AttachPrompts(render); err != nil {
		t.Fatalf("first attach: %v", err)
	}
	if got := s.Records[0].Prompt; got != "P:void g(){}" {
		t.Fatalf("prompt = %q", got)
	}
	if err := s.AttachPrompts(render); err == nil {
		t.Fatal("second attach should fail")
	}
}

func TestLoadDirPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	var b strings.Builder
	b.WriteString("src_javadoc,dst_method,dst_javadoc\n")
	for _, m := range []string{"a", "b", "c", "d"} {
		b.WriteString("s," + m + ",t\n")
	}
	writeFile(t, dir, "train.csv", b.String())

	ds, err := LoadDir(dir, Files{Train: "train.csv", Valid: "train.csv", Test: "train.csv"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for i, m := range []string{"a", "b", "c", "d"} {
		if ds.Train.Records[i].DstMethod != m {
			t.Fatalf("record %d out of order: %+v", i, ds.Train.Records)
		}
	}
}
