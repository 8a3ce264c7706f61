// Package output prints and persists generated comments.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"gemmaft/pkg/types"
)

// Print writes the generated comments to w, one block per record.
func Print(w io.Writer, gens []types.Generation) error {
	for _, g := range gens {
		if _, err := fmt.Fprintf(w, "[%d] %s\n", g.Index, g.Text); err != nil {
			return err
		}
	}
	return nil
}

// WriteCSV persists the generations (with their references for later scoring)
// to a CSV file.
func WriteCSV(path string, gens []types.Generation) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"index", "reference", "generated", "duration_ms"}); err != nil {
		f.Close()
		return err
	}
	for _, g := range gens {
		row := []string{
			strconv.Itoa(g.Index),
			g.Reference,
			g.Text,
			strconv.FormatInt(g.Duration.Milliseconds(), 10),
		}
		if err := w.Write(row); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteJSON persists the generations as a JSON array.
func WriteJSON(path string, gens []types.Generation) error {
	b, err := json.MarshalIndent(gens, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}
