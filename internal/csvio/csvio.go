// Package csvio reads and writes the header-first, UTF-8 CSV files the tagging tools operate on.
package csvio

import (
	"encoding/csv"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"tagging-mcp/internal/apperr"
)

// DefaultPreviewRows is used when ReadPreview is asked for a non-positive row count.
const DefaultPreviewRows = 5

const utf8BOM = "\uFEFF"

// Row is one data record keyed by header column, with its position in the file.
type Row struct {
	Index  int
	Values map[string]string
}

// Table is a fully loaded CSV file.
type Table struct {
	Columns []string
	Rows    []Row
}

// Preview is the head of a CSV file plus its total data row count.
type Preview struct {
	Columns  []string
	RowCount int
	Rows     []Row
}

// Exists reports whether path names a readable regular file.
func Exists(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperr.New(apperr.KindNotFound, "file not found: %s", path)
		}
		return apperr.Wrap(apperr.KindNotFound, err, "cannot access %s", path)
	}
	if info.IsDir() {
		return apperr.New(apperr.KindValidation, "%s is a directory, not a CSV file", path)
	}
	return nil
}

// ReadPreview streams path, keeping at most n rows while counting all of them.
func ReadPreview(path string, n int) (Preview, error) {
	if n <= 0 {
		n = DefaultPreviewRows
	}
	var p Preview
	err := scan(path, func(header []string) {
		p.Columns = header
	}, func(row Row) {
		p.RowCount++
		if len(p.Rows) < n {
			p.Rows = append(p.Rows, row)
		}
	})
	if err != nil {
		return Preview{}, err
	}
	return p, nil
}

// Load reads every row of path and checks that textColumn is present.
func Load(path, textColumn string) (Table, error) {
	var t Table
	err := scan(path, func(header []string) {
		t.Columns = header
	}, func(row Row) {
		t.Rows = append(t.Rows, row)
	})
	if err != nil {
		return Table{}, err
	}
	if !t.HasColumn(textColumn) {
		return Table{}, apperr.New(apperr.KindValidation,
			"column %q not found in CSV; available columns: %s", textColumn, strings.Join(t.Columns, ", "))
	}
	return t, nil
}

// HasColumn reports whether name is one of the table's columns.
func (t Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Write serializes header and records to path, replacing any existing file.
// The data lands in a sibling temp file first and is renamed into place.
func Write(path string, header []string, records [][]string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return apperr.Wrap(apperr.KindWrite, err, "failed to create output file in %s", dir)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op after a successful rename
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return apperr.Wrap(apperr.KindWrite, err, "failed to set permissions on %s", tmpName)
	}
	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		_ = tmp.Close()
		return apperr.Wrap(apperr.KindWrite, err, "failed to write CSV header")
	}
	if err := w.WriteAll(records); err != nil {
		_ = tmp.Close()
		return apperr.Wrap(apperr.KindWrite, err, "failed to write CSV rows")
	}
	if err := tmp.Close(); err != nil {
		return apperr.Wrap(apperr.KindWrite, err, "failed to flush %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return apperr.Wrap(apperr.KindWrite, err, "failed to write %s", path)
	}
	return nil
}

func scan(path string, onHeader func([]string), onRow func(Row)) error {
	if err := Exists(path); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return apperr.Wrap(apperr.KindNotFound, err, "failed to open %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return apperr.New(apperr.KindParse, "%s is empty; a header row is required", path)
	}
	if err != nil {
		return apperr.Wrap(apperr.KindParse, err, "failed to parse %s", path)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	if err := checkHeader(header); err != nil {
		return err
	}
	onHeader(header)

	for i := 0; ; i++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return apperr.Wrap(apperr.KindParse, err, "failed to parse %s", path)
		}
		values := make(map[string]string, len(header))
		for j, col := range header {
			values[col] = record[j]
		}
		onRow(Row{Index: i, Values: values})
	}
}

func checkHeader(header []string) error {
	seen := make(map[string]bool, len(header))
	for _, col := range header {
		if seen[col] {
			return apperr.New(apperr.KindParse, "duplicate column %q in CSV header", col)
		}
		seen[col] = true
	}
	return nil
}

// Records renders rows as CSV records in column order.
func Records(columns []string, rows []map[string]string) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		rec := make([]string, len(columns))
		for j, col := range columns {
			rec[j] = row[col]
		}
		out[i] = rec
	}
	return out
}
