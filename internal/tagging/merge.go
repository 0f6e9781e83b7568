package tagging

import (
	"encoding/json"
	"strconv"
	"strings"

	"tagging-mcp/internal/apperr"
	"tagging-mcp/internal/csvio"
	"tagging-mcp/internal/taxonomy"
)

// ErrorColumn holds the failure message of a row, empty on success.
const ErrorColumn = "error"

// Column suffixes appended after a field name.
const (
	SuffixConfidence = "_confidence"
	SuffixThinking   = "_thinking"
	SuffixReflection = "_reflection"
)

// Columns lists the columns a run appends, in output order.
func Columns(schema taxonomy.Schema, includeReasoning bool) []string {
	var cols []string
	for _, f := range schema.Fields() {
		cols = append(cols, f.Name, f.Name+SuffixConfidence)
		if includeReasoning {
			cols = append(cols, f.Name+SuffixThinking, f.Name+SuffixReflection)
		}
	}
	return append(cols, ErrorColumn)
}

// CheckColumns rejects a run whose appended columns repeat one another, such as a field
// named "error" or fields "x" and "x_confidence", or would shadow an input column.
func CheckColumns(existing []string, schema taxonomy.Schema, includeReasoning bool) error {
	added := Columns(schema, includeReasoning)
	seen := make(map[string]bool, len(added))
	var dup []string
	for _, c := range added {
		if seen[c] {
			dup = append(dup, c)
		}
		seen[c] = true
	}
	if len(dup) > 0 {
		return apperr.New(apperr.KindValidation,
			"field names produce duplicate output columns: %s; %q and the %s, %s and %s suffixes are reserved",
			strings.Join(dup, ", "), ErrorColumn, SuffixConfidence, SuffixThinking, SuffixReflection)
	}

	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c] = true
	}
	var clash []string
	for _, c := range added {
		if have[c] {
			clash = append(clash, c)
		}
	}
	if len(clash) > 0 {
		return apperr.New(apperr.KindValidation,
			"output columns already exist in the CSV: %s; rename the field or the input column", strings.Join(clash, ", "))
	}
	return nil
}

// Merged is the tagged table: input columns followed by the appended ones.
type Merged struct {
	Columns []string
	Added   []string
	Rows    []map[string]string
}

// Merge lays the outcome over the table. Input values are never modified; failed rows get
// empty tag columns and their error message.
func Merge(table csvio.Table, out Outcome, schema taxonomy.Schema, includeReasoning bool) Merged {
	added := Columns(schema, includeReasoning)
	m := Merged{
		Columns: append(append([]string(nil), table.Columns...), added...),
		Added:   added,
		Rows:    make([]map[string]string, len(table.Rows)),
	}
	for i, row := range table.Rows {
		rec := make(map[string]string, len(m.Columns))
		for k, v := range row.Values {
			rec[k] = v
		}
		for _, c := range added {
			rec[c] = ""
		}
		if i < len(out.Rows) {
			res := out.Rows[i]
			if res.Err != nil {
				rec[ErrorColumn] = res.Err.Error()
			} else {
				for _, f := range schema.Fields() {
					fillField(rec, f.Name, res.Fields[f.Name], includeReasoning)
				}
			}
		}
		m.Rows[i] = rec
	}
	return m
}

func fillField(rec map[string]string, name string, d taxonomy.Decoded, includeReasoning bool) {
	rec[name] = d.Value
	if d.Confidence != nil {
		rec[name+SuffixConfidence] = strconv.FormatFloat(*d.Confidence, 'f', -1, 64)
	}
	if !includeReasoning {
		return
	}
	if len(d.Thinking) > 0 {
		if data, err := json.Marshal(d.Thinking); err == nil {
			rec[name+SuffixThinking] = string(data)
		}
	}
	rec[name+SuffixReflection] = d.Reflection
}

// Records renders the merged rows for csvio.Write.
func (m Merged) Records() [][]string {
	return csvio.Records(m.Columns, m.Rows)
}

// Head returns up to n rows as JSON-friendly objects. Appended columns that are empty are
// reported as null so a failed row's tags read as absent rather than blank.
func (m Merged) Head(n int) []map[string]any {
	if n > len(m.Rows) {
		n = len(m.Rows)
	}
	if n < 0 {
		n = 0
	}
	added := make(map[string]bool, len(m.Added))
	for _, c := range m.Added {
		added[c] = true
	}
	out := make([]map[string]any, n)
	for i := 0; i < n; i++ {
		obj := make(map[string]any, len(m.Columns))
		for _, c := range m.Columns {
			v := m.Rows[i][c]
			if added[c] && v == "" {
				obj[c] = nil
				continue
			}
			obj[c] = v
		}
		out[i] = obj
	}
	return out
}
