package tagging

import (
	"math"

	"tagging-mcp/internal/taxonomy"
)

// maxSummaryErrors caps how many row errors a Summary repeats.
const maxSummaryErrors = 5

// FieldSummary aggregates one field over the successful rows.
type FieldSummary struct {
	Counts         map[string]int `json:"counts"`
	MeanConfidence *float64       `json:"mean_confidence,omitempty"`
	MinConfidence  *float64       `json:"min_confidence,omitempty"`
	MaxConfidence  *float64       `json:"max_confidence,omitempty"`
}

// RowError is a failed row as reported to callers.
type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// Summary is the aggregate view of an Outcome.
type Summary struct {
	Fields map[string]FieldSummary `json:"fields"`
	Errors []RowError              `json:"errors,omitempty"`
}

// Summarize counts values per field and collects the first few row errors.
func (o Outcome) Summarize(schema taxonomy.Schema) Summary {
	s := Summary{Fields: make(map[string]FieldSummary, len(schema.Fields()))}
	for _, f := range schema.Fields() {
		counts := make(map[string]int, len(f.Values))
		for _, label := range f.Labels() {
			counts[label] = 0
		}
		var sum, lo, hi float64
		n := 0
		lo, hi = math.Inf(1), math.Inf(-1)
		for _, row := range o.Rows {
			if row.Err != nil {
				continue
			}
			d, ok := row.Fields[f.Name]
			if !ok {
				continue
			}
			counts[d.Value]++
			if d.Confidence != nil {
				c := *d.Confidence
				sum += c
				lo = math.Min(lo, c)
				hi = math.Max(hi, c)
				n++
			}
		}
		fs := FieldSummary{Counts: counts}
		if n > 0 {
			mean := sum / float64(n)
			fs.MeanConfidence, fs.MinConfidence, fs.MaxConfidence = &mean, &lo, &hi
		}
		s.Fields[f.Name] = fs
	}
	for _, row := range o.Rows {
		if row.Err == nil {
			continue
		}
		if len(s.Errors) == maxSummaryErrors {
			break
		}
		s.Errors = append(s.Errors, RowError{Row: row.Index, Error: row.Err.Error()})
	}
	return s
}
