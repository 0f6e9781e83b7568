package tools

import (
	"errors"

	"tagging-mcp/internal/apperr"
	"tagging-mcp/internal/tagging"
)

// StatusError marks a tool call that failed as a whole.
const StatusError = "error"

// ErrorBody is the structured error returned to callers.
type ErrorBody struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}

// Failure is the whole response of a tool call that failed before producing results.
type Failure struct {
	Status string    `json:"status"`
	Error  ErrorBody `json:"error"`
}

// NewErrorBody converts err to its caller-facing form.
func NewErrorBody(err error) ErrorBody {
	var e *apperr.Error
	if errors.As(err, &e) {
		return ErrorBody{Kind: e.Kind, Message: e.Error()}
	}
	return ErrorBody{Kind: apperr.KindInternal, Message: err.Error()}
}

// NewFailure wraps err as a failed tool response.
func NewFailure(err error) Failure {
	return Failure{Status: StatusError, Error: NewErrorBody(err)}
}

// PreviewResult is the response of preview_csv.
type PreviewResult struct {
	Status   string              `json:"status"`
	Columns  []string            `json:"columns"`
	RowCount int                 `json:"row_count"`
	Preview  []map[string]string `json:"preview"`
}

// TagResult is the response of tag_csv and tag_csv_advanced. When writing the output file
// fails, Status is "error" and Error has kind "write" while the classification fields
// remain populated.
type TagResult struct {
	Status     string           `json:"status"`
	RunID      string           `json:"run_id"`
	Message    string           `json:"message"`
	Provider   string           `json:"provider"`
	Model      string           `json:"model"`
	TotalRows  int              `json:"total_rows"`
	Succeeded  int              `json:"succeeded"`
	Failed     int              `json:"failed"`
	Columns    []string         `json:"columns"`
	OutputPath string           `json:"output_path,omitempty"`
	Written    bool             `json:"written"`
	Preview    []map[string]any `json:"preview"`
	Summary    tagging.Summary  `json:"summary"`
	Error      *ErrorBody       `json:"error,omitempty"`
}

// ErrorKind reports the kind of the failure.
func (f Failure) ErrorKind() apperr.Kind {
	return f.Error.Kind
}

// ErrorKind reports the kind of the tool-level failure, or "" when the run completed.
func (r TagResult) ErrorKind() apperr.Kind {
	if r.Error == nil {
		return ""
	}
	return r.Error.Kind
}
