package validate

import (
	"fmt"

	"github.com/sells-group/jobmap/internal/model"
)

// RowError is a rejected row, numbered from 1 in input order.
type RowError struct {
	Row     int         `json:"row"`
	Field   model.Field `json:"field,omitempty"`
	Message string      `json:"message"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// Result is the outcome of validating a batch of rows.
type Result struct {
	Total  int
	Valid  []model.Job
	Errors []RowError
}

// Messages returns every row error formatted for display.
func (r Result) Messages() []string {
	out := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		out[i] = e.Error()
	}
	return out
}

// Rows validates each row independently; a bad row never stops the rest.
// Rows beyond maxRows (when > 0) are rejected with a limit error.
func Rows(raws []model.RawRow, mapping model.ColumnMapping, maxRows int) Result {
	res := Result{Total: len(raws)}
	for i, raw := range raws {
		n := i + 1
		if maxRows > 0 && i >= maxRows {
			res.Errors = append(res.Errors, RowError{
				Row:     n,
				Message: fmt.Sprintf("exceeds import limit of %d rows", maxRows),
			})
			continue
		}
		job, err := Row(raw, mapping)
		if err != nil {
			re := RowError{Row: n, Message: err.Error()}
			if fe, ok := err.(*FieldError); ok {
				re.Field = fe.Field
			}
			res.Errors = append(res.Errors, re)
			continue
		}
		res.Valid = append(res.Valid, job)
	}
	return res
}
