package contacts

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"mailscout/internal/knowledge"
	"mailscout/internal/pattern"
)

// ErrMissingKnownColumns reports a known-addresses header without the required columns.
var ErrMissingKnownColumns = errors.New("contacts: header needs email with first_name,last_name or full_name")

// ReadKnownCSV parses a file of addresses known to belong to named people:
// email plus first_name and last_name, or full_name. Rows without an email
// are dropped.
func ReadKnownCSV(r io.Reader) ([]knowledge.Example, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrMissingKnownColumns
		}
		return nil, fmt.Errorf("known addresses header: %w", err)
	}
	cols := columns(header)
	split := cols.has("first_name") && cols.has("last_name")
	if !cols.has("email") || !(split || cols.has("full_name")) {
		return nil, ErrMissingKnownColumns
	}

	var out []knowledge.Example
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("known addresses line %d: %w", line, err)
		}
		ex := knowledge.Example{Email: cols.get(row, "email")}
		if ex.Email == "" {
			continue
		}
		if split && (cols.get(row, "first_name") != "" || cols.get(row, "last_name") != "") {
			ex.FirstName = cols.get(row, "first_name")
			ex.LastName = cols.get(row, "last_name")
		} else {
			ex.FirstName, ex.LastName = pattern.SplitFullName(cols.get(row, "full_name"))
		}
		out = append(out, ex)
	}
	return out, nil
}
