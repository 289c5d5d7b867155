// Package contacts reads contact lists for the resolve command and writes
// the resolved addresses back out.
package contacts

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"mailscout/internal/pattern"
	"mailscout/internal/verification"
)

// ErrMissingColumns reports a header without the required columns.
var ErrMissingColumns = errors.New("contacts: header needs first_name,last_name,domain or full_name,domain")

// ReadCSV parses a contacts file. The header must have first_name, last_name
// and domain, or full_name and domain; id is optional and defaults to the
// row number. Column names are matched case-insensitively. Full names are
// cleaned of honorifics and credentials before splitting.
func ReadCSV(r io.Reader) ([]verification.Contact, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrMissingColumns
		}
		return nil, fmt.Errorf("contacts header: %w", err)
	}
	cols := columns(header)

	_, hasFirst := cols["first_name"]
	_, hasLast := cols["last_name"]
	_, hasFull := cols["full_name"]
	_, hasDomain := cols["domain"]
	if !hasDomain || !(hasFirst && hasLast || hasFull) {
		return nil, ErrMissingColumns
	}

	get := cols.get

	var out []verification.Contact
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("contacts line %d: %w", line, err)
		}
		if isBlank(row) {
			continue
		}

		c := verification.Contact{
			ID:     get(row, "id"),
			Domain: get(row, "domain"),
		}
		if hasFirst && hasLast && (get(row, "first_name") != "" || get(row, "last_name") != "") {
			c.FirstName = get(row, "first_name")
			c.LastName = get(row, "last_name")
		} else {
			c.FirstName, c.LastName = pattern.SplitFullName(get(row, "full_name"))
		}
		if c.ID == "" {
			c.ID = strconv.Itoa(line)
		}
		out = append(out, c)
	}
	return out, nil
}

// columnIndex maps lowercased header names to their position.
type columnIndex map[string]int

func columns(header []string) columnIndex {
	cols := make(columnIndex, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	return cols
}

func (c columnIndex) has(name string) bool {
	_, ok := c[name]
	return ok
}

func (c columnIndex) get(row []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
