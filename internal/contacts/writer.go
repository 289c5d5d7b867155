package contacts

import (
	"encoding/csv"
	"io"
	"strconv"

	"mailscout/internal/verification"
)

// OutputHeader is the resolve command's output columns.
var OutputHeader = []string{"id", "first_name", "last_name", "domain", "email", "pattern", "confidence", "verified", "resolution"}

// Writer streams resolved contacts as CSV.
type Writer struct {
	w *csv.Writer
}

// NewWriter writes the header immediately.
func NewWriter(w io.Writer) (*Writer, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(OutputHeader); err != nil {
		return nil, err
	}
	return &Writer{w: cw}, nil
}

// Write appends one result and flushes it.
func (w *Writer) Write(r verification.Result) error {
	row := []string{
		r.Contact.ID,
		r.Contact.FirstName,
		r.Contact.LastName,
		r.Contact.Domain,
		r.Email.Address,
		string(r.Email.Pattern),
		strconv.FormatFloat(r.Email.Confidence, 'f', 3, 64),
		strconv.FormatBool(r.Verified),
		string(r.Resolution),
	}
	if err := w.w.Write(row); err != nil {
		return err
	}
	w.w.Flush()
	return w.w.Error()
}
