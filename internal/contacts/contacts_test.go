package contacts

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailscout/internal/knowledge"
	"mailscout/internal/pattern"
	"mailscout/internal/verification"
)

func TestReadCSV_SplitColumns(t *testing.T) {
	in := "ID,First_Name,Last_Name,Domain\nc1,Jane,Doe,example.com\n,,,\nc2,José,Núñez,https://www.acme.io/\n"
	got, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []verification.Contact{
		{ID: "c1", FirstName: "Jane", LastName: "Doe", Domain: "example.com"},
		{ID: "c2", FirstName: "José", LastName: "Núñez", Domain: "https://www.acme.io/"},
	}, got)
}

func TestReadCSV_FullName(t *testing.T) {
	in := "full_name,domain\n\"Dr. Jane Q. Doe, PhD\",example.com\n"
	got, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "2", got[0].ID)
	assert.Equal(t, "Jane", got[0].FirstName)
	assert.Equal(t, "Doe", got[0].LastName)
}

func TestReadCSV_MissingColumns(t *testing.T) {
	for _, in := range []string{"", "name,email\n", "first_name,last_name\n"} {
		_, err := ReadCSV(strings.NewReader(in))
		assert.ErrorIs(t, err, ErrMissingColumns, in)
	}
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)

	require.NoError(t, w.Write(verification.Result{
		Contact:    verification.Contact{ID: "c1", FirstName: "Jane", LastName: "Doe", Domain: "example.com"},
		Email:      verification.EmailCandidate{Pattern: pattern.FirstDotLast, Address: "jane.doe@example.com", Confidence: 0.8361},
		Verified:   true,
		Resolution: verification.ResolutionVerified,
	}))

	assert.Equal(t,
		"id,first_name,last_name,domain,email,pattern,confidence,verified,resolution\n"+
			"c1,Jane,Doe,example.com,jane.doe@example.com,first.last,0.836,true,verified\n",
		buf.String())
}

func TestReadKnownCSV(t *testing.T) {
	in := "First_Name,Last_Name,Full_Name,Email\nJane,Doe,,jane.doe@acme.io\n,,\"Dr. John Smith\",jsmith@acme.io\nAda,Lovelace,,\n"
	got, err := ReadKnownCSV(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []knowledge.Example{
		{FirstName: "Jane", LastName: "Doe", Email: "jane.doe@acme.io"},
		{FirstName: "John", LastName: "Smith", Email: "jsmith@acme.io"},
	}, got)
}

func TestReadKnownCSV_MissingColumns(t *testing.T) {
	for _, in := range []string{"", "first_name,last_name\n", "email,domain\n", "email,first_name\n"} {
		_, err := ReadKnownCSV(strings.NewReader(in))
		assert.ErrorIs(t, err, ErrMissingKnownColumns, in)
	}
}
