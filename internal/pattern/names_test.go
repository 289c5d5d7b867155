package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanName(t *testing.T) {
	tests := map[string]string{
		"Dr. Jane (JJ) Q. Doe, PhD": "Jane Doe",
		"Mr John Smith Jr.":         "John Smith",
		"Prof. Ada Lovelace MBA":    "Ada Lovelace",
		"Sarah \"Sally\" Connor":    "Sarah Sally Connor",
		"Angela   Baker | Nurse":    "Angela Baker",
		"Dr.":                       "",
		"":                          "",
	}
	for in, want := range tests {
		assert.Equal(t, want, CleanName(in), in)
	}
}

func TestSplitFullName(t *testing.T) {
	first, last := SplitFullName("Dr. Jane Q. Doe, MD")
	assert.Equal(t, "Jane", first)
	assert.Equal(t, "Doe", last)

	first, last = SplitFullName("Cher")
	assert.Equal(t, "Cher", first)
	assert.Empty(t, last)

	first, last = SplitFullName("   ")
	assert.Empty(t, first)
	assert.Empty(t, last)
}
