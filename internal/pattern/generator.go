// Package pattern turns a contact name and company domain into the fixed set
// of candidate work-email addresses.
package pattern

import (
	"strings"
)

// Name identifies an email local-part template.
type Name string

const (
	FirstDotLast Name = "first.last"
	FLast        Name = "flast"
	First        Name = "first"
	LastDotFirst Name = "last.first"
	FDotLast     Name = "f.last"
	FirstLast    Name = "firstlast"
	Last         Name = "last"
)

// Order is the generation order. The first entry is the fallback guess when
// nothing else is known.
var Order = []Name{FirstDotLast, FLast, First, LastDotFirst, FDotLast, FirstLast, Last}

func (n Name) String() string {
	return string(n)
}

// Known reports whether n is one of the seven templates.
func Known(n Name) bool {
	for _, o := range Order {
		if o == n {
			return true
		}
	}
	return false
}

// Candidate is one generated address.
type Candidate struct {
	Pattern Name
	Address string
}

func localPart(n Name, first, last string) string {
	switch n {
	case FirstDotLast:
		return first + "." + last
	case FLast:
		return first[:1] + last
	case First:
		return first
	case LastDotFirst:
		return last + "." + first
	case FDotLast:
		return first[:1] + "." + last
	case FirstLast:
		return first + last
	case Last:
		return last
	default:
		return ""
	}
}

// Generate returns the seven candidates for a contact, in Order. Names are
// normalized first; the domain is normalized with NormalizeDomain.
func Generate(first, last, domain string) ([]Candidate, error) {
	f, l, d, err := prepare(first, last, domain)
	if err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(Order))
	seen := make(map[string]struct{}, len(Order))
	for _, n := range Order {
		addr := localPart(n, f, l) + "@" + d
		if _, dup := seen[addr]; dup {
			return nil, invalid("name", "first and last name do not yield distinct addresses")
		}
		seen[addr] = struct{}{}
		out = append(out, Candidate{Pattern: n, Address: addr})
	}
	return out, nil
}

// Render builds the address for a single template.
func Render(n Name, first, last, domain string) (string, error) {
	if !Known(n) {
		return "", invalid("pattern", "unknown pattern "+string(n))
	}
	f, l, d, err := prepare(first, last, domain)
	if err != nil {
		return "", err
	}
	return localPart(n, f, l) + "@" + d, nil
}

func prepare(first, last, domain string) (string, string, string, error) {
	f := Normalize(first)
	if f == "" {
		return "", "", "", invalid("first_name", "empty after normalization")
	}
	l := Normalize(last)
	if l == "" {
		return "", "", "", invalid("last_name", "empty after normalization")
	}
	d := NormalizeDomain(domain)
	if d == "" {
		return "", "", "", invalid("domain", "empty")
	}
	if strings.ContainsAny(d, " @") {
		return "", "", "", invalid("domain", "malformed "+d)
	}
	return f, l, d, nil
}

// providerTemplates maps provider template syntax onto the seven names.
var providerTemplates = map[string]Name{
	"{first}.{last}": FirstDotLast,
	"{f}{last}":      FLast,
	"{first}":        First,
	"{last}.{first}": LastDotFirst,
	"{f}.{last}":     FDotLast,
	"{first}{last}":  FirstLast,
	"{last}":         Last,
}

// FromProviderTemplate translates a template such as "{first}.{last}" into a
// Name. Plain names ("first.last") are accepted too.
func FromProviderTemplate(tmpl string) (Name, bool) {
	t := strings.ToLower(strings.TrimSpace(tmpl))
	if n, ok := providerTemplates[t]; ok {
		return n, true
	}
	if Known(Name(t)) {
		return Name(t), true
	}
	return "", false
}

// Classify infers which template produced localPart for the given name.
// Used to turn observed addresses into pattern evidence.
func Classify(local, first, last string) (Name, bool) {
	f, l := Normalize(first), Normalize(last)
	if f == "" || l == "" {
		return "", false
	}
	local = strings.ToLower(strings.TrimSpace(local))
	for _, n := range Order {
		if localPart(n, f, l) == local {
			return n, true
		}
	}
	return "", false
}
