package pattern

import (
	"regexp"
	"strings"
)

var (
	parenthetical = regexp.MustCompile(`\([^)]*\)`)
	honorifics    = map[string]struct{}{
		"mr": {}, "mrs": {}, "ms": {}, "miss": {}, "dr": {}, "prof": {}, "rev": {}, "sir": {},
	}
	credentials = map[string]struct{}{
		"jr": {}, "sr": {}, "ii": {}, "iii": {}, "iv": {},
		"phd": {}, "md": {}, "mba": {}, "cpa": {}, "pe": {}, "rn": {}, "esq": {},
	}
)

// CleanName strips nicknames, honorifics, credentials and middle initials from
// a scraped full name. "Dr. Jane (JJ) Q. Doe, PhD" becomes "Jane Doe".
func CleanName(full string) string {
	name := strings.Join(strings.Fields(full), " ")
	if i := strings.IndexAny(name, ",;|"); i >= 0 {
		name = name[:i]
	}
	name = parenthetical.ReplaceAllString(name, " ")
	name = strings.NewReplacer(`"`, "", "'", "").Replace(name)

	words := strings.Fields(name)
	for len(words) > 0 {
		if _, ok := honorifics[token(words[0])]; !ok {
			break
		}
		words = words[1:]
	}
	for len(words) > 0 {
		if _, ok := credentials[token(words[len(words)-1])]; !ok {
			break
		}
		words = words[:len(words)-1]
	}

	kept := words[:0]
	for i, w := range words {
		// Drop middle initials but keep a lone first or last token.
		if len([]rune(token(w))) == 1 && i > 0 && i < len(words)-1 {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// SplitFullName cleans full and returns its first and last tokens.
func SplitFullName(full string) (first, last string) {
	words := strings.Fields(CleanName(full))
	switch len(words) {
	case 0:
		return "", ""
	case 1:
		return words[0], ""
	default:
		return words[0], words[len(words)-1]
	}
}

func token(w string) string {
	return strings.ToLower(strings.Trim(w, "."))
}
