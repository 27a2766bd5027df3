package booking

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// directory is the provider roster shared by every data adapter variant.
type directory struct {
	providers []ServiceProvider
}

func newDirectory(providers []ServiceProvider) directory {
	return directory{providers: append([]ServiceProvider(nil), providers...)}
}

func (d directory) list() []ServiceProvider {
	return append([]ServiceProvider(nil), d.providers...)
}

func (d directory) byID(providerID string) (ServiceProvider, bool) {
	for _, p := range d.providers {
		if strings.EqualFold(p.ID, strings.TrimSpace(providerID)) {
			return p, true
		}
	}
	return ServiceProvider{}, false
}

// search matches providers whose name or role contains every query token,
// ignoring case and diacritics. A token equal to the provider id also matches.
func (d directory) search(query string) []ServiceProvider {
	tokens := strings.Fields(Fold(query))
	if len(tokens) == 0 {
		return []ServiceProvider{}
	}
	out := []ServiceProvider{}
	for _, p := range d.providers {
		name, role := Fold(p.Name), Fold(p.Role)
		matched := true
		for _, tok := range tokens {
			if strings.Contains(name, tok) || strings.Contains(role, tok) || strings.EqualFold(p.ID, tok) {
				continue
			}
			matched = false
			break
		}
		if matched {
			out = append(out, p)
		}
	}
	return out
}

// Fold lower-cases s and strips combining marks so "Dra. Gómez" matches "gomez".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}
