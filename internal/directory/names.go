package directory

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// =============================================================================
// PROTECTED NAMES
// =============================================================================

// Place is a (state, place name) pair from the canonical city list.
type Place struct {
	State string
	Name  string
}

// ProtectedNames is the allow-list of place names whose trailing "City" or
// "Village" is part of the proper name (Kansas City, Greenwood Village).
// A nil *ProtectedNames protects nothing.
type ProtectedNames struct {
	set map[string]struct{}
}

// NewProtectedNames keeps the places whose name ends in " City" or
// " Village".
func NewProtectedNames(places []Place) *ProtectedNames {
	p := &ProtectedNames{set: make(map[string]struct{})}
	for _, place := range places {
		name := normalizeSpace(place.Name)
		upper := strings.ToUpper(name)
		if strings.HasSuffix(upper, " CITY") || strings.HasSuffix(upper, " VILLAGE") {
			p.set[protectedKey(place.State, name)] = struct{}{}
		}
	}
	return p
}

// Contains reports whether the name is protected in the state.
func (p *ProtectedNames) Contains(state, name string) bool {
	if p == nil {
		return false
	}
	_, ok := p.set[protectedKey(state, name)]
	return ok
}

// Len returns the number of protected names.
func (p *ProtectedNames) Len() int {
	if p == nil {
		return 0
	}
	return len(p.set)
}

func protectedKey(state, name string) string {
	return strings.ToUpper(strings.TrimSpace(state)) + "|" + strings.ToUpper(normalizeSpace(name))
}

// =============================================================================
// SUFFIX STRIPPING
// =============================================================================

// Longest first so " TOWNSHIP" is never read as " TOWN" + "SHIP".
var genericSuffixes = []string{" TOWNSHIP", " VILLAGE", " CITY", " TOWN"}

// StripSuffix removes trailing generic government suffixes ("CITY", "TOWN",
// "VILLAGE", "TOWNSHIP") from a directory name until the name is protected
// or carries no suffix. The result is a fixed point, so
// StripSuffix(StripSuffix(x)) == StripSuffix(x).
func StripSuffix(state, name string, protected *ProtectedNames) string {
	name = normalizeSpace(name)
	for {
		if protected.Contains(state, name) {
			return name
		}
		upper := strings.ToUpper(name)
		stripped := false
		for _, suffix := range genericSuffixes {
			if len(name) > len(suffix) && strings.HasSuffix(upper, suffix) {
				name = strings.TrimSpace(name[:len(name)-len(suffix)])
				stripped = true
				break
			}
		}
		if !stripped {
			return name
		}
	}
}

// NameNormalizer turns directory names into display names. A normalizer is
// not safe for concurrent use; create one per goroutine.
type NameNormalizer struct {
	protected *ProtectedNames
	titler    *cases.Caser
}

// NewNameNormalizer builds a normalizer. With titleCase the result is
// converted from the survey's upper case to title case.
func NewNameNormalizer(protected *ProtectedNames, titleCase bool) *NameNormalizer {
	n := &NameNormalizer{protected: protected}
	if titleCase {
		c := cases.Title(language.English)
		n.titler = &c
	}
	return n
}

// Normalize strips generic suffixes and applies the casing rule.
func (n *NameNormalizer) Normalize(state, name string) string {
	out := StripSuffix(state, name, n.protected)
	if n.titler != nil {
		out = n.titler.String(out)
	}
	return out
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
