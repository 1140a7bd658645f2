package schema

import (
	"sort"
	"strings"
)

// Set is an immutable snapshot of the attributes declared for one
// (category, taxonomy, kind) key.
type Set struct {
	category string
	taxonomy string
	kind     Kind
	byName   map[string]Attribute
	aliases  map[string]string
}

// NewSet indexes attributes by canonical name, explicit synonyms and
// underscore/hyphen variants. Canonical names win over aliases on collision.
func NewSet(category, taxonomy string, kind Kind, attrs []Attribute) *Set {
	s := &Set{
		category: category,
		taxonomy: taxonomy,
		kind:     kind,
		byName:   make(map[string]Attribute, len(attrs)),
		aliases:  make(map[string]string),
	}
	for _, a := range attrs {
		s.byName[strings.ToLower(a.Name())] = a
	}
	for _, a := range attrs {
		canonical := strings.ToLower(a.Name())
		for _, alias := range variants(canonical) {
			s.addAlias(alias, canonical)
		}
		for _, syn := range a.Synonyms() {
			syn = strings.ToLower(syn)
			s.addAlias(syn, canonical)
			for _, alias := range variants(syn) {
				s.addAlias(alias, canonical)
			}
		}
	}
	return s
}

func (s *Set) addAlias(alias, canonical string) {
	if alias == canonical {
		return
	}
	if _, ok := s.byName[alias]; ok {
		return
	}
	if _, ok := s.aliases[alias]; ok {
		return
	}
	s.aliases[alias] = canonical
}

func variants(name string) []string {
	return []string{
		strings.ReplaceAll(name, "_", "-"),
		strings.ReplaceAll(name, "-", "_"),
	}
}

// Category returns the record category of the snapshot.
func (s *Set) Category() string { return s.category }

// Taxonomy returns the taxonomy of the snapshot.
func (s *Set) Taxonomy() string { return s.taxonomy }

// Kind returns the schema kind of the snapshot.
func (s *Set) Kind() Kind { return s.kind }

// Len returns the number of declared attributes.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.byName)
}

// Lookup resolves a canonical name or synonym, case-insensitively.
func (s *Set) Lookup(name string) (Attribute, bool) {
	if s == nil {
		return Attribute{}, false
	}
	key := strings.ToLower(strings.TrimSpace(name))
	if a, ok := s.byName[key]; ok {
		return a, true
	}
	if canonical, ok := s.aliases[key]; ok {
		return s.byName[canonical], true
	}
	return Attribute{}, false
}

// Names returns canonical names in sorted order.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.byName))
	for _, a := range s.byName {
		names = append(names, a.Name())
	}
	sort.Strings(names)
	return names
}

// Attributes returns all attributes sorted by name.
func (s *Set) Attributes() []Attribute {
	names := s.Names()
	out := make([]Attribute, 0, len(names))
	for _, n := range names {
		out = append(out, s.byName[strings.ToLower(n)])
	}
	return out
}
