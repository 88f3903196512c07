// Package jskos holds the subset of the JSKOS data model used by the
// suggestion backend: concepts, concept schemes and mappings between them,
// plus the pure helpers (identity comparison, notation, relation
// classification) the pipeline is built on.
package jskos

import (
	"encoding/json"
	"sort"
)

// APITypeJSKOS marks a scheme API endpoint that speaks the JSKOS server
// protocol and can therefore resolve concepts by URI.
const APITypeJSKOS = "http://bartoc.org/api-type/jskos"

// combinedConceptType marks concepts that are composites of other concepts.
// Such concepts carry no labels or notes of their own.
const combinedConceptType = "http://rdf-vocabulary.ddialliance.org/xkos#CombinedConcept"

// API describes one access endpoint of a scheme.
type API struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Scheme is a concept scheme (a vocabulary), identified by URI.
type Scheme struct {
	URI        string   `json:"uri"`
	Identifier []string `json:"identifier,omitempty"`
	Notation   []string `json:"notation,omitempty"`
	API        []API    `json:"API,omitempty"`
}

// Concept is a single vocabulary entry, identified by URI.
//
// Raw preserves the original JSON the concept was decoded from so search
// documents can embed the unmodified body.
type Concept struct {
	URI           string              `json:"uri"`
	Notation      []string            `json:"notation,omitempty"`
	Identifier    []string            `json:"identifier,omitempty"`
	Type          []string            `json:"type,omitempty"`
	PrefLabel     map[string]string   `json:"prefLabel,omitempty"`
	AltLabel      map[string][]string `json:"altLabel,omitempty"`
	ScopeNote     map[string][]string `json:"scopeNote,omitempty"`
	EditorialNote map[string][]string `json:"editorialNote,omitempty"`
	InScheme      []Scheme            `json:"inScheme,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// IsCombined reports whether the concept carries the combined-concept type
// marker.
func (c *Concept) IsCombined() bool {
	if c == nil {
		return false
	}
	for _, t := range c.Type {
		if t == combinedConceptType {
			return true
		}
	}
	return false
}

// Identifies reports whether the concept denotes the resource with the given
// URI, matching on the concept URI or any of its identifiers.
func (c *Concept) Identifies(uri string) bool {
	if c == nil || uri == "" {
		return false
	}
	if c.URI == uri {
		return true
	}
	for _, id := range c.Identifier {
		if id == uri {
			return true
		}
	}
	return false
}

// CompareSchemes reports whether two schemes denote the same vocabulary.
// Schemes match when they share a URI or when any identifier of one equals
// the URI or an identifier of the other.
func CompareSchemes(a, b *Scheme) bool {
	if a == nil || b == nil {
		return false
	}
	return overlap(uris(a), uris(b))
}

// SchemeMatchesURI reports whether the scheme denotes the vocabulary with
// the given URI.
func SchemeMatchesURI(s *Scheme, uri string) bool {
	return CompareSchemes(s, &Scheme{URI: uri})
}

func uris(s *Scheme) []string {
	out := make([]string, 0, 1+len(s.Identifier))
	if s.URI != "" {
		out = append(out, s.URI)
	}
	out = append(out, s.Identifier...)
	return out
}

func overlap(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x != "" && x == y {
				return true
			}
		}
	}
	return false
}

// Notation returns the scheme's primary notation, or "" when it has none.
func Notation(s *Scheme) string {
	if s == nil || len(s.Notation) == 0 {
		return ""
	}
	return s.Notation[0]
}

// ConceptAPI returns the URL of the scheme's JSKOS API endpoint, or "" when
// the scheme cannot resolve concepts.
func (s *Scheme) ConceptAPI() string {
	if s == nil {
		return ""
	}
	for _, api := range s.API {
		if api.Type == APITypeJSKOS && api.URL != "" {
			return api.URL
		}
	}
	return ""
}

// PrefLabel returns a display label for the concept, preferring German, then
// English, then any language in deterministic order. Returns "" when the
// concept has no preferred label; it never falls back to the URI.
func PrefLabel(c *Concept) string {
	if c == nil || len(c.PrefLabel) == 0 {
		return ""
	}
	for _, lang := range []string{"de", "en"} {
		if label := c.PrefLabel[lang]; label != "" {
			return label
		}
	}
	langs := make([]string, 0, len(c.PrefLabel))
	for lang := range c.PrefLabel {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		if label := c.PrefLabel[lang]; label != "" {
			return label
		}
	}
	return ""
}

// Registration is the persisted form of a scheme the query endpoint
// validates vocabulary parameters against.
type Registration struct {
	URI        string   `json:"uri"`
	Identifier []string `json:"identifier,omitempty"`
	Notation   []string `json:"notation,omitempty"`
}

// Registered reduces a scheme to its registration record.
func Registered(s *Scheme) Registration {
	return Registration{URI: s.URI, Identifier: s.Identifier, Notation: s.Notation}
}

// Scheme converts a registration record back into a scheme.
func (r Registration) Scheme() *Scheme {
	return &Scheme{URI: r.URI, Identifier: r.Identifier, Notation: r.Notation}
}
