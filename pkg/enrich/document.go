package enrich

import (
	"encoding/json"
	"sort"
)

// Document is the denormalized, weighted multi-field projection of a
// concept imported into the search backend. Concept embeds the unmodified
// concept body for retrieval.
type Document struct {
	ID                       string          `json:"id"`
	Concept                  json.RawMessage `json:"concept"`
	Identifier               []string        `json:"identifier"`
	PrefLabel                []string        `json:"prefLabel"`
	AltLabel                 []string        `json:"altLabel"`
	MappingLabelsExactClose  []string        `json:"mappingLabelsExactClose"`
	MappingLabelsNarrowBroad []string        `json:"mappingLabelsNarrowBroad"`
	MappingLabelsOther       []string        `json:"mappingLabelsOther"`
	Notes                    []string        `json:"notes"`
}

// BuildDocument projects an enriched concept into a search document.
// Returns nil for unusable concepts (no URI or no preferred-label map).
// Combined concepts keep their identifiers and body but stay out of all
// label-based search fields.
func BuildDocument(entry *Entry) *Document {
	if entry == nil || entry.Concept == nil {
		return nil
	}
	concept := entry.Concept
	if concept.URI == "" || concept.PrefLabel == nil {
		return nil
	}

	body := concept.Raw
	if body == nil {
		var err error
		body, err = json.Marshal(concept)
		if err != nil {
			return nil
		}
	}

	doc := &Document{
		ID:      concept.URI,
		Concept: body,
		Identifier: append(append([]string{concept.URI},
			concept.Identifier...), concept.Notation...),
		PrefLabel:                []string{},
		AltLabel:                 []string{},
		MappingLabelsExactClose:  []string{},
		MappingLabelsNarrowBroad: []string{},
		MappingLabelsOther:       []string{},
		Notes:                    []string{},
	}
	if concept.IsCombined() {
		return doc
	}

	doc.PrefLabel = languageValues(concept.PrefLabel)
	doc.AltLabel = flattenLanguageLists(concept.AltLabel)
	doc.MappingLabelsExactClose = refLabels(entry.Buckets.ExactClose)
	doc.MappingLabelsNarrowBroad = refLabels(entry.Buckets.NarrowBroad)
	doc.MappingLabelsOther = refLabels(entry.Buckets.Other)
	doc.Notes = append(flattenLanguageLists(concept.ScopeNote),
		flattenLanguageLists(concept.EditorialNote)...)
	return doc
}

// refLabels collects resolved labels of a bucket, dropping unresolved
// references.
func refLabels(refs []*Ref) []string {
	out := []string{}
	for _, ref := range refs {
		if ref.Label != "" {
			out = append(out, ref.Label)
		}
	}
	return out
}

// languageValues returns a label map's values in deterministic language
// order.
func languageValues(m map[string]string) []string {
	langs := make([]string, 0, len(m))
	for lang := range m {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	out := []string{}
	for _, lang := range langs {
		out = append(out, m[lang])
	}
	return out
}

// flattenLanguageLists flattens a multilingual list map in deterministic
// language order.
func flattenLanguageLists(m map[string][]string) []string {
	langs := make([]string, 0, len(m))
	for lang := range m {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	out := []string{}
	for _, lang := range langs {
		out = append(out, m[lang]...)
	}
	return out
}
