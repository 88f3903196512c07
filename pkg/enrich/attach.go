package enrich

import (
	"github.com/gbv/typesense-suggest-backend/pkg/jskos"
)

// Attach classifies a mapping and records references to its other-side
// concepts on every local concept of our side. Concepts on our side that
// are not in the index are skipped. Returns the number of local concepts
// the mapping was attached to.
func Attach(index *ConceptIndex, our *jskos.Scheme, mapping *jskos.Mapping) int {
	if mapping == nil {
		return 0
	}
	class := jskos.ClassifyRelation(mapping.Type)
	ours, others, otherScheme := mapping.Sides(our)
	if len(ours) == 0 || len(others) == 0 || otherScheme == nil {
		return 0
	}

	refs := make([]*Ref, 0, len(others))
	for _, other := range others {
		if other.URI == "" {
			continue
		}
		refs = append(refs, &Ref{URI: other.URI, SchemeURI: otherScheme.URI})
	}
	if len(refs) == 0 {
		return 0
	}

	attached := 0
	for _, concept := range ours {
		if index.Get(concept.URI) == nil {
			continue
		}
		index.Append(concept.URI, class, refs)
		attached++
	}
	return attached
}
