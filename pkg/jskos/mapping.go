package jskos

// ConceptBundle is one side of a mapping. JSKOS allows the member concepts
// to be given as a set, a choice, or an ordered list; only one is used per
// bundle in practice.
type ConceptBundle struct {
	MemberSet    []Concept `json:"memberSet,omitempty"`
	MemberChoice []Concept `json:"memberChoice,omitempty"`
	MemberList   []Concept `json:"memberList,omitempty"`
}

// Concepts returns the bundle's member concepts, whichever member field is
// populated.
func (b *ConceptBundle) Concepts() []Concept {
	switch {
	case len(b.MemberSet) > 0:
		return b.MemberSet
	case len(b.MemberChoice) > 0:
		return b.MemberChoice
	default:
		return b.MemberList
	}
}

// Mapping links concepts of one scheme to concepts of another, carrying a
// relation type. Mappings are transient: read once from the stream, never
// stored.
type Mapping struct {
	URI        string        `json:"uri,omitempty"`
	Type       []string      `json:"type,omitempty"`
	From       ConceptBundle `json:"from"`
	To         ConceptBundle `json:"to"`
	FromScheme *Scheme       `json:"fromScheme,omitempty"`
	ToScheme   *Scheme       `json:"toScheme,omitempty"`
}

// Sides splits a mapping relative to our scheme: ours are the member
// concepts on the side whose scheme matches ours, others are the member
// concepts on the opposite side together with their scheme. When neither
// side matches, the from side is treated as the other side.
func (m *Mapping) Sides(our *Scheme) (ours, others []Concept, otherScheme *Scheme) {
	if CompareSchemes(m.FromScheme, our) {
		return m.From.Concepts(), m.To.Concepts(), m.ToScheme
	}
	return m.To.Concepts(), m.From.Concepts(), m.FromScheme
}
