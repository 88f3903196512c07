package jskos

// RelationClass is a coarse bucket for a mapping's semantic strength.
type RelationClass string

const (
	RelationExactClose  RelationClass = "exactClose"
	RelationNarrowBroad RelationClass = "narrowBroad"
	RelationOther       RelationClass = "other"
)

// DefaultMappingType is the generic mapping relation assumed when a mapping
// carries no type.
const DefaultMappingType = "http://www.w3.org/2004/02/skos/core#mappingRelation"

var relationClasses = map[string]RelationClass{
	"http://www.w3.org/2004/02/skos/core#mappingRelation": RelationOther,
	"http://www.w3.org/2004/02/skos/core#closeMatch":      RelationExactClose,
	"http://www.w3.org/2004/02/skos/core#exactMatch":      RelationExactClose,
	"http://www.w3.org/2004/02/skos/core#broadMatch":      RelationNarrowBroad,
	"http://www.w3.org/2004/02/skos/core#narrowMatch":     RelationNarrowBroad,
	"http://www.w3.org/2004/02/skos/core#relatedMatch":    RelationOther,
}

// ClassifyRelation buckets a mapping's relation types by their first entry.
// Absent and unknown types classify as RelationOther.
func ClassifyRelation(types []string) RelationClass {
	if len(types) == 0 {
		return relationClasses[DefaultMappingType]
	}
	if class, ok := relationClasses[types[0]]; ok {
		return class
	}
	return RelationOther
}
