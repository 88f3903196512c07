// Package enrich implements the enrichment core: the in-memory concept
// index, mapping attachment, batched label resolution, and the projection
// of enriched concepts into search documents.
package enrich

import (
	"sync"

	"github.com/gbv/typesense-suggest-backend/pkg/jskos"
)

// Ref is a lightweight reference to a concept on the other side of a
// mapping. Label is filled in once resolution succeeds.
type Ref struct {
	URI       string
	SchemeURI string
	Label     string
}

// Buckets groups attached references by relation class. Buckets are
// append-only; repeated references accumulate as repeated evidence.
type Buckets struct {
	ExactClose  []*Ref
	NarrowBroad []*Ref
	Other       []*Ref
}

func (b *Buckets) bucket(class jskos.RelationClass) *[]*Ref {
	switch class {
	case jskos.RelationExactClose:
		return &b.ExactClose
	case jskos.RelationNarrowBroad:
		return &b.NarrowBroad
	default:
		return &b.Other
	}
}

// All returns every attached reference across all buckets.
func (b *Buckets) All() []*Ref {
	out := make([]*Ref, 0, len(b.ExactClose)+len(b.NarrowBroad)+len(b.Other))
	out = append(out, b.ExactClose...)
	out = append(out, b.NarrowBroad...)
	out = append(out, b.Other...)
	return out
}

// Entry pairs a concept with its relation buckets for the lifetime of a run.
type Entry struct {
	Concept *jskos.Concept
	Buckets Buckets
}

// ConceptIndex is the run-scoped arena of concepts addressed by URI.
// Appends to relation buckets are guarded so concurrent per-registry
// attachment passes stay safe.
type ConceptIndex struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	order   []string
}

// NewConceptIndex returns an empty concept index.
func NewConceptIndex() *ConceptIndex {
	return &ConceptIndex{entries: make(map[string]*Entry)}
}

// Add registers a concept under its URI. Concepts without a URI are
// ignored. Re-adding a URI replaces the concept but keeps its buckets.
func (ci *ConceptIndex) Add(concept *jskos.Concept) {
	if concept == nil || concept.URI == "" {
		return
	}
	ci.mu.Lock()
	defer ci.mu.Unlock()
	if entry, ok := ci.entries[concept.URI]; ok {
		entry.Concept = concept
		return
	}
	ci.entries[concept.URI] = &Entry{Concept: concept}
	ci.order = append(ci.order, concept.URI)
}

// Get returns the entry for a URI, or nil when the concept is not local.
func (ci *ConceptIndex) Get(uri string) *Entry {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	return ci.entries[uri]
}

// Append adds references to the relation-class bucket of the concept with
// the given URI. Unknown URIs are silently skipped: the pipeline only
// enriches concepts it already has.
func (ci *ConceptIndex) Append(uri string, class jskos.RelationClass, refs []*Ref) {
	if len(refs) == 0 {
		return
	}
	ci.mu.Lock()
	defer ci.mu.Unlock()
	entry, ok := ci.entries[uri]
	if !ok {
		return
	}
	bucket := entry.Buckets.bucket(class)
	*bucket = append(*bucket, refs...)
}

// Len returns the number of indexed concepts.
func (ci *ConceptIndex) Len() int {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	return len(ci.entries)
}

// Entries returns all entries in insertion order. The slice is a snapshot;
// the entries themselves are shared.
func (ci *ConceptIndex) Entries() []*Entry {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	out := make([]*Entry, 0, len(ci.order))
	for _, uri := range ci.order {
		out = append(out, ci.entries[uri])
	}
	return out
}
