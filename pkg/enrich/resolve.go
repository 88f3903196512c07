package enrich

import (
	"context"

	"github.com/gbv/typesense-suggest-backend/pkg/db"
	"github.com/gbv/typesense-suggest-backend/pkg/jskos"
)

// DefaultBatchSize is the maximum number of references sent to a gateway in
// one call.
const DefaultBatchSize = 20

// progressInterval controls how often OnProgress fires.
const progressInterval = 500

// Gateway resolves a batch of concept URIs into concept objects. The whole
// call fails as one unit. registry.Client satisfies this.
type Gateway interface {
	GetConcepts(ctx context.Context, uris []string) ([]jskos.Concept, error)
}

// GatewayLookup maps a foreign scheme URI to a gateway able to resolve its
// concepts, or nil when the scheme is not lookup-capable.
type GatewayLookup func(schemeURI string) Gateway

// Stats aggregates resolution outcomes. Every processed reference lands in
// exactly one of Loaded, Cached, Failed, or Incompatible.
type Stats struct {
	Total        int
	Loaded       int
	Cached       int
	Failed       int
	Incompatible int
	// IncompatibleSchemes lists unresolvable scheme URIs, deduplicated,
	// in first-seen order.
	IncompatibleSchemes []string
}

// Resolver assigns a best-effort preferred label to every attached
// reference, checking the persistent label cache before batching remote
// gateway lookups.
type Resolver struct {
	store     db.DBExecutor
	lookup    GatewayLookup
	batchSize int

	// OnProgress, if set, is called with a stats snapshot every 500
	// processed references.
	OnProgress func(Stats)

	stats   Stats
	seen    map[string]bool
	batcher *Batcher
}

// NewResolver creates a resolver over the given label cache store and
// gateway lookup.
func NewResolver(store db.DBExecutor, lookup GatewayLookup) *Resolver {
	return &Resolver{
		store:     store,
		lookup:    lookup,
		batchSize: DefaultBatchSize,
		seen:      make(map[string]bool),
	}
}

// SetBatchSize overrides the gateway batch size, mainly for tests.
func (r *Resolver) SetBatchSize(n int) {
	if n > 0 {
		r.batchSize = n
	}
}

// Resolve processes every attached reference in the index and returns the
// aggregate outcome counts. Gateway batch failures are downgraded to
// counters; only storage errors abort the run.
func (r *Resolver) Resolve(ctx context.Context, index *ConceptIndex) (Stats, error) {
	r.batcher = NewBatcher(r.batchSize, r.flushBatch)
	for _, entry := range index.Entries() {
		for _, ref := range entry.Buckets.All() {
			if err := r.resolveRef(ctx, ref); err != nil {
				return r.stats, err
			}
			r.stats.Total++
			if r.OnProgress != nil && r.stats.Total%progressInterval == 0 {
				r.OnProgress(r.stats)
			}
		}
	}
	if err := r.batcher.FlushAll(ctx); err != nil {
		return r.stats, err
	}
	return r.stats, nil
}

func (r *Resolver) resolveRef(ctx context.Context, ref *Ref) error {
	if r.lookup(ref.SchemeURI) == nil {
		if !r.seen[ref.SchemeURI] {
			r.seen[ref.SchemeURI] = true
			r.stats.IncompatibleSchemes = append(r.stats.IncompatibleSchemes, ref.SchemeURI)
		}
		r.stats.Incompatible++
		return nil
	}
	label, ok, err := db.GetLabel(r.store, ref.URI)
	if err != nil {
		return err
	}
	if ok {
		r.stats.Cached++
		ref.Label = label
		return nil
	}
	return r.batcher.Add(ctx, ref.SchemeURI, ref)
}

// flushBatch performs one gateway call for a full or final batch. A failed
// call fails every reference in the batch; there is no retry.
func (r *Resolver) flushBatch(ctx context.Context, schemeURI string, refs []*Ref) error {
	gateway := r.lookup(schemeURI)
	uris := make([]string, len(refs))
	for i, ref := range refs {
		uris[i] = ref.URI
	}
	results, err := gateway.GetConcepts(ctx, uris)
	if err != nil {
		r.stats.Failed += len(refs)
		return nil
	}
	for _, ref := range refs {
		label := matchLabel(results, ref.URI)
		if label == "" {
			r.stats.Failed++
			continue
		}
		if err := db.UpsertLabel(r.store, ref.URI, label); err != nil {
			return err
		}
		r.stats.Loaded++
		ref.Label = label
	}
	return nil
}

func matchLabel(results []jskos.Concept, uri string) string {
	for i := range results {
		if results[i].Identifies(uri) {
			return jskos.PrefLabel(&results[i])
		}
	}
	return ""
}
