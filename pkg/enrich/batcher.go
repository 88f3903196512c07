package enrich

import "context"

// FlushFunc handles one full or final batch of references for a scheme.
type FlushFunc func(ctx context.Context, schemeURI string, refs []*Ref) error

// Batcher buffers references per scheme and flushes a scheme's buffer as
// soon as it reaches capacity. FlushAll drains the remainders.
type Batcher struct {
	cap     int
	flush   FlushFunc
	pending map[string][]*Ref
}

// NewBatcher creates a batcher that calls flush with at most cap references
// per call.
func NewBatcher(cap int, flush FlushFunc) *Batcher {
	if cap <= 0 {
		cap = 1
	}
	return &Batcher{
		cap:     cap,
		flush:   flush,
		pending: make(map[string][]*Ref),
	}
}

// Add buffers a reference under its scheme, flushing the scheme's batch
// when it reaches capacity.
func (b *Batcher) Add(ctx context.Context, schemeURI string, ref *Ref) error {
	b.pending[schemeURI] = append(b.pending[schemeURI], ref)
	if len(b.pending[schemeURI]) >= b.cap {
		return b.flushScheme(ctx, schemeURI)
	}
	return nil
}

// Pending returns the number of buffered references for a scheme.
func (b *Batcher) Pending(schemeURI string) int {
	return len(b.pending[schemeURI])
}

// FlushAll flushes every non-empty remaining batch. All batches are
// attempted even when one flush fails; the first error is returned.
func (b *Batcher) FlushAll(ctx context.Context) error {
	var firstErr error
	for schemeURI, refs := range b.pending {
		if len(refs) == 0 {
			continue
		}
		if err := b.flushScheme(ctx, schemeURI); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (b *Batcher) flushScheme(ctx context.Context, schemeURI string) error {
	refs := b.pending[schemeURI]
	b.pending[schemeURI] = nil
	return b.flush(ctx, schemeURI, refs)
}
