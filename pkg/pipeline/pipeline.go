// Package pipeline orchestrates one indexing run: ingest a vocabulary's
// concepts and mappings, resolve mapped-concept labels, and import the
// resulting search documents into the index backend.
package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/gbv/typesense-suggest-backend/pkg/config"
	"github.com/gbv/typesense-suggest-backend/pkg/db"
	"github.com/gbv/typesense-suggest-backend/pkg/download"
	"github.com/gbv/typesense-suggest-backend/pkg/enrich"
	"github.com/gbv/typesense-suggest-backend/pkg/jskos"
	"github.com/gbv/typesense-suggest-backend/pkg/ndjson"
	"github.com/gbv/typesense-suggest-backend/pkg/registry"
	"github.com/gbv/typesense-suggest-backend/pkg/typesense"
)

// importChunkSize caps how many documents go into one import call.
const importChunkSize = 5000

// schemeListLimit bounds how many schemes are fetched from the scheme
// registry.
const schemeListLimit = 3000

// CollectionName returns the index collection for a vocabulary notation.
func CollectionName(notation string) string {
	return notation + "-suggestions"
}

// Store is the subset of index-store operations the pipeline uses.
// typesense.Client satisfies this.
type Store interface {
	Exists(ctx context.Context, collection string) (bool, error)
	Create(ctx context.Context, collection string) error
	Import(ctx context.Context, collection string, docs []*enrich.Document) error
}

var _ Store = (*typesense.Client)(nil)

// Pipeline holds the collaborators of an indexing run. All run-scoped state
// lives in Run; a Pipeline can be reused for several vocabularies.
type Pipeline struct {
	Config     *config.Config
	Log        *slog.Logger
	Downloader *download.Client
	Store      Store
	DB         *sql.DB
}

// Result summarizes a finished run.
type Result struct {
	RunID    string
	Scheme   *jskos.Scheme
	Concepts int
	// Skipped counts concept dump lines dropped as malformed, whether
	// invalid JSON or not a concept shape.
	Skipped   int
	Documents int
	Stats     enrich.Stats
}

// Run executes the full pipeline for the vocabulary with the given URI.
// downloadURL overrides the configured concept dump URL; when both are
// empty the run fails before touching the network.
func (p *Pipeline) Run(ctx context.Context, vocURI, downloadURL string) (*Result, error) {
	log := p.Log
	if log == nil {
		log = slog.Default()
	}
	runID := uuid.NewString()
	log = log.With("run", runID, "voc", vocURI)

	// Initialize all registries.
	schemeRegistry := registry.New(p.Config.SchemeRegistry)
	mappingRegistries := make([]*registry.Client, len(p.Config.MappingRegistries))
	for i, base := range p.Config.MappingRegistries {
		mappingRegistries[i] = registry.New(base)
	}
	log.Info("initializing registries", "count", len(mappingRegistries)+1)
	pool := NewWorkerPool(len(mappingRegistries)+1, len(mappingRegistries)+1)
	pool.Start(ctx)
	for _, r := range append([]*registry.Client{schemeRegistry}, mappingRegistries...) {
		r := r
		if err := pool.Submit(func(ctx context.Context) error { return r.Init(ctx) }); err != nil {
			return nil, err
		}
	}
	if err := pool.Close(); err != nil {
		return nil, fmt.Errorf("initialize registries: %w", err)
	}

	schemes, err := schemeRegistry.GetSchemes(ctx, schemeListLimit)
	if err != nil {
		return nil, err
	}
	log.Info("loaded compatible vocabularies", "count", len(schemes))

	var scheme *jskos.Scheme
	for _, s := range schemes {
		if jskos.SchemeMatchesURI(s, vocURI) {
			scheme = s
			break
		}
	}
	if scheme == nil {
		return nil, fmt.Errorf("vocabulary %s not known to scheme registry", vocURI)
	}
	notation := jskos.Notation(scheme)
	if notation == "" {
		return nil, fmt.Errorf("vocabulary %s has no notation", vocURI)
	}
	log = log.With("notation", notation)

	// Download concept data, if necessary.
	conceptsFile := filepath.Join(p.Config.Cache, notation+"-concepts.ndjson")
	if downloadURL == "" {
		downloadURL = p.Config.Downloads[notation]
	}
	if downloadURL == "" {
		return nil, fmt.Errorf("no download URL known for %s", notation)
	}
	downloaded, err := p.Downloader.EnsureFile(ctx, downloadURL, conceptsFile)
	if err != nil {
		return nil, fmt.Errorf("download concepts: %w", err)
	}
	if downloaded {
		log.Info("downloaded concept data", "file", conceptsFile, "url", downloadURL)
	} else {
		log.Info("using already downloaded concept data", "file", conceptsFile)
	}

	// Download mapping data concurrently.
	mappingFiles := make([]string, len(mappingRegistries))
	pool = NewWorkerPool(len(mappingRegistries), len(mappingRegistries))
	pool.Start(ctx)
	for i, r := range mappingRegistries {
		i, r := i, r
		mappingFiles[i] = filepath.Join(p.Config.Cache,
			fmt.Sprintf("%s-mappings-%d.ndjson", notation, i))
		if err := pool.Submit(func(ctx context.Context) error {
			url := r.MappingsDownloadURL(scheme.URI)
			downloaded, err := p.Downloader.EnsureFile(ctx, url, mappingFiles[i])
			if err != nil {
				return fmt.Errorf("download mappings from %s: %w", r.Base(), err)
			}
			if downloaded {
				log.Info("downloaded mapping data", "file", mappingFiles[i], "registry", r.Base())
			} else {
				log.Info("using already downloaded mapping data", "file", mappingFiles[i])
			}
			return nil
		}); err != nil {
			return nil, err
		}
	}
	if err := pool.Close(); err != nil {
		return nil, err
	}

	// Load concept data into memory. Lines that are valid JSON but not a
	// concept shape count as skipped, same as invalid JSON.
	index := enrich.NewConceptIndex()
	malformed := 0
	stats, err := ndjson.Each(conceptsFile, func(record json.RawMessage) error {
		var concept jskos.Concept
		if err := json.Unmarshal(record, &concept); err != nil {
			malformed++
			return nil
		}
		concept.Raw = record
		index.Add(&concept)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load concepts: %w", err)
	}
	skipped := stats.Skipped + malformed
	log.Info("concept data loaded", "concepts", index.Len(), "skipped", skipped)

	// Attach mappings to concept data, one pass per registry, in parallel.
	// Bucket appends are commutative, so cross-registry order is free.
	pool = NewWorkerPool(len(mappingFiles), len(mappingFiles))
	pool.Start(ctx)
	for _, file := range mappingFiles {
		file := file
		if err := pool.Submit(func(ctx context.Context) error {
			count := 0
			malformed := 0
			stats, err := ndjson.Each(file, func(record json.RawMessage) error {
				var mapping jskos.Mapping
				if err := json.Unmarshal(record, &mapping); err != nil {
					malformed++
					return nil
				}
				count++
				enrich.Attach(index, scheme, &mapping)
				return nil
			})
			if err != nil {
				return fmt.Errorf("load mappings from %s: %w", file, err)
			}
			log.Info("mapping data loaded", "file", file, "mappings", count,
				"skipped", stats.Skipped+malformed)
			return nil
		}); err != nil {
			return nil, err
		}
	}
	if err := pool.Close(); err != nil {
		return nil, err
	}

	// Register the scheme for the query server.
	if err := db.RegisterScheme(p.DB, notation, scheme); err != nil {
		return nil, err
	}

	// Resolve labels for attached mapping concepts.
	log.Info("loading concept data for mappings")
	resolver := enrich.NewResolver(p.DB, newGatewayDirectory(schemes).lookup)
	resolver.OnProgress = func(s enrich.Stats) {
		log.Info("resolution progress", "total", s.Total, "loaded", s.Loaded,
			"cached", s.Cached, "incompatible", s.Incompatible, "failed", s.Failed)
	}
	resolution, err := resolver.Resolve(ctx, index)
	if err != nil {
		return nil, fmt.Errorf("resolve labels: %w", err)
	}
	log.Info("resolution done", "loaded", resolution.Loaded, "cached", resolution.Cached,
		"failed", resolution.Failed, "incompatible", resolution.Incompatible)
	if len(resolution.IncompatibleSchemes) > 0 {
		log.Warn("incompatible vocabularies", "count", len(resolution.IncompatibleSchemes),
			"schemes", resolution.IncompatibleSchemes)
	}

	// Prepare the index backend.
	collection := CollectionName(notation)
	exists, err := p.Store.Exists(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := p.Store.Create(ctx, collection); err != nil {
			return nil, fmt.Errorf("create collection %s: %w", collection, err)
		}
	}

	// Import in chunks.
	log.Info("importing documents", "collection", collection)
	imported := 0
	chunk := make([]*enrich.Document, 0, importChunkSize)
	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		if err := p.Store.Import(ctx, collection, chunk); err != nil {
			return fmt.Errorf("import into %s: %w", collection, err)
		}
		imported += len(chunk)
		log.Info("documents imported", "count", imported)
		chunk = chunk[:0]
		return nil
	}
	for _, entry := range index.Entries() {
		doc := enrich.BuildDocument(entry)
		if doc == nil {
			continue
		}
		chunk = append(chunk, doc)
		if len(chunk) == importChunkSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	log.Info("import complete", "documents", imported)

	return &Result{
		RunID:     runID,
		Scheme:    scheme,
		Concepts:  index.Len(),
		Skipped:   skipped,
		Documents: imported,
		Stats:     resolution,
	}, nil
}

// gatewayDirectory maps foreign scheme URIs to gateway clients, caching one
// client per concept API endpoint.
type gatewayDirectory struct {
	schemes []*jskos.Scheme
	clients map[string]*registry.Client
}

func newGatewayDirectory(schemes []*jskos.Scheme) *gatewayDirectory {
	return &gatewayDirectory{schemes: schemes, clients: make(map[string]*registry.Client)}
}

func (d *gatewayDirectory) lookup(schemeURI string) enrich.Gateway {
	for _, s := range d.schemes {
		if !jskos.SchemeMatchesURI(s, schemeURI) {
			continue
		}
		api := s.ConceptAPI()
		if api == "" {
			return nil
		}
		client, ok := d.clients[api]
		if !ok {
			client = registry.New(api)
			d.clients[api] = client
		}
		return client
	}
	return nil
}
