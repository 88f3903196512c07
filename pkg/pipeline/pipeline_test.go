package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gbv/typesense-suggest-backend/pkg/config"
	"github.com/gbv/typesense-suggest-backend/pkg/db"
	"github.com/gbv/typesense-suggest-backend/pkg/download"
	"github.com/gbv/typesense-suggest-backend/pkg/enrich"
	"github.com/gbv/typesense-suggest-backend/pkg/jskos"
)

type fakeStore struct {
	mu       sync.Mutex
	existing map[string]bool
	created  []string
	imported map[string][]*enrich.Document
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		existing: make(map[string]bool),
		imported: make(map[string][]*enrich.Document),
	}
}

func (s *fakeStore) Exists(_ context.Context, collection string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.existing[collection], nil
}

func (s *fakeStore) Create(_ context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, collection)
	s.existing[collection] = true
	return nil
}

func (s *fakeStore) Import(_ context.Context, collection string, docs []*enrich.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.imported[collection] = append(s.imported[collection], docs...)
	return nil
}

const (
	bkURI      = "http://bartoc.org/en/node/18785"
	foreignURI = "http://example.org/foreign-voc"
)

// newBackendServer fakes the scheme registry, the mapping registry, the dump
// hosting, and the foreign vocabulary's concept gateway in one server.
func newBackendServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/voc", func(w http.ResponseWriter, _ *http.Request) {
		schemes := []*jskos.Scheme{
			{URI: bkURI, Notation: []string{"BK"}},
			{URI: foreignURI, Notation: []string{"F"}, API: []jskos.API{
				{Type: jskos.APITypeJSKOS, URL: server.URL + "/gateway"},
			}},
		}
		json.NewEncoder(w).Encode(schemes)
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, req *http.Request) {
		http.NotFound(w, req)
	})
	mux.HandleFunc("/concepts.ndjson", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"uri":"http://example.org/c1","notation":["1.0"],"prefLabel":{"en":"Animals"},"inScheme":[{"uri":"`+bkURI+`"}]}`)
		fmt.Fprintln(w, `not json`)
		fmt.Fprintln(w, `{"uri":5}`)
		fmt.Fprintln(w, `{"uri":"http://example.org/c2","notation":["2.0"],"prefLabel":{"en":"Plants"},"inScheme":[{"uri":"`+bkURI+`"}]}`)
	})
	mux.HandleFunc("/mappings", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"uri":"http://example.org/mapping/1",`+
			`"type":["http://www.w3.org/2004/02/skos/core#exactMatch"],`+
			`"from":{"memberSet":[{"uri":"http://example.org/c1"}]},`+
			`"fromScheme":{"uri":"`+bkURI+`"},`+
			`"to":{"memberSet":[{"uri":"http://example.org/f1"}]},`+
			`"toScheme":{"uri":"`+foreignURI+`"}}`)
	})
	mux.HandleFunc("/gateway/data", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode([]jskos.Concept{
			{URI: "http://example.org/f1", PrefLabel: map[string]string{"en": "Fauna"}},
		})
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	require.NoError(t, db.InitDB(conn))
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPipelineRun(t *testing.T) {
	server := newBackendServer(t)
	store := newFakeStore()
	conn := setupTestDB(t)

	p := &Pipeline{
		Config: &config.Config{
			SchemeRegistry:    server.URL,
			MappingRegistries: []string{server.URL},
			Cache:             t.TempDir(),
		},
		Downloader: download.New(),
		Store:      store,
		DB:         conn,
	}

	result, err := p.Run(context.Background(), bkURI, server.URL+"/concepts.ndjson")
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, bkURI, result.Scheme.URI)
	assert.Equal(t, 2, result.Concepts)
	assert.Equal(t, 2, result.Skipped,
		"invalid JSON and wrong-shape lines both count as skipped")
	assert.Equal(t, 2, result.Documents)
	assert.Equal(t, 1, result.Stats.Total)
	assert.Equal(t, 1, result.Stats.Loaded)
	assert.Zero(t, result.Stats.Failed)
	assert.Zero(t, result.Stats.Incompatible)

	assert.Equal(t, []string{"BK-suggestions"}, store.created)
	docs := store.imported["BK-suggestions"]
	require.Len(t, docs, 2)

	byID := map[string]*enrich.Document{}
	for _, doc := range docs {
		byID[doc.ID] = doc
	}
	animals := byID["http://example.org/c1"]
	require.NotNil(t, animals)
	assert.Equal(t, []string{"Fauna"}, animals.MappingLabelsExactClose)
	assert.Contains(t, animals.Identifier, "1.0")

	plants := byID["http://example.org/c2"]
	require.NotNil(t, plants)
	assert.Empty(t, plants.MappingLabelsExactClose)

	// The run registers the scheme for the query server.
	schemes, err := db.ListSchemes(conn)
	require.NoError(t, err)
	require.Len(t, schemes, 1)
	assert.Equal(t, bkURI, schemes[0].URI)

	// The resolved label lands in the cache.
	label, found, err := db.GetLabel(conn, "http://example.org/f1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Fauna", label)
}

func TestPipelineRunCachedLabels(t *testing.T) {
	server := newBackendServer(t)
	store := newFakeStore()
	conn := setupTestDB(t)
	require.NoError(t, db.UpsertLabel(conn, "http://example.org/f1", "Tiere"))

	p := &Pipeline{
		Config: &config.Config{
			SchemeRegistry:    server.URL,
			MappingRegistries: []string{server.URL},
			Cache:             t.TempDir(),
		},
		Downloader: download.New(),
		Store:      store,
		DB:         conn,
	}

	result, err := p.Run(context.Background(), bkURI, server.URL+"/concepts.ndjson")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Stats.Cached)
	assert.Zero(t, result.Stats.Loaded)
}

func TestPipelineRunUnknownVocabulary(t *testing.T) {
	server := newBackendServer(t)
	p := &Pipeline{
		Config: &config.Config{
			SchemeRegistry:    server.URL,
			MappingRegistries: []string{server.URL},
			Cache:             t.TempDir(),
		},
		Downloader: download.New(),
		Store:      newFakeStore(),
		DB:         setupTestDB(t),
	}

	_, err := p.Run(context.Background(), "http://example.org/nope", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not known")
}

func TestGatewayDirectory(t *testing.T) {
	schemes := []*jskos.Scheme{
		{URI: foreignURI, API: []jskos.API{{Type: jskos.APITypeJSKOS, URL: "http://gateway.test/api"}}},
		{URI: "http://example.org/no-api"},
	}
	dir := newGatewayDirectory(schemes)

	gw := dir.lookup(foreignURI)
	require.NotNil(t, gw)
	assert.Same(t, gw, dir.lookup(foreignURI), "clients are cached per endpoint")

	assert.Nil(t, dir.lookup("http://example.org/no-api"), "scheme without a concept API")
	assert.Nil(t, dir.lookup("http://example.org/unknown"), "scheme not in the registry")
}
