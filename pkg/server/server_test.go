package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gbv/typesense-suggest-backend/pkg/enrich"
	"github.com/gbv/typesense-suggest-backend/pkg/jskos"
	"github.com/gbv/typesense-suggest-backend/pkg/typesense"
)

type fakeSearcher struct {
	collections map[string]bool
	result      *typesense.SearchResult
	existsCalls int
	searchCalls int
	lastOpts    typesense.SearchOptions
	lastFields  []string
}

func (f *fakeSearcher) Exists(_ context.Context, collection string) (bool, error) {
	f.existsCalls++
	return f.collections[collection], nil
}

func (f *fakeSearcher) Search(_ context.Context, _, _ string, fields []string, opts typesense.SearchOptions) (*typesense.SearchResult, error) {
	f.searchCalls++
	f.lastFields = fields
	f.lastOpts = opts
	if f.result == nil {
		return &typesense.SearchResult{}, nil
	}
	return f.result, nil
}

var bkScheme = &jskos.Scheme{
	URI:        "http://bartoc.org/en/node/18785",
	Identifier: []string{"http://uri.gbv.de/terminology/bk/"},
	Notation:   []string{"BK"},
}

func newTestServer(store Searcher) *Server {
	return New([]*jskos.Scheme{bkScheme}, store, nil)
}

func get(t *testing.T, handler http.Handler, target string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestSearchUnknownVocabulary(t *testing.T) {
	store := &fakeSearcher{}
	rec := get(t, newTestServer(store).Handler(), "/search?voc=http://example.org/unknown&search=x", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["message"], "Incompatible scheme")
	assert.Zero(t, store.existsCalls)
	assert.Zero(t, store.searchCalls)
}

func TestSearchEmptyQuery(t *testing.T) {
	store := &fakeSearcher{collections: map[string]bool{"BK-suggestions": true}}
	rec := get(t, newTestServer(store).Handler(), "/search?voc=http://bartoc.org/en/node/18785&search=", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
	assert.Zero(t, store.existsCalls, "empty query must not touch the index store")
	assert.Zero(t, store.searchCalls)
}

func TestSearchMissingCollection(t *testing.T) {
	store := &fakeSearcher{collections: map[string]bool{}}
	rec := get(t, newTestServer(store).Handler(), "/search?voc=http://bartoc.org/en/node/18785&search=x", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
	assert.Equal(t, 1, store.existsCalls)
	assert.Zero(t, store.searchCalls)
}

func TestSearchByIdentifierAlias(t *testing.T) {
	// The voc parameter may be any identifier of a registered scheme.
	store := &fakeSearcher{collections: map[string]bool{"BK-suggestions": true}}
	rec := get(t, newTestServer(store).Handler(), "/search?voc=http://uri.gbv.de/terminology/bk/&search=x", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, store.searchCalls)
}

func TestSearchTrimsConcepts(t *testing.T) {
	concept := `{
		"uri": "http://example.org/c1",
		"prefLabel": {"en": "Animals"},
		"ancestors": [{"uri": "http://example.org/root"}],
		"narrower": [{"uri": "http://example.org/c2"}],
		"broader": [{"uri": "http://example.org/b1", "prefLabel": {"en": "Things"}}],
		"inScheme": [{"uri": "http://bartoc.org/en/node/18785", "notation": ["BK"]}]
	}`
	store := &fakeSearcher{
		collections: map[string]bool{"BK-suggestions": true},
		result: &typesense.SearchResult{
			Found: 1,
			Hits: []typesense.Hit{{Document: enrich.Document{
				ID:      "http://example.org/c1",
				Concept: json.RawMessage(concept),
			}}},
		},
	}
	rec := get(t, newTestServer(store).Handler(), "/search?voc=http://bartoc.org/en/node/18785&search=animals", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var results []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	got := results[0]
	assert.NotContains(t, got, "ancestors")
	assert.NotContains(t, got, "narrower")
	broader := got["broader"].([]any)
	require.Len(t, broader, 1)
	assert.Equal(t, map[string]any{"uri": "http://example.org/b1"}, broader[0],
		"broader references collapse to bare URIs")
	inScheme := got["inScheme"].([]any)
	assert.Equal(t, map[string]any{"uri": "http://bartoc.org/en/node/18785"}, inScheme[0])
	assert.Equal(t, "Animals", got["prefLabel"].(map[string]any)["en"])
}

func TestSearchPaginationAndFields(t *testing.T) {
	store := &fakeSearcher{collections: map[string]bool{"BK-suggestions": true}}
	rec := get(t, newTestServer(store).Handler(),
		"/search?voc=http://bartoc.org/en/node/18785&search=x&limit=20&offset=40", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, store.lastOpts.PerPage)
	assert.Equal(t, 3, store.lastOpts.Page, "offset 40 at limit 20 is page 3")
	assert.Equal(t, []string{
		"identifier", "prefLabel", "altLabel",
		"mappingLabelsExactClose", "mappingLabelsNarrowBroad", "notes",
	}, store.lastFields, "generic mapping labels are not queried")
}

func TestCORSHeaders(t *testing.T) {
	store := &fakeSearcher{collections: map[string]bool{"BK-suggestions": true}}
	handler := newTestServer(store).Handler()

	rec := get(t, handler, "/search?voc=http://bartoc.org/en/node/18785&search=", map[string]string{
		"Origin": "https://coli-conc.gbv.de",
	})
	assert.Equal(t, "https://coli-conc.gbv.de", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "X-Total-Count, Link", rec.Header().Get("Access-Control-Expose-Headers"))
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	rec = get(t, handler, "/search?voc=http://bartoc.org/en/node/18785&search=", nil)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"),
		"fallback when the request has no origin")
}

func TestMetricsEndpoint(t *testing.T) {
	store := &fakeSearcher{collections: map[string]bool{"BK-suggestions": true}}
	handler := newTestServer(store).Handler()
	get(t, handler, "/search?voc=http://bartoc.org/en/node/18785&search=", nil)

	rec := get(t, handler, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "suggest_http_requests_total")
}
