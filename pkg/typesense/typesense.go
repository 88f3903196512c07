// Package typesense is a minimal REST client for the Typesense search
// backend, covering collection management, upsert imports, and weighted
// multi-field search.
package typesense

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gbv/typesense-suggest-backend/pkg/enrich"
)

// Field describes one weighted search field of a suggestion collection.
type Field struct {
	Name   string
	Type   string
	Infix  bool
	Typos  int
	Weight int
}

// Fields is the fixed schema of suggestion collections. Weights rank exact
// identifiers highest, own labels next, mapped labels by relation strength,
// and notes in between.
var Fields = []Field{
	{Name: "identifier", Type: "string[]", Infix: false, Typos: 0, Weight: 127},
	{Name: "prefLabel", Type: "string[]", Infix: true, Typos: 2, Weight: 120},
	{Name: "altLabel", Type: "string[]", Infix: true, Typos: 1, Weight: 80},
	{Name: "mappingLabelsExactClose", Type: "string[]", Infix: false, Typos: 0, Weight: 80},
	{Name: "mappingLabelsNarrowBroad", Type: "string[]", Infix: false, Typos: 0, Weight: 60},
	{Name: "mappingLabelsOther", Type: "string[]", Infix: false, Typos: 0, Weight: 10},
	{Name: "notes", Type: "string[]", Infix: false, Typos: 0, Weight: 50},
}

// Client talks to one Typesense server.
type Client struct {
	url    string
	apiKey string
	http   *http.Client
}

// Config contains connection details for a Typesense server.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// New creates a Typesense client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		url:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey: cfg.APIKey,
		http:   &http.Client{Timeout: timeout},
	}
}

// Exists reports whether the collection exists.
func (c *Client) Exists(ctx context.Context, collection string) (bool, error) {
	var collections []struct {
		Name string `json:"name"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/collections", nil, &collections); err != nil {
		return false, err
	}
	for _, col := range collections {
		if col.Name == collection {
			return true, nil
		}
	}
	return false, nil
}

// Create creates the collection with the suggestion field schema. Calling
// Create for an existing collection is an error; guard with Exists.
func (c *Client) Create(ctx context.Context, collection string) error {
	fields := make([]map[string]any, len(Fields))
	for i, f := range Fields {
		fields[i] = map[string]any{"name": f.Name, "type": f.Type, "infix": f.Infix}
	}
	body := map[string]any{"name": collection, "fields": fields}
	return c.doJSON(ctx, http.MethodPost, "/collections", body, nil)
}

// Delete drops the collection.
func (c *Client) Delete(ctx context.Context, collection string) error {
	return c.doJSON(ctx, http.MethodDelete, "/collections/"+collection, nil, nil)
}

// Import upserts documents into the collection. Documents are keyed by id,
// so re-importing is safe. Returns an error when any document is rejected.
func (c *Client) Import(ctx context.Context, collection string, docs []*enrich.Document) error {
	if len(docs) == 0 {
		return nil
	}
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	for _, doc := range docs {
		if err := encoder.Encode(doc); err != nil {
			return fmt.Errorf("encode document %s: %w", doc.ID, err)
		}
	}
	u := c.url + "/collections/" + collection + "/documents/import?action=upsert"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &buf)
	if err != nil {
		return err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "text/plain")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("import into %s failed: %s", collection, resp.Status)
	}
	// The response is one JSON result per imported line.
	failed := 0
	for _, line := range bytes.Split(bytes.TrimSpace(body), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var result struct {
			Success bool `json:"success"`
		}
		if err := json.Unmarshal(line, &result); err != nil || !result.Success {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("import into %s: %d of %d documents rejected", collection, failed, len(docs))
	}
	return nil
}

// SearchOptions tunes pagination of a search.
type SearchOptions struct {
	PerPage int
	Page    int
}

// Hit is one ranked search result.
type Hit struct {
	Document enrich.Document `json:"document"`
}

// SearchResult is the ranked outcome of one search call.
type SearchResult struct {
	Found int   `json:"found"`
	Hits  []Hit `json:"hits"`
}

// Search runs a weighted multi-field search over the collection. An empty
// fields slice searches all schema fields; otherwise only the named fields
// are queried, keeping their schema weights and typo settings.
func (c *Client) Search(ctx context.Context, collection, query string, fields []string, opts SearchOptions) (*SearchResult, error) {
	selected := Fields
	if len(fields) > 0 {
		selected = make([]Field, 0, len(fields))
		for _, f := range Fields {
			for _, name := range fields {
				if f.Name == name {
					selected = append(selected, f)
					break
				}
			}
		}
	}
	names := make([]string, len(selected))
	typos := make([]string, len(selected))
	weights := make([]string, len(selected))
	for i, f := range selected {
		names[i] = f.Name
		typos[i] = strconv.Itoa(f.Typos)
		weights[i] = strconv.Itoa(f.Weight)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("query_by", strings.Join(names, ","))
	params.Set("num_typos", strings.Join(typos, ","))
	params.Set("query_by_weights", strings.Join(weights, ","))
	params.Set("infix", "always")
	params.Set("exhaustive_search", "true")
	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = 100
	}
	params.Set("per_page", strconv.Itoa(perPage))
	if opts.Page > 0 {
		params.Set("page", strconv.Itoa(opts.Page))
	}

	var result SearchResult
	path := "/collections/" + collection + "/documents/search?" + params.Encode()
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-TYPESENSE-API-KEY", c.apiKey)
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url+path, reader)
	if err != nil {
		return err
	}
	c.setHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s failed: %s", method, path, resp.Status)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
