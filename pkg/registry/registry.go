// Package registry is a client for JSKOS registry APIs: scheme discovery,
// batched concept lookup, and mapping dump URLs.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gbv/typesense-suggest-backend/pkg/jskos"
)

// Client talks to one JSKOS registry endpoint.
type Client struct {
	base string
	http *http.Client

	// mappings is the mapping endpoint discovered by Init; defaults to
	// base + "/mappings".
	mappings string
}

// New returns a client for the registry at base (no trailing slash).
func New(base string) *Client {
	return &Client{
		base: strings.TrimSuffix(base, "/"),
		http: &http.Client{Timeout: 60 * time.Second},
	}
}

// NewWithHTTPClient returns a client using the given HTTP client, mainly for
// tests.
func NewWithHTTPClient(base string, hc *http.Client) *Client {
	c := New(base)
	c.http = hc
	return c
}

// Base returns the registry's base URL.
func (c *Client) Base() string { return c.base }

// Init contacts the registry's status endpoint and discovers its mapping
// endpoint. Registries without a status endpoint fall back to default
// endpoint locations.
func (c *Client) Init(ctx context.Context) error {
	c.mappings = c.base + "/mappings"
	var status struct {
		Mappings string `json:"mappings"`
	}
	if err := c.getJSON(ctx, c.base+"/status", &status); err != nil {
		// Status is optional; keep defaults when it is missing.
		return nil
	}
	if status.Mappings != "" {
		c.mappings = status.Mappings
	}
	return nil
}

// GetSchemes lists the registry's concept schemes, up to limit.
func (c *Client) GetSchemes(ctx context.Context, limit int) ([]*jskos.Scheme, error) {
	u := c.base + "/voc?limit=" + strconv.Itoa(limit)
	var schemes []*jskos.Scheme
	if err := c.getJSON(ctx, u, &schemes); err != nil {
		return nil, fmt.Errorf("get schemes: %w", err)
	}
	return schemes, nil
}

// GetConcepts resolves a batch of concept URIs against the registry's data
// endpoint. The whole call fails or succeeds as one unit; callers must not
// assume partial results on error.
func (c *Client) GetConcepts(ctx context.Context, uris []string) ([]jskos.Concept, error) {
	if len(uris) == 0 {
		return nil, nil
	}
	u := c.base + "/data?uri=" + url.QueryEscape(strings.Join(uris, "|"))
	var concepts []jskos.Concept
	if err := c.getJSON(ctx, u, &concepts); err != nil {
		return nil, fmt.Errorf("get concepts: %w", err)
	}
	return concepts, nil
}

// MappingsDownloadURL builds the URL of the registry's full NDJSON mapping
// dump for mappings from or to the given scheme.
func (c *Client) MappingsDownloadURL(schemeURI string) string {
	endpoint := c.mappings
	if endpoint == "" {
		endpoint = c.base + "/mappings"
	}
	return endpoint + "?properties=annotations&toScheme=" + url.QueryEscape(schemeURI) +
		"&direction=both&download=ndjson"
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("GET %s failed: %s", u, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}
