// Package download fetches remote vocabulary dumps to local files,
// skipping downloads when the file is already present.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Client downloads files over HTTP.
type Client struct {
	HTTP *http.Client
}

// New returns a download client with a long timeout suitable for large
// vocabulary dumps.
func New() *Client {
	return &Client{HTTP: &http.Client{Timeout: 30 * time.Minute}}
}

// EnsureFile checks whether path exists. If not, it downloads url to path.
// The boolean reports whether a download happened.
func (c *Client) EnsureFile(ctx context.Context, url, path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		// File exists
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	if err := c.download(ctx, url, path); err != nil {
		return false, err
	}
	return true, nil
}

// download streams url into path via a temporary file so an interrupted
// download never leaves a partial file that a later run would skip.
func (c *Client) download(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "typesense-suggest-backend")

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s failed: %s", url, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
