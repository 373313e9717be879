// Package catalog loads the static reference list of addressable country
// names. The catalog is independent of visited state: a missing or malformed
// catalog degrades the selection input to empty, it never blocks sync.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/example/visited-atlas/internal/types"
)

// Source fetches the raw catalog document.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// FileSource reads the catalog from a local file.
type FileSource string

// Fetch implements Source.
func (f FileSource) Fetch(context.Context) ([]byte, error) {
	return os.ReadFile(string(f))
}

// HTTPSource fetches the catalog from the server's catalog endpoint.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// Fetch implements Source.
func (h HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog fetch returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Load fetches and parses the catalog into a finite ordered sequence of
// names. Both newline-delimited text and a JSON string array are accepted.
func Load(ctx context.Context, src Source) ([]types.CountryName, error) {
	raw, err := src.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	return Parse(raw)
}

// Parse decodes the raw catalog document. Blank lines are dropped; entry
// order is preserved as supplied.
func Parse(raw []byte) ([]types.CountryName, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var entries []string
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("decode catalog json: %w", err)
		}
		names := make([]types.CountryName, 0, len(entries))
		for _, entry := range entries {
			if entry = strings.TrimSpace(entry); entry != "" {
				names = append(names, types.CountryName(entry))
			}
		}
		return names, nil
	}

	var names []types.CountryName
	for _, line := range strings.Split(string(trimmed), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, types.CountryName(line))
		}
	}
	return names, nil
}
