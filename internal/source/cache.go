package source

import (
	"os"
	"path/filepath"
	"strings"
)

// DocumentCache stores fetched filing documents on disk keyed by filing
// identifier, so repeat fetches never hit the registry.
type DocumentCache struct {
	dir string
}

// NewDocumentCache creates a cache rooted at dir. The directory is
// created lazily on first write.
func NewDocumentCache(dir string) *DocumentCache {
	return &DocumentCache{dir: dir}
}

// Get returns the cached document for a filing id, if present.
func (c *DocumentCache) Get(filingID string) ([]byte, bool) {
	if c == nil || c.dir == "" {
		return nil, false
	}
	data, err := os.ReadFile(c.path(filingID))
	if err != nil {
		return nil, false
	}
	return data, true
}

// Put writes a document to the cache. Cache write failures are not
// fatal; the caller already holds the document.
func (c *DocumentCache) Put(filingID string, data []byte) error {
	if c == nil || c.dir == "" {
		return nil
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(c.path(filingID), data, 0644)
}

func (c *DocumentCache) path(filingID string) string {
	return filepath.Join(c.dir, sanitizeKey(filingID)+".doc")
}

// sanitizeKey makes a filing id safe to use as a file name.
func sanitizeKey(id string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_")
	return r.Replace(id)
}
