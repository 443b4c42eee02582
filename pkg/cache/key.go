package cache

import (
	"fmt"
	"strings"
)

// RefreshKey identifies one refresh in the single-flight group. Callers that
// observed the same cache generation share the same refresh.
type RefreshKey struct {
	// Slug is the store slug the catalog belongs to.
	Slug string

	// Generation is the cache generation the caller observed.
	Generation uint64
}

// String generates a deterministic key.
// Format: catalog:<slug>:gen=<generation>
//
// Example:
//
//	catalog:ysg:gen=3
func (k RefreshKey) String() string {
	slug := strings.TrimSpace(k.Slug)
	if slug == "" {
		slug = "default"
	}
	return fmt.Sprintf("catalog:%s:gen=%d", slug, k.Generation)
}
