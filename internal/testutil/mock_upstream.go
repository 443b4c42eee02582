// Package testutil provides a mock catalog API for tests.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock upstream response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockUpstream is a configurable mock of the public catalog API.
type MockUpstream struct {
	server    *httptest.Server
	mu        sync.Mutex
	sequences map[string][]MockResponse
	counts    map[string]int

	LastUserAgent string
}

// NewMockUpstream starts a new mock server. Unknown paths answer 404.
func NewMockUpstream() *MockUpstream {
	mock := &MockUpstream{
		sequences: make(map[string][]MockResponse),
		counts:    make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.serve))
	return mock
}

func (m *MockUpstream) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.counts[r.URL.Path]++
	m.LastUserAgent = r.Header.Get("User-Agent")

	seq, ok := m.sequences[r.URL.Path]
	var resp MockResponse
	if ok && len(seq) > 0 {
		resp = seq[0]
		// The last response repeats forever.
		if len(seq) > 1 {
			m.sequences[r.URL.Path] = seq[1:]
		}
	}
	m.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		_, _ = w.Write([]byte(resp.Body))
	}
}

// URL returns the mock server URL.
func (m *MockUpstream) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockUpstream) Close() {
	m.server.Close()
}

// SetResponse configures a response for a path.
func (m *MockUpstream) SetResponse(path string, resp MockResponse) {
	m.SetSequence(path, resp)
}

// SetSequence configures responses served in order for a path; the last one
// repeats once the others are used up.
func (m *MockUpstream) SetSequence(path string, resps ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequences[path] = append([]MockResponse(nil), resps...)
}

// Count returns how many requests hit path.
func (m *MockUpstream) Count(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[path]
}

// TotalCount returns the number of requests across all paths.
func (m *MockUpstream) TotalCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.counts {
		total += n
	}
	return total
}

// Reset clears all request counters.
func (m *MockUpstream) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts = make(map[string]int)
	m.LastUserAgent = ""
}

// Upstream resource paths for a store slug.
func StorePath(slug string) string      { return fmt.Sprintf("/stores/public/slug/%s", slug) }
func CategoriesPath(slug string) string { return fmt.Sprintf("/categories/store/slug/%s", slug) }
func ProductsPath(slug string) string   { return fmt.Sprintf("/products/public-store/slug/%s", slug) }

// SetCatalog serves the given JSON bodies for all three resources of slug.
func (m *MockUpstream) SetCatalog(slug, store, categories, products string) {
	m.SetResponse(StorePath(slug), NewJSONResponse(store))
	m.SetResponse(CategoriesPath(slug), NewJSONResponse(categories))
	m.SetResponse(ProductsPath(slug), NewJSONResponse(products))
}

// NewJSONResponse creates a 200 OK JSON response.
func NewJSONResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message": "Too many requests"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
			"Retry-After":  "1",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"message": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// Sample catalog bodies shaped like the production API.
const (
	SampleStore = `{
		"_id": "s1",
		"name": "YSG Store",
		"description": "Fresh food daily",
		"address": "1 Main St",
		"phone": "+1 555 0100"
	}`

	SampleCategories = `[
		{"_id": "c1", "name": "Drinks"},
		{"_id": "c2", "name": "Food"}
	]`

	SampleProducts = `[
		{"_id": "p1", "title": "Tea", "price": 3, "description": "Green tea", "image": "https://img.example/tea.jpg", "category": {"_id": "c1", "name": "Drinks"}},
		{"_id": "p2", "title": "Burger", "price": "9.50", "category": {"_id": "c2", "name": "Food"}},
		{"_id": "p3", "title": "Coffee", "price": 4, "isAvailable": false, "category": "c1"},
		{"_id": "p4", "title": "Mystery Box"}
	]`
)
