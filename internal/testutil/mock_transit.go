// Package testutil provides testing utilities for the transit cache.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/transit-cache/pkg/transit"
)

// Collection paths served by MockTransit.
const (
	BikesPath   = "/v1/bikes"
	SubwaysPath = "/v1/subways"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockTransit is a configurable mock transit API server for testing.
//
// It serves bike and subway collections at BikesPath and SubwaysPath
// (paged with ?page=N and the X-Pages header) and single stations at
// {path}/{id}. Responses for exact paths can be overridden.
type MockTransit struct {
	server *httptest.Server

	mu        sync.RWMutex
	handlers  map[string]func(w http.ResponseWriter, r *http.Request)
	bikes     map[string]transit.BikeStation
	subways   map[string]transit.SubwayStation
	pageSize  int
	requests  map[string]int
	lastAgent string
}

// NewMockTransit creates a new mock transit API server.
func NewMockTransit() *MockTransit {
	mock := &MockTransit{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
		bikes:    make(map[string]transit.BikeStation),
		subways:  make(map[string]transit.SubwayStation),
		pageSize: 50,
		requests: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requests[r.URL.Path]++
		mock.lastAgent = r.Header.Get("User-Agent")
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}
		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockTransit) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockTransit) Close() {
	m.server.Close()
}

// Reset clears request counters and overrides, keeping the station data.
func (m *MockTransit) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = make(map[string]int)
	m.handlers = make(map[string]func(w http.ResponseWriter, r *http.Request))
	m.lastAgent = ""
}

// SetPageSize sets how many stations each collection page holds.
func (m *MockTransit) SetPageSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > 0 {
		m.pageSize = n
	}
}

// AddBikes adds or replaces bike stations.
func (m *MockTransit) AddBikes(stations ...transit.BikeStation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range stations {
		m.bikes[s.ID] = s
	}
}

// AddSubways adds or replaces subway stations.
func (m *MockTransit) AddSubways(stations ...transit.SubwayStation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range stations {
		m.subways[s.ID] = s
	}
}

// SetHandler sets a custom handler for a specific path.
func (m *MockTransit) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockTransit) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// RequestCount returns how many requests hit path.
func (m *MockTransit) RequestCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requests[path]
}

// TotalRequests returns the number of requests made to the server.
func (m *MockTransit) TotalRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, n := range m.requests {
		total += n
	}
	return total
}

// LastUserAgent returns the User-Agent of the most recent request.
func (m *MockTransit) LastUserAgent() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastAgent
}

func (m *MockTransit) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	m.mu.RLock()
	defer m.mu.RUnlock()

	switch {
	case r.URL.Path == BikesPath:
		writePage(m, w, r, sortedValues(m.bikes))
	case r.URL.Path == SubwaysPath:
		writePage(m, w, r, sortedValues(m.subways))
	case strings.HasPrefix(r.URL.Path, BikesPath+"/"):
		writeOne(w, m.bikes, strings.TrimPrefix(r.URL.Path, BikesPath+"/"))
	case strings.HasPrefix(r.URL.Path, SubwaysPath+"/"):
		writeOne(w, m.subways, strings.TrimPrefix(r.URL.Path, SubwaysPath+"/"))
	default:
		writeError(w, http.StatusNotFound, "unknown endpoint")
	}
}

func writePage[T any](m *MockTransit, w http.ResponseWriter, r *http.Request, all []T) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid page")
			return
		}
		page = n
	}

	totalPages := max(1, (len(all)+m.pageSize-1)/m.pageSize)
	if page > totalPages {
		writeError(w, http.StatusNotFound, "page out of range")
		return
	}

	lo := (page - 1) * m.pageSize
	hi := min(lo+m.pageSize, len(all))
	w.Header().Set("X-Pages", strconv.Itoa(totalPages))
	json.NewEncoder(w).Encode(all[lo:hi])
}

func writeOne[T any](w http.ResponseWriter, stations map[string]T, id string) {
	s, ok := stations[id]
	if !ok {
		writeError(w, http.StatusNotFound, "station not found")
		return
	}
	json.NewEncoder(w).Encode(s)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sortedValues[T any](stations map[string]T) []T {
	ids := make([]string, 0, len(stations))
	for id := range stations {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, stations[id])
	}
	return out
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8", "Retry-After": "1"},
	}
}
