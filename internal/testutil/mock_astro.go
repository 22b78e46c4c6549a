// Package testutil provides a scripted Free Astrology API stand-in and
// chart fixtures for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockResponse defines one scripted upstream reply.
type MockResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// MockAstroAPI is a configurable mock upstream. Each path replays its
// scripted responses in order; the last one repeats once the script runs
// out. Unscripted paths answer with DefaultChartSVG.
type MockAstroAPI struct {
	server *httptest.Server

	mu      sync.Mutex
	scripts map[string][]MockResponse
	served  map[string]int

	// Tracking
	RequestCount int
	Keys         []string
	Bodies       [][]byte
}

// NewMockAstroAPI starts a mock upstream server.
func NewMockAstroAPI() *MockAstroAPI {
	mock := &MockAstroAPI{
		scripts: make(map[string][]MockResponse),
		served:  make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		mock.mu.Lock()
		mock.RequestCount++
		mock.Keys = append(mock.Keys, r.Header.Get("x-api-key"))
		mock.Bodies = append(mock.Bodies, body)
		resp := mock.next(r.URL.Path)
		mock.mu.Unlock()

		if resp.Delay > 0 {
			select {
			case <-time.After(resp.Delay):
			case <-r.Context().Done():
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	}))

	return mock
}

// next picks the response for path. Callers hold m.mu.
func (m *MockAstroAPI) next(path string) MockResponse {
	path = strings.TrimPrefix(path, "/")
	script, ok := m.scripts[path]
	n := m.served[path]
	m.served[path] = n + 1
	if !ok || len(script) == 0 {
		return NewDiagramResponse(DefaultChartSVG)
	}
	if n >= len(script) {
		return script[len(script)-1]
	}
	return script[n]
}

// URL returns the mock server URL.
func (m *MockAstroAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAstroAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters and rewinds every script.
func (m *MockAstroAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.Keys = nil
	m.Bodies = nil
	m.served = make(map[string]int)
}

// SetSequence scripts the responses for an endpoint, e.g.
// "horoscope-chart-svg-code" or "planets".
func (m *MockAstroAPI) SetSequence(endpoint string, resps ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[strings.TrimPrefix(endpoint, "/")] = resps
	delete(m.served, strings.TrimPrefix(endpoint, "/"))
}

// SetResponse makes endpoint always answer with resp.
func (m *MockAstroAPI) SetResponse(endpoint string, resp MockResponse) {
	m.SetSequence(endpoint, resp)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAstroAPI) GetRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RequestCount
}

// GetPathCount returns the number of requests made to one endpoint.
func (m *MockAstroAPI) GetPathCount(endpoint string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.served[strings.TrimPrefix(endpoint, "/")]
}

// ReceivedKeys returns the x-api-key header of every request in order.
func (m *MockAstroAPI) ReceivedKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Keys))
	copy(out, m.Keys)
	return out
}

// LastBody returns the body of the most recent request.
func (m *MockAstroAPI) LastBody() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Bodies) == 0 {
		return nil
	}
	return m.Bodies[len(m.Bodies)-1]
}

// NewDiagramResponse wraps svg as the upstream does: {"output": "<svg…>"}.
func NewDiagramResponse(svg string) MockResponse {
	out, _ := json.Marshal(map[string]string{"output": svg})
	return MockResponse{StatusCode: http.StatusOK, Body: string(out)}
}

// NewPositionsResponse wraps a raw JSON output value.
func NewPositionsResponse(output string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"statusCode":200,"output":%s}`, output),
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message":"Limit Exceeded"}`,
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error":"Internal server error"}`,
	}
}

// NewSlowResponse delays a successful diagram reply.
func NewSlowResponse(delay time.Duration) MockResponse {
	resp := NewDiagramResponse(DefaultChartSVG)
	resp.Delay = delay
	return resp
}
