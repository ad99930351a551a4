// Package testutil provides testing utilities for the football collector.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"
)

// KeyHeader is the header API-Football reads the key from.
const KeyHeader = "x-apisports-key"

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// Request is one request received by the mock server.
type Request struct {
	Path  string
	Query url.Values
	Key   string
}

// MockAPIFootball is a configurable mock API-Football server for testing.
type MockAPIFootball struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	requests []Request
}

// NewMockAPIFootball creates a new mock API-Football server.
func NewMockAPIFootball() *MockAPIFootball {
	mock := &MockAPIFootball{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requests = append(mock.requests, Request{
			Path:  r.URL.Path,
			Query: r.URL.Query(),
			Key:   r.Header.Get(KeyHeader),
		})
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		// Default: empty successful envelope
		writeResponse(w, NewEnvelopeResponse(strings.TrimPrefix(r.URL.Path, "/"), "[]"))
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAPIFootball) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPIFootball) Close() {
	m.server.Close()
}

// Reset clears the request log.
func (m *MockAPIFootball) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPIFootball) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockAPIFootball) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, resp)
	})
}

// SetSequence answers successive requests to path with resps in order. The
// last response repeats once the sequence is used up.
func (m *MockAPIFootball) SetSequence(path string, resps ...MockResponse) {
	var (
		mu sync.Mutex
		n  int
	)
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		i := n
		if i >= len(resps) {
			i = len(resps) - 1
		}
		n++
		mu.Unlock()
		writeResponse(w, resps[i])
	})
}

// SetKeyResponses answers requests to path depending on the key used. Keys
// without an entry receive fallback.
func (m *MockAPIFootball) SetKeyResponses(path string, byKey map[string]MockResponse, fallback MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		resp, ok := byKey[r.Header.Get(KeyHeader)]
		if !ok {
			resp = fallback
		}
		writeResponse(w, resp)
	})
}

// Requests returns a copy of the request log.
func (m *MockAPIFootball) Requests() []Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Request(nil), m.requests...)
}

// RequestCount returns the number of requests made to the server.
func (m *MockAPIFootball) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// RequestCountFor returns the number of requests made to path.
func (m *MockAPIFootball) RequestCountFor(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.requests {
		if r.Path == path {
			n++
		}
	}
	return n
}

// KeysUsed returns the key of every request made to path, in order.
func (m *MockAPIFootball) KeysUsed(path string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for _, r := range m.requests {
		if r.Path == path {
			keys = append(keys, r.Key)
		}
	}
	return keys
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}

	w.Header().Set("Content-Type", "application/json")
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// EnvelopeBody renders a successful single-page envelope around response,
// which must be valid JSON.
func EnvelopeBody(get, response string) string {
	return PagedBody(get, response, 1, 1)
}

// PagedBody renders a successful envelope for one page of a paginated endpoint.
func PagedBody(get, response string, current, total int) string {
	results := 0
	var items []json.RawMessage
	if json.Unmarshal([]byte(response), &items) == nil {
		results = len(items)
	} else {
		results = 1
	}
	return fmt.Sprintf(`{"get":%q,"parameters":{},"errors":[],"results":%d,"paging":{"current":%d,"total":%d},"response":%s}`,
		get, results, current, total, response)
}

// ErrorsBody renders an envelope whose errors member holds msgs.
func ErrorsBody(get string, msgs map[string]string) string {
	raw, _ := json.Marshal(msgs)
	return fmt.Sprintf(`{"get":%q,"parameters":{},"errors":%s,"results":0,"paging":{"current":1,"total":1},"response":[]}`,
		get, raw)
}

// NewEnvelopeResponse creates a 200 OK response carrying response.
func NewEnvelopeResponse(get, response string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       EnvelopeBody(get, response),
		Headers: map[string]string{
			"x-ratelimit-requests-remaining": "7400",
		},
	}
}

// NewForbiddenResponse creates a 403 Forbidden response.
func NewForbiddenResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusForbidden,
		Body:       `{"message":"You are not subscribed to this API."}`,
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message":"Too many requests"}`,
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"message":"Internal server error"}`,
	}
}

// NewSuspendedResponse creates a 200 OK response whose body reports a
// suspended account.
func NewSuspendedResponse(get string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       ErrorsBody(get, map[string]string{"access": "Your account is suspended, check on https://dashboard.api-football.com."}),
	}
}

// NewPayloadRateLimitResponse creates a 200 OK response whose body reports a
// rate limit.
func NewPayloadRateLimitResponse(get string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       ErrorsBody(get, map[string]string{"rateLimit": "Too many requests. Your rate limit is 10 requests per minute."}),
	}
}
