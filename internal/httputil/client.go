package httputil

import (
	"bytes"
	"io"
	"net/http"
	"sync"
)

// Client abstracts the GET side of an HTTP client so snapshot-consuming
// tools can swap in canned responses under test.
type Client interface {
	Get(url string) (*http.Response, error)
}

// StandardClient wraps *http.Client to implement Client.
type StandardClient struct {
	*http.Client
}

// NewStandardClient wraps c, falling back to http.DefaultClient when nil.
func NewStandardClient(c *http.Client) *StandardClient {
	if c == nil {
		c = http.DefaultClient
	}
	return &StandardClient{Client: c}
}

// MockClient returns queued responses in order and records every request
// URL it sees.
type MockClient struct {
	mu        sync.Mutex
	responses []mockResponse
	next      int

	// URLs holds the requested URLs in order.
	URLs []string
}

type mockResponse struct {
	status int
	body   string
	err    error
}

// NewMockClient creates an empty mock client. With no queued responses,
// every Get returns 200 with an empty body.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// AddResponse queues a response for a subsequent Get.
func (m *MockClient) AddResponse(status int, body string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockResponse{status: status, body: body})
	return m
}

// AddError queues a transport-level error for a subsequent Get.
func (m *MockClient) AddError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockResponse{err: err})
	return m
}

// Get records the URL and returns the next queued response.
func (m *MockClient) Get(url string) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.URLs = append(m.URLs, url)

	if m.next >= len(m.responses) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader(nil)),
			Header:     make(http.Header),
		}, nil
	}
	r := m.responses[m.next]
	m.next++
	if r.err != nil {
		return nil, r.err
	}
	return &http.Response{
		StatusCode: r.status,
		Body:       io.NopCloser(bytes.NewBufferString(r.body)),
		Header:     make(http.Header),
	}, nil
}
