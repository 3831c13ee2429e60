package mocks

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// MockClient is the mock client
type MockClient struct {
	Next func(*http.Request) (*http.Response, error)

	mu       sync.Mutex
	requests []*http.Request
}

func (m *MockClient) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return m.Next(req)
}

// Requests returns every request seen so far.
func (m *MockClient) Requests() []*http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*http.Request(nil), m.requests...)
}

func response(status int, header http.Header, body string) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

func (m *MockClient) MockJSONResponse(status int, body string) {
	m.Next = func(*http.Request) (*http.Response, error) {
		return response(status, http.Header{"Content-Type": {"application/json"}}, body), nil
	}
}

func (m *MockClient) MockSuccessfulSessionResponse(cookieValue string) {
	m.Next = func(*http.Request) (*http.Response, error) {
		header := http.Header{
			"Content-Type": {"application/json"},
			"Set-Cookie":   {fmt.Sprintf("SyncGatewaySession=%s; Path=/db; Expires=Wed, 21 Oct 2099 07:28:00 GMT; HttpOnly", cookieValue)},
		}
		return response(http.StatusOK, header, `{"authentication_handlers":["default","cookie"],"ok":true,"userCtx":{"channels":{"!":1},"name":"pupshaw"}}`), nil
	}
}

func (m *MockClient) MockMultipartResponse(boundary string, bodies []string) {
	b := &strings.Builder{}
	for _, body := range bodies {
		fmt.Fprintf(b, "--%s\r\nContent-Type: application/json\r\n\r\n%s\r\n", boundary, body)
	}
	fmt.Fprintf(b, "--%s--\r\n", boundary)
	m.Next = func(*http.Request) (*http.Response, error) {
		header := http.Header{"Content-Type": {fmt.Sprintf("multipart/mixed; boundary=%q", boundary)}}
		return response(http.StatusOK, header, b.String()), nil
	}
}

func (m *MockClient) MockTransportError(err error) {
	m.Next = func(*http.Request) (*http.Response, error) {
		return nil, err
	}
}
