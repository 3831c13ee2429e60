package testing

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"sync"
	"unicode/utf8"
)

// Recorder is a RoundTripper that saves every exchange passing through it,
// so that a session against a real gateway can be replayed in tests.
type Recorder struct {
	file  string
	inner http.RoundTripper

	mu        sync.Mutex
	exchanges []Exchange
}

var _ http.RoundTripper = (*Recorder)(nil)

func NewRecorder(file string, inner http.RoundTripper) *Recorder {
	return &Recorder{file: file, inner: inner}
}

func (r *Recorder) RoundTrip(req *http.Request) (*http.Response, error) {
	var reqBody []byte
	if req.Body != nil {
		var err error
		reqBody, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(reqBody))
	}

	resp, err := r.inner.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}

	headers := req.Header.Clone()
	// Credentials never go into fixtures.
	headers.Del("Authorization")
	headers.Del("Cookie")

	ex := Exchange{
		Request: Request{
			URL:     req.URL.String(),
			Headers: headers,
			Method:  req.Method,
			Body:    string(reqBody),
		},
		Response: Response{
			Headers:    resp.Header.Clone(),
			StatusCode: resp.StatusCode,
		},
	}

	if utf8.Valid(body) {
		ex.Response.BodyString = string(body)
	} else {
		ex.Response.BodyBytes = body
	}

	r.mu.Lock()
	r.exchanges = append(r.exchanges, ex)
	r.mu.Unlock()

	// Put the Body back in the response for the actual client code to read.
	resp.Body = io.NopCloser(bytes.NewReader(body))

	return resp, nil
}

// Close writes the recorded exchanges to the fixture file.
func (r *Recorder) Close() error {
	f, err := os.Create(r.file)
	if err != nil {
		return err
	}
	defer f.Close()

	r.mu.Lock()
	defer r.mu.Unlock()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(r.exchanges)
}
