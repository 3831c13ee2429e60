package testing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
)

// Replayer is a RoundTripper that answers requests from a fixture written by
// Recorder, in recorded order.
type Replayer struct {
	mu        sync.Mutex
	exchanges []Exchange
	matcher   func(*http.Request, Request) bool
}

func NewReplayer(file string) (*Replayer, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var exchanges []Exchange
	err = json.NewDecoder(f).Decode(&exchanges)
	if err != nil {
		return nil, err
	}

	return &Replayer{
		exchanges: exchanges,
		matcher:   DefaultMatcher,
	}, nil
}

// WithMatcher replaces the function deciding whether a request matches the
// next recorded exchange.
func (r *Replayer) WithMatcher(m func(*http.Request, Request) bool) *Replayer {
	r.matcher = m
	return r
}

// Remaining reports how many recorded exchanges have not been replayed.
func (r *Replayer) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.exchanges)
}

var _ http.RoundTripper = (*Replayer)(nil)

func (r *Replayer) RoundTrip(req *http.Request) (*http.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.exchanges) == 0 {
		return nil, errors.New("no exchanges remain to replay")
	}

	ex := r.exchanges[0]
	r.exchanges = r.exchanges[1:]

	if !r.matcher(req, ex.Request) {
		return nil, fmt.Errorf("no match: got %s %s, next recorded exchange is %s %s",
			req.Method, req.URL, ex.Request.Method, ex.Request.URL)
	}

	var body io.Reader
	if len(ex.Response.BodyBytes) > 0 {
		body = bytes.NewReader(ex.Response.BodyBytes)
	} else {
		body = strings.NewReader(ex.Response.BodyString)
	}
	return &http.Response{
		Body:       io.NopCloser(body),
		Header:     ex.Response.Headers.Clone(),
		StatusCode: ex.Response.StatusCode,
		Request:    req,
	}, nil
}

// DefaultMatcher compares method and URL. Headers are not compared because
// session cookies differ between recording and replay.
func DefaultMatcher(req *http.Request, stored Request) bool {
	return req.Method == stored.Method && req.URL.String() == stored.URL
}
