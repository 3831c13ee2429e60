package syncgw

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Response is the outcome of an executed Command. Buffered commands populate
// Body; streaming commands populate Parts, which the caller must close.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Parts      *MultipartReader
}

// StatusClass is the status code divided by 100.
func (r *Response) StatusClass() int {
	return r.StatusCode / 100
}

// JSON decodes the buffered body into v.
func (r *Response) JSON(v any) error {
	if r.Parts != nil {
		return errors.New("streaming response has no single JSON body")
	}
	return json.Unmarshal(r.Body, v)
}

// Classify returns nil for a 2xx response and an *HTTPStatusError carrying
// the full response otherwise.
func Classify(r *Response) error {
	if r.StatusClass() == 2 {
		return nil
	}
	return &HTTPStatusError{
		StatusCode: r.StatusCode,
		Header:     r.Header,
		Body:       r.Body,
	}
}
