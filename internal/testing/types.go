package testing

import "net/http"

// Exchange is one recorded request and the response the gateway gave.
type Exchange struct {
	Request  Request  `json:"request"`
	Response Response `json:"response"`
}

type Request struct {
	URL     string      `json:"url"`
	Headers http.Header `json:"headers,omitempty"`
	Method  string      `json:"method"`
	Body    string      `json:"body,omitempty"`
}

type Response struct {
	Headers    http.Header `json:"headers"`
	BodyString string      `json:"body_string,omitempty"`
	BodyBytes  []byte      `json:"body_bytes,omitempty"`
	StatusCode int         `json:"status_code"`
}
