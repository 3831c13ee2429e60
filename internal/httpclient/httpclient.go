package httpclient

import (
	"net/http"
)

// HTTPClient is the transport the gateway client sends requests through. It
// is satisfied by *http.Client and by test doubles.
// See https://www.thegreatcodeadventure.com/mocking-http-requests-in-golang/
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

var (
	Client HTTPClient
)

func init() {
	Client = &http.Client{}
}

// WithTransport returns a client that sends requests through rt. A nil rt
// selects http.DefaultTransport.
func WithTransport(rt http.RoundTripper) HTTPClient {
	return &http.Client{Transport: rt}
}
