package syncgw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Result is delivered on the channel returned by Go.
type Result struct {
	Response *Response
	Err      error
}

// Execute sends cmd and classifies the response. A method other than GET,
// POST, PUT or DELETE fails with *UnsupportedMethodError without any network
// traffic. Non-2xx responses fail with *HTTPStatusError and transport
// failures with *TransportError.
//
// For a streaming command the returned Response carries Parts, a reader over
// the multipart body that the caller must close.
func (c *Client) Execute(ctx context.Context, cmd Command) (*Response, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}
	return c.do(ctx, cmd)
}

// Go executes cmd in a new goroutine. Validation errors are returned
// immediately; every other outcome arrives as the single value sent on the
// returned channel.
func (c *Client) Go(ctx context.Context, cmd Command) (<-chan Result, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		resp, err := c.do(ctx, cmd)
		ch <- Result{Response: resp, Err: err}
	}()
	return ch, nil
}

func (c *Client) newRequest(ctx context.Context, cmd Command) (*http.Request, error) {
	u, err := url.Parse(c.URL(cmd.Path))
	if err != nil {
		return nil, err
	}
	if len(cmd.Query) > 0 {
		q := u.Query()
		for k, v := range cmd.Query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if cmd.Body != nil {
		data, err := jsonMarshal(cmd.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(cmd.Method), u.String(), body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s := c.Session(); s != nil {
		req.AddCookie(&http.Cookie{Name: s.Name, Value: s.Value})
	}
	if cmd.Credentials != nil {
		req.SetBasicAuth(cmd.Credentials.Name, cmd.Credentials.Password)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, cmd Command) (*Response, error) {
	id := uuid.NewString()
	req, err := c.newRequest(ctx, cmd)
	if err != nil {
		return nil, err
	}

	c.log.Printf("[%s] %s %s", id, req.Method, req.URL.Redacted())
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: req.URL.Redacted(), Err: err}
	}
	c.log.Printf("[%s] status code %d", id, resp.StatusCode)

	out := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
	}
	if out.StatusClass() == 2 {
		c.observeSession(resp.Header)
	}

	if cmd.Streaming && out.StatusClass() == 2 {
		boundary, err := BoundaryFromContentType(resp.Header.Get("Content-Type"))
		if err != nil {
			c.log.Printf("[%s] %v, detecting boundary from body", id, err)
		}
		out.Parts = NewMultipartReaderSize(resp.Body, boundary, c.chunkSize)
		return out, nil
	}

	defer resp.Body.Close()
	out.Body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: req.URL.Redacted(), Err: err}
	}
	if err := Classify(out); err != nil {
		c.log.Printf("[%s] %v", id, err)
		return nil, err
	}
	return out, nil
}

func jsonMarshal(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
