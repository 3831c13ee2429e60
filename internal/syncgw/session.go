package syncgw

import (
	"context"
	"errors"
	"maps"
	"net/http"
	"strings"
	"time"
)

// DefaultSessionCookieName is the cookie the gateway issues on login.
const DefaultSessionCookieName = "SyncGatewaySession"

// Session is an authenticated gateway session. Attributes holds every
// attribute of the Set-Cookie entry it came from, including the cookie
// itself (Path, Expires, HttpOnly, ...).
type Session struct {
	Name       string            `json:"name"`
	Value      string            `json:"value"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Expires returns the parsed Expires attribute, if any.
func (s *Session) Expires() (time.Time, bool) {
	raw, ok := s.Attributes["Expires"]
	if !ok {
		return time.Time{}, false
	}
	t, err := http.ParseTime(raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Attributes = maps.Clone(s.Attributes)
	return &out
}

// ExtractSession finds the session cookie named key in a list of Set-Cookie
// header values. Each value is split on ';' into attributes and each
// attribute on its first '=' only, so values may themselves contain '='.
// The first entry carrying a non-empty key wins.
func ExtractSession(values []string, key string) (*Session, error) {
	for _, value := range values {
		attrs := parseCookieAttributes(value)
		if v := attrs[key]; v != "" {
			return &Session{Name: key, Value: v, Attributes: attrs}, nil
		}
	}
	return nil, ErrNoSession
}

func parseCookieAttributes(value string) map[string]string {
	attrs := map[string]string{}
	for _, part := range strings.Split(value, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, val, _ := strings.Cut(part, "=")
		attrs[name] = val
	}
	return attrs
}

// Session returns a copy of the current session, or nil.
func (c *Client) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.clone()
}

// SetSession replaces the current session. A nil session clears it.
func (c *Client) SetSession(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s.clone()
}

// ClearSession forgets the current session without contacting the gateway.
func (c *Client) ClearSession() {
	c.SetSession(nil)
}

// observeSession picks up a refreshed session cookie from any successful
// response while a session is active.
func (c *Client) observeSession(h http.Header) {
	s, err := ExtractSession(h.Values("Set-Cookie"), c.cookieName)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.session = s
	}
}

// Login authenticates with name and password and stores the resulting
// session. Any previous session is dropped before the request is sent, so a
// failed login leaves the client unauthenticated.
func (c *Client) Login(ctx context.Context, name, password string) (*Session, error) {
	c.ClearSession()
	resp, err := c.Execute(ctx, Command{
		Method: http.MethodPost,
		Path:   c.dbPath("_session"),
		Body:   Credentials{Name: name, Password: password},
	})
	if err != nil {
		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) {
			return nil, &AuthenticationError{Response: statusErr.Response(), Err: err}
		}
		return nil, err
	}
	return c.adoptSession(resp)
}

type facebookLogin struct {
	AccessToken string `json:"access_token"`
	Email       string `json:"email"`
	RemoteURL   string `json:"remote_url"`
}

// FacebookLogin exchanges a Facebook access token for a session. The result
// depends only on whether the response carries a session cookie.
func (c *Client) FacebookLogin(ctx context.Context, accessToken, email, remoteURL string) (*Session, error) {
	c.ClearSession()
	resp, err := c.Execute(ctx, Command{
		Method: http.MethodPost,
		Path:   c.dbPath("_facebook"),
		Body:   facebookLogin{AccessToken: accessToken, Email: email, RemoteURL: remoteURL},
	})
	if err != nil {
		var statusErr *HTTPStatusError
		if !errors.As(err, &statusErr) {
			return nil, err
		}
		resp = statusErr.Response()
	}
	return c.adoptSession(resp)
}

func (c *Client) adoptSession(resp *Response) (*Session, error) {
	s, err := ExtractSession(resp.Header.Values("Set-Cookie"), c.cookieName)
	if err != nil {
		return nil, &AuthenticationError{Response: resp, Err: err}
	}
	c.SetSession(s)
	if c.cachePath != "" {
		if err := c.saveSession(s); err != nil {
			c.log.Printf("failed to save session: %v", err)
		}
	}
	return s.clone(), nil
}

// Logout deletes the session on the gateway and forgets it locally. The
// local session is dropped even if the request fails.
func (c *Client) Logout(ctx context.Context) error {
	if c.Session() == nil {
		return nil
	}
	_, err := c.Execute(ctx, Command{
		Method: http.MethodDelete,
		Path:   c.dbPath("_session"),
	})
	c.ClearSession()
	if c.cachePath != "" {
		if cacheErr := c.saveSession(nil); cacheErr != nil {
			c.log.Printf("failed to remove cached session: %v", cacheErr)
		}
	}
	return err
}
