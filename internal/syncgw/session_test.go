package syncgw

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rneatherway/gh-syncgw/internal/httpclient"
	"github.com/rneatherway/gh-syncgw/internal/mocks"
)

func TestExtractSession(t *testing.T) {
	tests := []struct {
		name    string
		values  []string
		want    string
		wantErr bool
	}{
		{
			name:   "gateway cookie",
			values: []string{"SyncGatewaySession=abc123; Path=/db; Expires=Wed, 21 Oct 2099 07:28:00 GMT"},
			want:   "abc123",
		},
		{
			name:    "no matching cookie",
			values:  []string{"other=1; Path=/"},
			wantErr: true,
		},
		{
			name:    "no headers",
			wantErr: true,
		},
		{
			name:   "value containing equals signs",
			values: []string{"SyncGatewaySession=a=b==; HttpOnly"},
			want:   "a=b==",
		},
		{
			name:   "empty value is skipped",
			values: []string{"SyncGatewaySession=; Path=/db", "other=2", "SyncGatewaySession=second; Path=/db"},
			want:   "second",
		},
		{
			name:   "first match wins",
			values: []string{"SyncGatewaySession=first", "SyncGatewaySession=second"},
			want:   "first",
		},
		{
			name:   "not first attribute",
			values: []string{"Path=/db; SyncGatewaySession=late"},
			want:   "late",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ExtractSession(tt.values, DefaultSessionCookieName)
			if tt.wantErr {
				if !errors.Is(err, ErrNoSession) {
					t.Fatalf("expected ErrNoSession, got %v, %+v", err, s)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if s.Name != DefaultSessionCookieName || s.Value != tt.want {
				t.Errorf("session = %+v, want value %q", s, tt.want)
			}
		})
	}
}

func TestSessionAttributes(t *testing.T) {
	s, err := ExtractSession([]string{"SyncGatewaySession=abc; Path=/db; Expires=Wed, 21 Oct 2099 07:28:00 GMT; HttpOnly"}, DefaultSessionCookieName)
	if err != nil {
		t.Fatal(err)
	}
	if s.Attributes["Path"] != "/db" {
		t.Errorf("attributes = %v", s.Attributes)
	}
	if _, ok := s.Attributes["HttpOnly"]; !ok {
		t.Errorf("attributes = %v", s.Attributes)
	}
	expires, ok := s.Expires()
	if !ok || expires.Year() != 2099 {
		t.Errorf("Expires() = %v, %v", expires, ok)
	}
}

func TestLogin(t *testing.T) {
	_, client := newFakeGateway(t)
	ctx := context.Background()

	if _, err := client.DatabaseInfo(ctx); !IsUnauthorized(err) {
		t.Fatalf("expected 401 before login, got %v", err)
	}

	s, err := client.Login(ctx, testUser, testPassword)
	if err != nil {
		t.Fatal(err)
	}
	if s.Value != "token1=" {
		t.Errorf("session value = %q", s.Value)
	}
	if got := client.Session(); got == nil || got.Value != s.Value {
		t.Errorf("stored session = %+v", got)
	}

	info, err := client.DatabaseInfo(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if info.DBName != "db" || info.State != "Online" {
		t.Errorf("info = %+v", info)
	}
}

func TestLoginFailureClearsSession(t *testing.T) {
	_, client := newFakeGateway(t)
	ctx := context.Background()

	if _, err := client.Login(ctx, testUser, testPassword); err != nil {
		t.Fatal(err)
	}

	_, err := client.Login(ctx, testUser, "wrong")
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected *AuthenticationError, got %v", err)
	}
	if authErr.Response == nil || authErr.Response.StatusCode != http.StatusUnauthorized {
		t.Errorf("response = %+v", authErr.Response)
	}
	if !strings.Contains(string(authErr.Response.Body), "Invalid login") {
		t.Errorf("body = %q", authErr.Response.Body)
	}
	if !IsUnauthorized(err) {
		t.Error("expected the status error to be reachable through the authentication error")
	}
	if client.Session() != nil {
		t.Errorf("session survived a failed login: %+v", client.Session())
	}
	if _, err := client.DatabaseInfo(ctx); !IsUnauthorized(err) {
		t.Errorf("expected 401 after failed login, got %v", err)
	}
}

func TestLoginWithoutCookie(t *testing.T) {
	mockClient := &mocks.MockClient{}
	mockClient.MockJSONResponse(http.StatusOK, `{"ok":true}`)
	client := Null("db", mockClient)

	_, err := client.Login(context.Background(), "pupshaw", "frank")
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) || !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected an authentication error wrapping ErrNoSession, got %v", err)
	}
	if authErr.Response.StatusCode != http.StatusOK {
		t.Errorf("status = %d", authErr.Response.StatusCode)
	}
}

func TestLoginTransportError(t *testing.T) {
	mockClient := &mocks.MockClient{}
	mockClient.MockTransportError(errors.New("no route to host"))
	client := Null("db", mockClient)

	_, err := client.Login(context.Background(), "pupshaw", "frank")
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
}

func TestLoginRequest(t *testing.T) {
	mockClient := &mocks.MockClient{}
	mockClient.MockSuccessfulSessionResponse("s3cr3t")
	client := Null("db", mockClient)

	if _, err := client.Login(context.Background(), "pupshaw", "frank"); err != nil {
		t.Fatal(err)
	}
	req := mockClient.Requests()[0]
	if req.Method != http.MethodPost || req.URL.String() != "http://localhost/db/_session" {
		t.Errorf("request = %s %s", req.Method, req.URL)
	}
	if client.Session().Value != "s3cr3t" {
		t.Errorf("session = %+v", client.Session())
	}
}

func TestFacebookLogin(t *testing.T) {
	mockClient := &mocks.MockClient{}
	mockClient.MockSuccessfulSessionResponse("fb")
	client := Null("db", mockClient)

	s, err := client.FacebookLogin(context.Background(), "token", "a@example.com", "http://localhost/db")
	if err != nil {
		t.Fatal(err)
	}
	if s.Value != "fb" {
		t.Errorf("session = %+v", s)
	}
	if got := mockClient.Requests()[0].URL.Path; got != "/db/_facebook" {
		t.Errorf("path = %q", got)
	}

	mockClient.MockJSONResponse(http.StatusUnauthorized, `{"error":"Unauthorized","reason":"bad token"}`)
	_, err = client.FacebookLogin(context.Background(), "bad", "a@example.com", "http://localhost/db")
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) || authErr.Response.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected an authentication error with status 401, got %v", err)
	}
	if client.Session() != nil {
		t.Error("session survived a failed facebook login")
	}
}

func TestRefreshedCookieReplacesSession(t *testing.T) {
	mockClient := &mocks.MockClient{}
	mockClient.MockSuccessfulSessionResponse("first")
	client := Null("db", mockClient)
	ctx := context.Background()

	// No session yet: a stray cookie is not adopted.
	if _, err := client.Execute(ctx, Command{Method: http.MethodGet, Path: "/db"}); err != nil {
		t.Fatal(err)
	}
	if client.Session() != nil {
		t.Fatal("cookie adopted without a login")
	}

	if _, err := client.Login(ctx, "pupshaw", "frank"); err != nil {
		t.Fatal(err)
	}
	mockClient.MockSuccessfulSessionResponse("refreshed")
	if _, err := client.Execute(ctx, Command{Method: http.MethodGet, Path: "/db"}); err != nil {
		t.Fatal(err)
	}
	if client.Session().Value != "refreshed" {
		t.Errorf("session = %+v", client.Session())
	}
}

func TestLogout(t *testing.T) {
	gateway, client := newFakeGateway(t)
	ctx := context.Background()

	if err := client.Logout(ctx); err != nil {
		t.Fatalf("logout without a session: %v", err)
	}
	if gateway.requests != 0 {
		t.Errorf("logout without a session sent %d requests", gateway.requests)
	}

	s, err := client.Login(ctx, testUser, testPassword)
	if err != nil {
		t.Fatal(err)
	}
	if err := client.Logout(ctx); err != nil {
		t.Fatal(err)
	}
	if client.Session() != nil {
		t.Error("session survived logout")
	}

	gateway.mu.Lock()
	alive := gateway.sessions[s.Value]
	gateway.mu.Unlock()
	if alive {
		t.Error("gateway still holds the session")
	}
}

func TestLogoutClearsSessionOnFailure(t *testing.T) {
	mockClient := &mocks.MockClient{}
	mockClient.MockTransportError(errors.New("connection reset"))
	client := Null("db", mockClient)
	client.SetSession(&Session{Name: DefaultSessionCookieName, Value: "abc"})

	if err := client.Logout(context.Background()); err == nil {
		t.Error("expected the transport error")
	}
	if client.Session() != nil {
		t.Error("session survived a failed logout")
	}
}

func TestSessionCache(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "gh-syncgw", "sessions.json")
	mockClient := &mocks.MockClient{}
	mockClient.MockSuccessfulSessionResponse("cached")

	newClient := func(database string) *Client {
		t.Helper()
		client, err := New(Config{Host: "localhost", Database: database},
			WithHTTPClient(httpclient.WithTransport(mockClient)),
			WithSessionCache(cachePath))
		if err != nil {
			t.Fatal(err)
		}
		return client
	}

	first := newClient("db")
	if first.Session() != nil {
		t.Fatal("session present before login")
	}
	if _, err := first.Login(context.Background(), "pupshaw", "frank"); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(cachePath)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("cache permissions = %v", perm)
	}

	second := newClient("db")
	if s := second.Session(); s == nil || s.Value != "cached" {
		t.Fatalf("session not restored from cache: %+v", s)
	}
	if other := newClient("other"); other.Session() != nil {
		t.Errorf("session leaked to another database: %+v", other.Session())
	}

	mockClient.MockJSONResponse(http.StatusOK, `{}`)
	if err := second.Logout(context.Background()); err != nil {
		t.Fatal(err)
	}
	if third := newClient("db"); third.Session() != nil {
		t.Errorf("session restored after logout: %+v", third.Session())
	}
}

func TestSessionCacheSkipsExpired(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "sessions.json")
	content := `{"sessions":{"http://localhost/db":{"name":"SyncGatewaySession","value":"old","attributes":{"Expires":"Mon, 01 Jan 2001 00:00:00 GMT"}}}}`
	if err := os.WriteFile(cachePath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	client, err := New(Config{Host: "localhost", Database: "db"}, WithSessionCache(cachePath))
	if err != nil {
		t.Fatal(err)
	}
	if client.Session() != nil {
		t.Errorf("expired session restored: %+v", client.Session())
	}
}

func TestSessionCopiesAreIndependent(t *testing.T) {
	client := Null("db", &mocks.MockClient{})
	client.SetSession(&Session{Name: DefaultSessionCookieName, Value: "abc", Attributes: map[string]string{"Path": "/db"}})

	s := client.Session()
	s.Value = "changed"
	s.Attributes["Path"] = "/"

	if got := client.Session(); got.Value != "abc" || got.Attributes["Path"] != "/db" {
		t.Errorf("stored session was modified through a copy: %+v", got)
	}
}
