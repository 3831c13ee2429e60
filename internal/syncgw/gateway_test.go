package syncgw

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
)

const (
	testUser     = "pupshaw"
	testPassword = "frank"
)

// fakeGateway is a small in-memory stand-in for the gateway's public REST
// interface on database "db".
type fakeGateway struct {
	mu       sync.Mutex
	docs     map[string]map[string]any
	gens     map[string]int
	nextID   int
	sessions map[string]bool
	requests int
}

func newFakeGateway(t *testing.T) (*fakeGateway, *Client) {
	g := &fakeGateway{
		docs:     map[string]map[string]any{},
		gens:     map[string]int{},
		sessions: map[string]bool{},
	}
	server := httptest.NewServer(g)
	t.Cleanup(server.Close)

	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatal(err)
	}
	client, err := New(Config{Host: u.Hostname(), Port: port, Database: "db"})
	if err != nil {
		t.Fatal(err)
	}
	return g, client
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func gatewayError(w http.ResponseWriter, status int, name, reason string) {
	writeJSON(w, status, map[string]string{"error": name, "reason": reason})
}

func (g *fakeGateway) authenticated(r *http.Request) bool {
	if c, err := r.Cookie(DefaultSessionCookieName); err == nil && g.sessions[c.Value] {
		return true
	}
	name, password, ok := r.BasicAuth()
	return ok && name == testUser && password == testPassword
}

func (g *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests++

	switch {
	case r.URL.Path == "/":
		writeJSON(w, http.StatusOK, map[string]any{
			"couchdb": "Welcome",
			"vendor":  map[string]string{"name": "Couchbase Sync Gateway", "version": "3.1"},
			"version": "Couchbase Sync Gateway/3.1.0(1;abc)",
		})
	case r.URL.Path == "/db/_session" && r.Method == http.MethodPost:
		g.login(w, r)
	case r.URL.Path == "/db/_session" && r.Method == http.MethodDelete:
		if c, err := r.Cookie(DefaultSessionCookieName); err == nil {
			delete(g.sessions, c.Value)
		}
		writeJSON(w, http.StatusOK, map[string]any{})
	case !g.authenticated(r):
		w.Header().Set("WWW-Authenticate", `Basic realm="Couchbase Sync Gateway"`)
		gatewayError(w, http.StatusUnauthorized, "Unauthorized", "Login required")
	case r.URL.Path == "/db" || r.URL.Path == "/db/" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"db_name": "db", "update_seq": g.nextID, "state": "Online"})
	case r.URL.Path == "/db/" && r.Method == http.MethodPost:
		g.nextID++
		g.store(w, r, fmt.Sprintf("doc%d", g.nextID))
	case r.URL.Path == "/db/_bulk_get" && r.Method == http.MethodPost:
		g.bulkGet(w, r)
	case strings.HasPrefix(r.URL.Path, "/db/"):
		id := strings.TrimPrefix(r.URL.Path, "/db/")
		switch r.Method {
		case http.MethodGet:
			doc, ok := g.docs[id]
			if !ok {
				gatewayError(w, http.StatusNotFound, "not_found", "missing")
				return
			}
			writeJSON(w, http.StatusOK, doc)
		case http.MethodPut:
			g.store(w, r, id)
		case http.MethodDelete:
			if !g.checkRev(w, r, id) {
				return
			}
			delete(g.docs, id)
			g.gens[id]++
			writeJSON(w, http.StatusOK, map[string]any{"id": id, "ok": true, "rev": g.rev(id)})
		}
	default:
		http.NotFound(w, r)
	}
}

func (g *fakeGateway) login(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		gatewayError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if creds.Name != testUser || creds.Password != testPassword {
		gatewayError(w, http.StatusUnauthorized, "Unauthorized", "Invalid login")
		return
	}
	token := fmt.Sprintf("token%d=", len(g.sessions)+1)
	g.sessions[token] = true
	w.Header().Add("Set-Cookie", "other=1; Path=/")
	w.Header().Add("Set-Cookie", fmt.Sprintf("%s=%s; Path=/db; Expires=Wed, 21 Oct 2099 07:28:00 GMT; HttpOnly", DefaultSessionCookieName, token))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "userCtx": map[string]any{"name": creds.Name}})
}

func (g *fakeGateway) rev(id string) string {
	return fmt.Sprintf("%d-%x", g.gens[id], len(id)*31+g.gens[id])
}

func (g *fakeGateway) checkRev(w http.ResponseWriter, r *http.Request, id string) bool {
	if _, exists := g.docs[id]; !exists {
		return true
	}
	if r.URL.Query().Get("rev") != g.rev(id) {
		gatewayError(w, http.StatusConflict, "conflict", "Document revision conflict")
		return false
	}
	return true
}

func (g *fakeGateway) store(w http.ResponseWriter, r *http.Request, id string) {
	if !g.checkRev(w, r, id) {
		return
	}
	doc := map[string]any{}
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		gatewayError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	g.gens[id]++
	doc["_id"] = id
	doc["_rev"] = g.rev(id)
	g.docs[id] = doc
	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "ok": true, "rev": g.rev(id)})
}

func (g *fakeGateway) bulkGet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Docs []BulkGetItem `json:"docs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		gatewayError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	mw := multipart.NewWriter(w)
	w.Header().Set("Content-Type", "multipart/mixed; boundary="+mw.Boundary())
	w.WriteHeader(http.StatusOK)
	for _, item := range req.Docs {
		doc, ok := g.docs[item.ID]
		header := textproto.MIMEHeader{"Content-Type": {"application/json"}}
		var body any = doc
		if !ok {
			header.Set("Content-Type", `application/json; error="true"`)
			body = map[string]any{"error": "not_found", "id": item.ID, "reason": "missing", "status": 404}
		}
		pw, err := mw.CreatePart(header)
		if err != nil {
			return
		}
		bs, _ := json.Marshal(body)
		io.WriteString(pw, string(bs))
	}
	mw.Close()
}
