package syncgw

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"github.com/rneatherway/gh-syncgw/internal/mocks"
)

func TestDesignDocs(t *testing.T) {
	mockClient := &mocks.MockClient{}
	client := Null("db", mockClient)
	ctx := context.Background()

	mockClient.MockJSONResponse(http.StatusCreated, `{"id":"_design/people","rev":"1-a","ok":true}`)
	ddoc := DesignDoc{Views: map[string]View{"by_name": {Map: "function(doc) { emit(doc.name, null) }"}}}
	result, err := client.PutDesignDoc(ctx, "people", ddoc)
	if err != nil {
		t.Fatal(err)
	}
	if result.ID != "_design/people" {
		t.Errorf("result = %+v", result)
	}

	mockClient.MockJSONResponse(http.StatusOK, `{"views":{"by_name":{"map":"function(doc) { emit(doc.name, null) }"}}}`)
	var got DesignDoc
	if err := client.GetDesignDoc(ctx, "people", &got); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, ddoc) {
		t.Errorf("design doc = %+v, want %+v", got, ddoc)
	}

	mockClient.MockJSONResponse(http.StatusOK, `{"ok":true}`)
	if err := client.DeleteDesignDoc(ctx, "people"); err != nil {
		t.Fatal(err)
	}

	var calls []string
	for _, req := range mockClient.Requests() {
		calls = append(calls, req.Method+" "+req.URL.Path)
	}
	want := []string{"PUT /db/_design/people", "GET /db/_design/people", "DELETE /db/_design/people"}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}

	if _, err := client.PutDesignDoc(ctx, "", ddoc); err == nil {
		t.Error("expected an error without a name")
	}
}

func TestUsers(t *testing.T) {
	var bodies []map[string]any
	mockClient := &mocks.MockClient{}
	mockClient.Next = func(req *http.Request) (*http.Response, error) {
		if req.Body != nil && req.Method != http.MethodGet {
			var body map[string]any
			json.NewDecoder(req.Body).Decode(&body)
			bodies = append(bodies, body)
		}
		body := `{}`
		if req.Method == http.MethodGet {
			body = `{"name":"pupshaw","admin_channels":["public"],"all_channels":["!","public"]}`
		}
		return &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: io.NopCloser(strings.NewReader(body))}, nil
	}
	client := Null("db", mockClient)
	ctx := context.Background()

	user := User{Name: "pupshaw", Password: "frank", AdminChannels: []string{"public"}}
	if err := client.CreateUser(ctx, user); err != nil {
		t.Fatal(err)
	}
	if err := client.PutUser(ctx, user); err != nil {
		t.Fatal(err)
	}
	got, err := client.GetUser(ctx, "pupshaw")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.AllChannels, []string{"!", "public"}) {
		t.Errorf("user = %+v", got)
	}

	requests := mockClient.Requests()
	if requests[0].Method != http.MethodPost || requests[0].URL.Path != "/db/_user/" {
		t.Errorf("create = %s %s", requests[0].Method, requests[0].URL.Path)
	}
	if requests[1].Method != http.MethodPut || requests[1].URL.Path != "/db/_user/pupshaw" {
		t.Errorf("put = %s %s", requests[1].Method, requests[1].URL.Path)
	}
	if len(bodies) != 2 || bodies[0]["password"] != "frank" {
		t.Errorf("bodies = %v", bodies)
	}
	if _, ok := bodies[0]["all_channels"]; ok {
		t.Errorf("all_channels sent: %v", bodies[0])
	}

	if err := client.CreateUser(ctx, User{}); err == nil {
		t.Error("expected an error without a name")
	}
}
