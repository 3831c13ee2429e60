package syncgw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Vendor struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type ServerInfo struct {
	CouchDB string `json:"couchdb"`
	Vendor  Vendor `json:"vendor"`
	Version string `json:"version"`
}

type DatabaseInfo struct {
	DBName             string `json:"db_name"`
	UpdateSeq          int64  `json:"update_seq"`
	CommittedUpdateSeq int64  `json:"committed_update_seq"`
	State              string `json:"state"`
}

// DocumentResult is the gateway's reply to a document write.
type DocumentResult struct {
	ID  string `json:"id"`
	Rev string `json:"rev"`
	OK  bool   `json:"ok"`
}

// WriteOptions control document creation and update. Rev is required to
// update an existing document. Expiry takes precedence over TTL, which is
// sent in whole seconds rounded up.
type WriteOptions struct {
	Rev    string
	TTL    time.Duration
	Expiry time.Time
}

func (o *WriteOptions) query() map[string]string {
	params := map[string]string{}
	if o == nil {
		return params
	}
	if o.Rev != "" {
		params["rev"] = o.Rev
	}
	if !o.Expiry.IsZero() {
		params["exp"] = o.Expiry.UTC().Format(time.RFC3339)
	} else if o.TTL > 0 {
		// Round up: exp=0 would mean no expiry at all.
		params["exp"] = strconv.FormatInt(int64((o.TTL+time.Second-1)/time.Second), 10)
	}
	return params
}

// GetOptions are the query flags accepted when fetching a document.
// OpenRevs may be []string{"all"} to request every leaf revision; setting it
// makes the gateway answer with a multipart body.
type GetOptions struct {
	Attachments bool
	AttsSince   []string
	OpenRevs    []string
	Revs        bool
}

func (o *GetOptions) query() (map[string]string, error) {
	params := map[string]string{}
	if o == nil {
		return params, nil
	}
	if o.Attachments {
		params["attachments"] = "true"
	}
	if o.Revs {
		params["revs"] = "true"
	}
	if len(o.AttsSince) > 0 {
		bs, err := json.Marshal(o.AttsSince)
		if err != nil {
			return nil, err
		}
		params["atts_since"] = string(bs)
	}
	if len(o.OpenRevs) == 1 && o.OpenRevs[0] == "all" {
		params["open_revs"] = "all"
	} else if len(o.OpenRevs) > 0 {
		bs, err := json.Marshal(o.OpenRevs)
		if err != nil {
			return nil, err
		}
		params["open_revs"] = string(bs)
	}
	return params, nil
}

func (c *Client) ServerInfo(ctx context.Context) (*ServerInfo, error) {
	resp, err := c.Execute(ctx, Command{Method: http.MethodGet, Path: "/"})
	if err != nil {
		return nil, err
	}
	info := &ServerInfo{}
	if err := resp.JSON(info); err != nil {
		return nil, err
	}
	return info, nil
}

func (c *Client) DatabaseInfo(ctx context.Context) (*DatabaseInfo, error) {
	resp, err := c.Execute(ctx, Command{Method: http.MethodGet, Path: c.dbPath()})
	if err != nil {
		return nil, err
	}
	info := &DatabaseInfo{}
	if err := resp.JSON(info); err != nil {
		return nil, err
	}
	return info, nil
}

// CreateDatabase creates the named database and reports whether the gateway
// answered 201 Created. It is normally sent to the admin port.
func (c *Client) CreateDatabase(ctx context.Context, name string) (bool, error) {
	if strings.TrimSpace(name) == "" {
		return false, errors.New("database name is required")
	}
	resp, err := c.Execute(ctx, Command{Method: http.MethodPut, Path: "/" + name + "/"})
	if err != nil {
		return false, err
	}
	return resp.StatusCode == http.StatusCreated, nil
}

// Create stores doc under an identifier chosen by the gateway.
func (c *Client) Create(ctx context.Context, doc any, opts *WriteOptions) (*DocumentResult, error) {
	if doc == nil {
		return nil, errors.New("document is required")
	}
	query := opts.query()
	delete(query, "rev")
	return c.write(ctx, Command{
		Method: http.MethodPost,
		Path:   c.dbPath() + "/",
		Body:   doc,
		Query:  query,
	})
}

// Put creates or updates the document id. Updating requires opts.Rev to be
// the current revision, otherwise the gateway answers 409 Conflict.
func (c *Client) Put(ctx context.Context, id string, doc any, opts *WriteOptions) (*DocumentResult, error) {
	if id == "" {
		return nil, errors.New("document id is required")
	}
	if doc == nil {
		return nil, errors.New("document is required")
	}
	return c.write(ctx, Command{
		Method: http.MethodPut,
		Path:   c.dbPath(url.PathEscape(id)),
		Body:   doc,
		Query:  opts.query(),
	})
}

// Delete removes revision rev of document id.
func (c *Client) Delete(ctx context.Context, id, rev string) (*DocumentResult, error) {
	if id == "" {
		return nil, errors.New("document id is required")
	}
	if rev == "" {
		return nil, errors.New("revision is required to delete a document")
	}
	return c.write(ctx, Command{
		Method: http.MethodDelete,
		Path:   c.dbPath(url.PathEscape(id)),
		Query:  map[string]string{"rev": rev},
	})
}

func (c *Client) write(ctx context.Context, cmd Command) (*DocumentResult, error) {
	resp, err := c.Execute(ctx, cmd)
	if err != nil {
		return nil, err
	}
	result := &DocumentResult{}
	if err := resp.JSON(result); err != nil {
		return nil, fmt.Errorf("failed to decode write result: %w", err)
	}
	return result, nil
}

// Get fetches document id. With OpenRevs set the Response carries Parts,
// one per revision; otherwise it carries the JSON body.
func (c *Client) Get(ctx context.Context, id string, opts *GetOptions) (*Response, error) {
	if id == "" {
		return nil, errors.New("document id is required")
	}
	query, err := opts.query()
	if err != nil {
		return nil, err
	}
	return c.Execute(ctx, Command{
		Method:    http.MethodGet,
		Path:      c.dbPath(url.PathEscape(id)),
		Query:     query,
		Streaming: opts != nil && len(opts.OpenRevs) > 0,
	})
}

// GetDocument fetches document id and decodes it into v.
func (c *Client) GetDocument(ctx context.Context, id string, opts *GetOptions, v any) error {
	if opts != nil && len(opts.OpenRevs) > 0 {
		return errors.New("open_revs yields several revisions, use Get")
	}
	resp, err := c.Get(ctx, id, opts)
	if err != nil {
		return err
	}
	return resp.JSON(v)
}

type BulkDocsOptions struct {
	AllOrNothing bool
	// NewEdits set to false stores the supplied revisions as-is.
	NewEdits *bool
}

type bulkDocsRequest struct {
	Docs         []any `json:"docs"`
	AllOrNothing bool  `json:"all_or_nothing,omitempty"`
	NewEdits     *bool `json:"new_edits,omitempty"`
}

// BulkDocsResult is the per-document outcome of BulkDocs. Error and Reason
// are set, with Status, when that document failed.
type BulkDocsResult struct {
	ID     string `json:"id"`
	Rev    string `json:"rev,omitempty"`
	Error  string `json:"error,omitempty"`
	Reason string `json:"reason,omitempty"`
	Status int    `json:"status,omitempty"`
}

// BulkDocs writes docs in a single request.
func (c *Client) BulkDocs(ctx context.Context, docs []any, opts *BulkDocsOptions) ([]BulkDocsResult, error) {
	body := bulkDocsRequest{Docs: docs}
	if body.Docs == nil {
		body.Docs = []any{}
	}
	if opts != nil {
		body.AllOrNothing = opts.AllOrNothing
		body.NewEdits = opts.NewEdits
	}
	resp, err := c.Execute(ctx, Command{
		Method: http.MethodPost,
		Path:   c.dbPath("_bulk_docs"),
		Body:   body,
	})
	if err != nil {
		return nil, err
	}
	var results []BulkDocsResult
	if err := resp.JSON(&results); err != nil {
		return nil, fmt.Errorf("failed to decode bulk docs result: %w", err)
	}
	return results, nil
}

// BulkGetItem names one document, and optionally one revision, to fetch.
type BulkGetItem struct {
	ID  string `json:"id"`
	Rev string `json:"rev,omitempty"`
}

type BulkGetOptions struct {
	Revs        bool
	Attachments bool
}

// BulkGet fetches several documents in one request. The reader yields one
// part per document; parts for missing or forbidden documents report
// IsError. The caller must close the reader.
func (c *Client) BulkGet(ctx context.Context, items []BulkGetItem, opts *BulkGetOptions) (*MultipartReader, error) {
	if len(items) == 0 {
		return nil, errors.New("at least one document is required")
	}
	query := map[string]string{}
	if opts != nil && opts.Revs {
		query["revs"] = "true"
	}
	if opts != nil && opts.Attachments {
		query["attachments"] = "true"
	}
	resp, err := c.Execute(ctx, Command{
		Method:    http.MethodPost,
		Path:      c.dbPath("_bulk_get"),
		Query:     query,
		Body:      map[string]any{"docs": items},
		Streaming: true,
	})
	if err != nil {
		return nil, err
	}
	return resp.Parts, nil
}
