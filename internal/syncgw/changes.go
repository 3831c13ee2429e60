package syncgw

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// maxChangesMessage bounds a single changes batch, which can be large when
// documents are included.
const maxChangesMessage = 16 << 20

// ChangesOptions are sent to the gateway as the first websocket message.
type ChangesOptions struct {
	Since       json.RawMessage `json:"since,omitempty"`
	IncludeDocs bool            `json:"include_docs,omitempty"`
	Filter      string          `json:"filter,omitempty"`
	Channels    string          `json:"channels,omitempty"`
	Limit       int             `json:"limit,omitempty"`
	Heartbeat   int             `json:"heartbeat,omitempty"`
	ActiveOnly  bool            `json:"active_only,omitempty"`
}

type ChangeRev struct {
	Rev string `json:"rev"`
}

// Change is one entry of the changes feed. Seq is kept raw because the
// gateway may send it as a number or a string.
type Change struct {
	Seq     json.RawMessage `json:"seq"`
	ID      string          `json:"id"`
	Changes []ChangeRev     `json:"changes"`
	Deleted bool            `json:"deleted,omitempty"`
	Removed []string        `json:"removed,omitempty"`
	Doc     json.RawMessage `json:"doc,omitempty"`
}

// ChangesFeed is an open websocket changes feed.
type ChangesFeed struct {
	conn *websocket.Conn
}

// Changes opens the database's changes feed over a websocket. The current
// session cookie, and creds if given, are sent with the handshake.
func (c *Client) Changes(ctx context.Context, opts ChangesOptions, creds *Credentials) (*ChangesFeed, error) {
	scheme := "ws"
	if c.secure {
		scheme = "wss"
	}
	u, err := url.Parse(c.url(scheme, c.dbPath("_changes")))
	if err != nil {
		return nil, err
	}
	u.RawQuery = url.Values{"feed": {"websocket"}}.Encode()

	header := http.Header{}
	if s := c.Session(); s != nil {
		header.Set("Cookie", (&http.Cookie{Name: s.Name, Value: s.Value}).String())
	}
	if creds != nil {
		req := &http.Request{Header: http.Header{}}
		req.SetBasicAuth(creds.Name, creds.Password)
		header.Set("Authorization", req.Header.Get("Authorization"))
	}

	dialOpts := &websocket.DialOptions{HTTPHeader: header}
	if hc, ok := c.client.(*http.Client); ok {
		dialOpts.HTTPClient = hc
	}

	c.log.Printf("opening changes feed %s", u.Redacted())
	conn, resp, err := websocket.Dial(ctx, u.String(), dialOpts)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			statusErr := &HTTPStatusError{StatusCode: resp.StatusCode, Header: resp.Header}
			if resp.Body != nil {
				statusErr.Body, _ = io.ReadAll(resp.Body)
				resp.Body.Close()
			}
			return nil, statusErr
		}
		return nil, &TransportError{Method: http.MethodGet, URL: u.Redacted(), Err: err}
	}
	conn.SetReadLimit(maxChangesMessage)

	if err := wsjson.Write(ctx, conn, opts); err != nil {
		conn.Close(websocket.StatusInternalError, "")
		return nil, err
	}
	return &ChangesFeed{conn: conn}, nil
}

// Next returns the next non-empty batch of changes. It returns io.EOF when
// the gateway closes the feed normally.
func (f *ChangesFeed) Next(ctx context.Context) ([]Change, error) {
	for {
		var batch []Change
		err := wsjson.Read(ctx, f.conn, &batch)
		if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
		if len(batch) > 0 {
			return batch, nil
		}
	}
}

func (f *ChangesFeed) Close() error {
	return f.conn.Close(websocket.StatusNormalClosure, "")
}
