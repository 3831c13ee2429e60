// Package syncgw is a client for the Sync Gateway REST API. Requests are
// described as Commands and sent by a Client, which keeps the session cookie
// obtained by Login and classifies every response by its status class.
package syncgw

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/rneatherway/gh-syncgw/internal/httpclient"
)

// DefaultPort is the port left out of generated URLs.
const DefaultPort = 80

// Config locates a database on a gateway.
type Config struct {
	Host     string
	Port     int
	Secure   bool
	Database string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the transport used for every request.
func WithHTTPClient(h httpclient.HTTPClient) Option {
	return func(c *Client) {
		if h != nil {
			c.client = h
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithSessionCookieName changes the cookie recognised as the session token.
func WithSessionCookieName(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.cookieName = name
		}
	}
}

// WithSessionCache persists sessions in the JSON file at path, so that a
// login survives across processes.
func WithSessionCache(path string) Option {
	return func(c *Client) {
		c.cachePath = path
	}
}

// WithChunkSize sets how many bytes streaming responses read at a time.
// Values below one are ignored.
func WithChunkSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// Client talks to one database on a gateway. It is safe for concurrent use,
// but all requests share its session: use separate clients for separate
// users.
type Client struct {
	host     string
	port     int
	secure   bool
	database string

	client     httpclient.HTTPClient
	log        *log.Logger
	cookieName string
	chunkSize  int
	cachePath  string

	mu      sync.Mutex
	session *Session
}

func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("gateway host is required")
	}
	if strings.TrimSpace(cfg.Database) == "" {
		return nil, errors.New("database name is required")
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}

	c := &Client{
		host:       cfg.Host,
		port:       port,
		secure:     cfg.Secure,
		database:   cfg.Database,
		client:     httpclient.Client,
		log:        log.New(io.Discard, "", log.LstdFlags),
		cookieName: DefaultSessionCookieName,
		chunkSize:  DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.cachePath != "" {
		if err := c.loadCache(); err != nil {
			return nil, fmt.Errorf("failed to load session cache: %w", err)
		}
	}
	return c, nil
}

// Null produces a Client suitable for testing that sends every request
// through rt and has no session cache.
func Null(database string, rt http.RoundTripper) *Client {
	return &Client{
		host:       "localhost",
		port:       DefaultPort,
		database:   database,
		client:     httpclient.WithTransport(rt),
		log:        log.New(io.Discard, "", log.LstdFlags),
		cookieName: DefaultSessionCookieName,
		chunkSize:  DefaultChunkSize,
	}
}

// Database returns the name of the database the client addresses.
func (c *Client) Database() string {
	return c.database
}

// URL renders path against the gateway: scheme://host[:port]path, leaving
// the port out when it is 80.
func (c *Client) URL(path string) string {
	return c.url(c.scheme(), path)
}

func (c *Client) scheme() string {
	if c.secure {
		return "https"
	}
	return "http"
}

func (c *Client) url(scheme, path string) string {
	portSuffix := ""
	if c.port != DefaultPort {
		portSuffix = fmt.Sprintf(":%d", c.port)
	}
	return fmt.Sprintf("%s://%s%s%s", scheme, c.host, portSuffix, path)
}

func (c *Client) dbPath(segments ...string) string {
	b := &strings.Builder{}
	b.WriteString("/")
	b.WriteString(c.database)
	for _, s := range segments {
		b.WriteString("/")
		b.WriteString(s)
	}
	return b.String()
}
