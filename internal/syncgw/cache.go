package syncgw

import (
	"encoding/json"
	"errors"
	"os"
	"path"
	"time"
)

// Cache is the on-disk form of the session cache, keyed by database URL.
type Cache struct {
	Sessions map[string]Session `json:"sessions"`
}

// DefaultCachePath returns the session cache location under XDG_DATA_HOME,
// falling back to ~/.local/share.
func DefaultCachePath() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataHome = path.Join(home, ".local", "share")
	}
	return path.Join(dataHome, "gh-syncgw", "sessions.json"), nil
}

func (c *Client) cacheKey() string {
	return c.URL(c.dbPath())
}

func readCache(cachePath string) (*Cache, error) {
	cache := &Cache{}
	content, err := os.ReadFile(cachePath)
	if errors.Is(err, os.ErrNotExist) {
		return cache, nil
	} else if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(content, cache); err != nil {
		return nil, err
	}
	return cache, nil
}

func (c *Client) loadCache() error {
	cache, err := readCache(c.cachePath)
	if err != nil {
		return err
	}

	s, ok := cache.Sessions[c.cacheKey()]
	if !ok {
		return nil
	}
	if expires, ok := s.Expires(); ok && expires.Before(time.Now()) {
		c.log.Printf("cached session for %s expired at %s", c.cacheKey(), expires)
		return nil
	}
	c.SetSession(&s)
	return nil
}

// saveSession records s for this client's database, or removes the entry
// when s is nil. Entries for other databases are preserved.
func (c *Client) saveSession(s *Session) error {
	cache, err := readCache(c.cachePath)
	if err != nil {
		return err
	}
	if cache.Sessions == nil {
		cache.Sessions = map[string]Session{}
	}
	if s == nil {
		delete(cache.Sessions, c.cacheKey())
	} else {
		cache.Sessions[c.cacheKey()] = *s
	}

	bs, err := json.Marshal(cache)
	if err != nil {
		return err
	}

	err = os.MkdirAll(path.Dir(c.cachePath), 0755)
	if err != nil {
		return err
	}

	return os.WriteFile(c.cachePath, bs, 0600)
}
