package syncgw

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

// The calls in this file need the gateway's admin interface, so they are
// normally made with a Client configured for the admin port.

type View struct {
	Map    string `json:"map"`
	Reduce string `json:"reduce,omitempty"`
}

type DesignDoc struct {
	Language string          `json:"language,omitempty"`
	Views    map[string]View `json:"views,omitempty"`
}

func (c *Client) designPath(name string) string {
	return c.dbPath("_design", url.PathEscape(name))
}

func (c *Client) PutDesignDoc(ctx context.Context, name string, ddoc any) (*DocumentResult, error) {
	if name == "" {
		return nil, errors.New("design document name is required")
	}
	return c.write(ctx, Command{
		Method: http.MethodPut,
		Path:   c.designPath(name),
		Body:   ddoc,
	})
}

// GetDesignDoc decodes the named design document into v.
func (c *Client) GetDesignDoc(ctx context.Context, name string, v any) error {
	if name == "" {
		return errors.New("design document name is required")
	}
	resp, err := c.Execute(ctx, Command{Method: http.MethodGet, Path: c.designPath(name)})
	if err != nil {
		return err
	}
	return resp.JSON(v)
}

func (c *Client) DeleteDesignDoc(ctx context.Context, name string) error {
	if name == "" {
		return errors.New("design document name is required")
	}
	_, err := c.Execute(ctx, Command{Method: http.MethodDelete, Path: c.designPath(name)})
	return err
}

// User is a gateway user account. AllChannels is only ever returned by the
// gateway.
type User struct {
	Name          string   `json:"name"`
	Password      string   `json:"password,omitempty"`
	Email         string   `json:"email,omitempty"`
	Disabled      bool     `json:"disabled,omitempty"`
	AdminChannels []string `json:"admin_channels,omitempty"`
	AdminRoles    []string `json:"admin_roles,omitempty"`
	AllChannels   []string `json:"all_channels,omitempty"`
}

// CreateUser creates a new account with POST.
func (c *Client) CreateUser(ctx context.Context, user User) error {
	if user.Name == "" {
		return errors.New("user name is required")
	}
	_, err := c.Execute(ctx, Command{
		Method: http.MethodPost,
		Path:   c.dbPath("_user") + "/",
		Body:   user,
	})
	return err
}

// PutUser creates or replaces the account user.Name.
func (c *Client) PutUser(ctx context.Context, user User) error {
	if user.Name == "" {
		return errors.New("user name is required")
	}
	_, err := c.Execute(ctx, Command{
		Method: http.MethodPut,
		Path:   c.dbPath("_user", url.PathEscape(user.Name)),
		Body:   user,
	})
	return err
}

func (c *Client) GetUser(ctx context.Context, name string) (*User, error) {
	if name == "" {
		return nil, errors.New("user name is required")
	}
	resp, err := c.Execute(ctx, Command{
		Method: http.MethodGet,
		Path:   c.dbPath("_user", url.PathEscape(name)),
	})
	if err != nil {
		return nil, err
	}
	user := &User{}
	if err := resp.JSON(user); err != nil {
		return nil, err
	}
	return user, nil
}
