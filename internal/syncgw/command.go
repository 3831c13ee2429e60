package syncgw

import (
	"net/http"
	"strings"
)

// Credentials are sent as HTTP Basic authentication.
type Credentials struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Command describes a single request to the gateway. Commands are passed by
// value and the executor never modifies them.
type Command struct {
	Method      string
	Path        string
	Query       map[string]string
	Body        any
	Credentials *Credentials

	// Streaming commands have their response decoded as multipart instead
	// of being buffered.
	Streaming bool
}

var supportedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
}

func (cmd Command) validate() error {
	if !supportedMethods[strings.ToUpper(cmd.Method)] {
		return &UnsupportedMethodError{Method: cmd.Method}
	}
	return nil
}
