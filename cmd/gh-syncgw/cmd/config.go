package cmd

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/cli/go-gh/pkg/config"
	"github.com/rneatherway/gh-syncgw/internal/syncgw"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// passwordEnv supplies passwords so that they stay out of shell history.
const passwordEnv = "SYNCGW_PASSWORD"

// sessionEnv carries a session cookie exported by "login --print-session".
// It takes precedence over the session cache.
const sessionEnv = "SYNCGW_SESSION"

type configGetter interface {
	Get(keys []string) (string, error)
}

// getFlagOrElseConfig returns the flag value when it was given on the
// command line, otherwise extensions.syncgw.<key> from gh's configuration,
// otherwise the flag's default.
func getFlagOrElseConfig(cfg configGetter, flags *pflag.FlagSet, key string) (string, error) {
	flag := flags.Lookup(key)
	if flag == nil {
		return "", fmt.Errorf("no flag named %q", key)
	}
	if flag.Changed {
		return flag.Value.String(), nil
	}

	if cfg != nil {
		value, err := cfg.Get([]string{"extensions", "syncgw", key})
		var notFound *config.KeyNotFoundError
		if err != nil && !errors.As(err, &notFound) {
			return "", err
		}
		if err == nil && value != "" {
			return value, nil
		}
	}
	return flag.DefValue, nil
}

type settings struct {
	host      string
	port      int
	adminPort int
	database  string
	secure    bool
}

func resolveSettings(cfg configGetter, flags *pflag.FlagSet) (settings, error) {
	s := settings{}
	values := map[string]string{}
	for _, key := range []string{"host", "port", "admin-port", "database", "secure"} {
		value, err := getFlagOrElseConfig(cfg, flags, key)
		if err != nil {
			return s, err
		}
		values[key] = value
	}

	s.host = values["host"]
	if s.host == "" {
		return s, errors.New("no host given: pass --host or set extensions.syncgw.host in gh's config")
	}
	s.database = values["database"]
	if s.database == "" {
		return s, errors.New("no database given: pass --database or set extensions.syncgw.database in gh's config")
	}

	var err error
	if s.port, err = strconv.Atoi(values["port"]); err != nil {
		return s, fmt.Errorf("invalid port %q: %w", values["port"], err)
	}
	if s.adminPort, err = strconv.Atoi(values["admin-port"]); err != nil {
		return s, fmt.Errorf("invalid admin port %q: %w", values["admin-port"], err)
	}
	if s.secure, err = strconv.ParseBool(values["secure"]); err != nil {
		return s, fmt.Errorf("invalid secure setting %q: %w", values["secure"], err)
	}
	return s, nil
}

func newLogger() *log.Logger {
	logger := log.New(io.Discard, "", log.LstdFlags)
	if verbose {
		logger = log.Default()
	}
	return logger
}

// newClient builds a client from flags and config. Admin clients address the
// admin port.
func newClient(cmd *cobra.Command, admin bool) (*syncgw.Client, error) {
	cfg, err := config.Read()
	if err != nil {
		return nil, err
	}

	s, err := resolveSettings(cfg, cmd.Flags())
	if err != nil {
		return nil, err
	}

	port := s.port
	if admin {
		port = s.adminPort
	}

	opts := []syncgw.Option{syncgw.WithLogger(newLogger())}
	cachePath, err := syncgw.DefaultCachePath()
	if err != nil {
		newLogger().Printf("session cache disabled: %v", err)
	} else {
		opts = append(opts, syncgw.WithSessionCache(cachePath))
	}

	client, err := syncgw.New(syncgw.Config{
		Host:     s.host,
		Port:     port,
		Secure:   s.secure,
		Database: s.database,
	}, opts...)
	if err != nil {
		return nil, err
	}
	applySessionEnv(client)
	return client, nil
}

func applySessionEnv(client *syncgw.Client) {
	if value := os.Getenv(sessionEnv); value != "" {
		client.SetSession(&syncgw.Session{Name: syncgw.DefaultSessionCookieName, Value: value})
	}
}

// credentials returns Basic credentials for user, with the password taken
// from SYNCGW_PASSWORD. An empty user means none.
func credentials(user string) (*syncgw.Credentials, error) {
	if user == "" {
		return nil, nil
	}
	password, ok := os.LookupEnv(passwordEnv)
	if !ok {
		return nil, fmt.Errorf("%s must be set to authenticate as %q", passwordEnv, user)
	}
	return &syncgw.Credentials{Name: user, Password: password}, nil
}
