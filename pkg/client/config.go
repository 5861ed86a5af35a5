// Package client holds the platform connection settings and the executor
// decorators that sit between the traversal engine and the HTTP layer:
// blocking waits with a timeout, circuit breaking and retries.
package client

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultAuthURL is the OAuth endpoint of the platform
	DefaultAuthURL = "https://auth.sphere.io"
	// DefaultAPIURL is the API endpoint of the platform
	DefaultAPIURL = "https://api.sphere.io"
	// DefaultScope grants full access to a project
	DefaultScope = "manage_project"
	// DefaultPageSize is used by traversals that do not choose a page size
	DefaultPageSize int64 = 500
	// MaxPageSize is the largest limit the API accepts
	MaxPageSize int64 = 500
	// DefaultTimeout bounds blocking calls
	DefaultTimeout = 30 * time.Second
)

// Config holds the credentials and endpoints of one project.
type Config struct {
	ProjectKey   string
	ClientID     string
	ClientSecret string
	AuthURL      string
	APIURL       string
	Scopes       []string
	PageSize     int64
	Timeout      time.Duration
}

// NewConfig creates a config with the default endpoints, scope, page size
// and timeout.
func NewConfig(projectKey, clientID, clientSecret string) *Config {
	return &Config{
		ProjectKey:   projectKey,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		AuthURL:      DefaultAuthURL,
		APIURL:       DefaultAPIURL,
		Scopes:       []string{DefaultScope},
		PageSize:     DefaultPageSize,
		Timeout:      DefaultTimeout,
	}
}

// ConfigFromEnv loads a config from CTP_* environment variables and
// validates it.
func ConfigFromEnv() (*Config, error) {
	cfg := &Config{
		ProjectKey:   os.Getenv("CTP_PROJECT_KEY"),
		ClientID:     os.Getenv("CTP_CLIENT_ID"),
		ClientSecret: os.Getenv("CTP_CLIENT_SECRET"),
		AuthURL:      getEnv("CTP_AUTH_URL", DefaultAuthURL),
		APIURL:       getEnv("CTP_API_URL", DefaultAPIURL),
		Scopes:       splitCSV(getEnv("CTP_SCOPES", DefaultScope)),
	}

	pageSize, err := strconv.ParseInt(getEnv("CTP_PAGE_SIZE", strconv.FormatInt(DefaultPageSize, 10)), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse CTP_PAGE_SIZE: %w", err)
	}
	cfg.PageSize = pageSize

	timeout, err := time.ParseDuration(getEnv("CTP_TIMEOUT", DefaultTimeout.String()))
	if err != nil {
		return nil, fmt.Errorf("parse CTP_TIMEOUT: %w", err)
	}
	cfg.Timeout = timeout

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []string
	if c.ProjectKey == "" {
		errs = append(errs, "CTP_PROJECT_KEY is required")
	}
	if c.ClientID == "" {
		errs = append(errs, "CTP_CLIENT_ID is required")
	}
	if c.ClientSecret == "" {
		errs = append(errs, "CTP_CLIENT_SECRET is required")
	}
	if c.AuthURL == "" {
		errs = append(errs, "CTP_AUTH_URL must not be empty")
	}
	if c.APIURL == "" {
		errs = append(errs, "CTP_API_URL must not be empty")
	}
	if len(c.Scopes) == 0 {
		errs = append(errs, "CTP_SCOPES must name at least one scope")
	}
	if c.PageSize <= 0 || c.PageSize > MaxPageSize {
		errs = append(errs, fmt.Sprintf("CTP_PAGE_SIZE must be between 1 and %d", MaxPageSize))
	}
	if c.Timeout <= 0 {
		errs = append(errs, "CTP_TIMEOUT must be > 0")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// RawScopes returns the scopes qualified with the project key, as sent in
// token requests.
func (c *Config) RawScopes() []string {
	raw := make([]string, 0, len(c.Scopes))
	for _, scope := range c.Scopes {
		raw = append(raw, scope+":"+c.ProjectKey)
	}
	return raw
}

// String hides the client secret.
func (c *Config) String() string {
	return fmt.Sprintf("client.Config{project=%s client=%s auth=%s api=%s scopes=%v}",
		c.ProjectKey, c.ClientID, c.AuthURL, c.APIURL, c.Scopes)
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trim := strings.TrimSpace(p)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}
