// Package config resolves ERP connection settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config is everything needed to reach one ERPNext site. Values come from
// a .env file when present, plain environment variables otherwise; CLI
// flags override both at the call site.
type Config struct {
	BaseURL     string // ERP_URL
	APIKey      string // ERP_API_KEY
	APISecret   string // ERP_API_SECRET
	DeviceID    string // ERP_DEVICE_ID, stamped onto check-ins
	MockHistory bool   // ERP_MOCK_HISTORY, serve canned attendance rows
}

// Load reads the environment, merging in a .env file if one exists in the
// working directory. A missing .env is not an error.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		// A present-but-broken .env should not be silent.
		fmt.Fprintf(os.Stderr, "warning: could not read .env: %v\n", err)
	}

	return Config{
		BaseURL:     strings.TrimRight(os.Getenv("ERP_URL"), "/"),
		APIKey:      os.Getenv("ERP_API_KEY"),
		APISecret:   os.Getenv("ERP_API_SECRET"),
		DeviceID:    os.Getenv("ERP_DEVICE_ID"),
		MockHistory: isTruthy(os.Getenv("ERP_MOCK_HISTORY")),
	}
}

// Validate reports configuration errors before any network call is made.
// Credentials are optional (a password login can supply a session); the
// base URL is not.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("ERP_URL is not set")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("ERP_URL %q must start with http:// or https://", c.BaseURL)
	}
	if (c.APIKey == "") != (c.APISecret == "") {
		return errors.New("ERP_API_KEY and ERP_API_SECRET must be set together")
	}
	return nil
}

// HasTokenAuth reports whether API-key credentials are configured.
func (c Config) HasTokenAuth() bool {
	return c.APIKey != "" && c.APISecret != ""
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
