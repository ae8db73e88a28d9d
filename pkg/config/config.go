package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// DefaultPath is the configuration file read when no other path is given.
	DefaultPath = ".env"

	// KeyAPIKey is the entry holding the Google Sheets API key.
	KeyAPIKey = "API_KEY"
)

// ErrMissingAPIKey is returned when the configuration file has no usable API_KEY entry.
var ErrMissingAPIKey = errors.New("API_KEY is not set")

// Config holds the values the exporter needs before talking to the Sheets API.
type Config struct {
	APIKey string
}

// Load reads a dotenv-style file (KEY=value lines) and extracts the API key.
// The process environment is left untouched.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	apiKey := strings.TrimSpace(values[KeyAPIKey])
	if apiKey == "" {
		return nil, fmt.Errorf("config file %q: %w", path, ErrMissingAPIKey)
	}

	return &Config{APIKey: apiKey}, nil
}
