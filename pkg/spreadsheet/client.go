package spreadsheet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// DatamineSpreadsheetID identifies the public datamine spreadsheet the exporter downloads.
const DatamineSpreadsheetID = "13d_LAJPlxMa_DubPTuirkIV4DERBMXbrWQsmSh8ReK4"

// Client downloads spreadsheets, including their full grid data, from the Google Sheets API.
// It authenticates with a static API key, so only publicly readable spreadsheets are reachable.
type Client struct {
	service  *sheets.Service
	cacheDir string
}

type clientOptions struct {
	endpoint string
	cacheDir string
}

// Option configures a Client.
type Option func(*clientOptions)

// WithEndpoint overrides the Sheets API base URL, e.g. "http://127.0.0.1:8080/".
// The URL must end with a slash.
func WithEndpoint(endpoint string) Option {
	return func(o *clientOptions) { o.endpoint = endpoint }
}

// WithCacheDir enables the response cache. A spreadsheet found in dir is returned
// without a network request; a freshly downloaded one is stored there.
func WithCacheDir(dir string) Option {
	return func(o *clientOptions) { o.cacheDir = dir }
}

// NewClient creates a Sheets API client that sends apiKey as the "key" query parameter.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	clientOpts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if o.endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(o.endpoint))
	}

	service, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Client{service: service, cacheDir: o.cacheDir}, nil
}

// Get retrieves the spreadsheet with its grid data. When the cache is enabled and
// already holds the spreadsheet, no request is made.
func (c *Client) Get(ctx context.Context, spreadsheetID string) (*sheets.Spreadsheet, error) {
	if c.cacheDir != "" {
		cached, err := c.readCache(spreadsheetID)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			return cached, nil
		}
	}

	ss, err := c.fetch(ctx, spreadsheetID)
	if err != nil {
		return nil, err
	}

	if c.cacheDir != "" {
		if err := c.writeCache(spreadsheetID, ss); err != nil {
			return nil, err
		}
	}

	return ss, nil
}

// fetch issues the single GET spreadsheets/{id}?includeGridData=true request.
func (c *Client) fetch(ctx context.Context, spreadsheetID string) (*sheets.Spreadsheet, error) {
	call := c.service.Spreadsheets.Get(spreadsheetID).IncludeGridData(true).Context(ctx)
	call.Header().Set("Accept", "application/json")

	ss, err := call.Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code != 0 {
			return nil, &APIError{Status: apiErr.Code, Body: apiErr.Body}
		}
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	return ss, nil
}

// APIError reports a non-success HTTP status returned by the Sheets API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed with status %d (%s): %s", e.Status, http.StatusText(e.Status), e.Body)
}

// CachePath returns the file the cache uses for spreadsheetID.
func (c *Client) CachePath(spreadsheetID string) string {
	return filepath.Join(c.cacheDir, spreadsheetID+".json")
}

func (c *Client) readCache(spreadsheetID string) (*sheets.Spreadsheet, error) {
	path := c.CachePath(spreadsheetID)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cached spreadsheet %q: %w", path, err)
	}

	var ss sheets.Spreadsheet
	if err := json.Unmarshal(data, &ss); err != nil {
		return nil, fmt.Errorf("failed to parse cached spreadsheet %q: %w", path, err)
	}

	return &ss, nil
}

func (c *Client) writeCache(spreadsheetID string, ss *sheets.Spreadsheet) error {
	if err := os.MkdirAll(c.cacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory %q: %w", c.cacheDir, err)
	}

	data, err := json.Marshal(ss)
	if err != nil {
		return fmt.Errorf("failed to encode spreadsheet for cache: %w", err)
	}

	path := c.CachePath(spreadsheetID)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write cached spreadsheet %q: %w", path, err)
	}

	return nil
}
