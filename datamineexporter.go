package datamineexporter

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/hellenic-development/datamine-exporter/pkg/config"
	"github.com/hellenic-development/datamine-exporter/pkg/exporter"
	"github.com/hellenic-development/datamine-exporter/pkg/formatter"
	"github.com/hellenic-development/datamine-exporter/pkg/imager"
	"github.com/hellenic-development/datamine-exporter/pkg/spreadsheet"

	"google.golang.org/api/sheets/v4"
)

// UniqueEntryIDsFile is the listing written by Options.ExportIDs, inside the output directory.
const UniqueEntryIDsFile = "unique_entry_ids.txt"

// Options configures the export.
type Options struct {
	EnvFile       string // dotenv file holding API_KEY, default ".env"
	APIKey        string // takes precedence over EnvFile when set
	SpreadsheetID string // default spreadsheet.DatamineSpreadsheetID
	Endpoint      string // Sheets API base URL, default is Google's
	CacheDir      string // empty = always download

	OutputDir string          // default "export"
	Format    exporter.Format // "grid" (default) or "rows"
	List      bool            // only render the sheet/column overview, write nothing

	DownloadImages bool
	ImageDir       string       // default "images", relative to OutputDir unless absolute
	Parallel       int          // max concurrent image downloads, default 5
	HTTPClient     *http.Client // used for image downloads

	ExportIDs bool // write unique_entry_ids.txt
	IDPrefix  string
	IDSuffix  string

	WorkbookPath string // also save an .xlsx copy when set

	Logger Logger // nil = no logging
}

// Logger receives progress messages. A nil Logger means silent operation.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Result contains the export output.
type Result struct {
	Spreadsheet  *sheets.Spreadsheet
	Files        []exporter.SheetFile
	Images       *imager.ExportResult // nil unless images were requested
	IDsPath      string
	WorkbookPath string
	Listing      string // set in List mode
}

func (o *Options) logInfo(f string, a ...any) {
	if o.Logger != nil {
		o.Logger.Infof(f, a...)
	}
}

func (o *Options) logWarn(f string, a ...any) {
	if o.Logger != nil {
		o.Logger.Warnf(f, a...)
	}
}

// Run executes the export pipeline: load the API key, fetch the spreadsheet,
// then write the sheet files and the optional extras. Nothing is written
// unless the fetch succeeds. Image download failures are reported in
// Result.Images and do not fail the run.
func Run(ctx context.Context, opts Options) (*Result, error) {
	// Apply defaults.
	if opts.SpreadsheetID == "" {
		opts.SpreadsheetID = spreadsheet.DatamineSpreadsheetID
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "export"
	}
	if opts.ImageDir == "" {
		opts.ImageDir = "images"
	}
	if !filepath.IsAbs(opts.ImageDir) {
		opts.ImageDir = filepath.Join(opts.OutputDir, opts.ImageDir)
	}
	if opts.Parallel <= 0 {
		opts.Parallel = imager.DefaultParallelDownloads
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = newHTTPClient()
	}

	format, err := exporter.ParseFormat(string(opts.Format))
	if err != nil {
		return nil, err
	}

	apiKey := opts.APIKey
	if apiKey == "" {
		opts.logInfo("Loading API key from %s...", displayPath(opts.EnvFile))
		cfg, err := config.Load(opts.EnvFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		apiKey = cfg.APIKey
	}

	var clientOpts []spreadsheet.Option
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, spreadsheet.WithEndpoint(opts.Endpoint))
	}
	if opts.CacheDir != "" {
		clientOpts = append(clientOpts, spreadsheet.WithCacheDir(opts.CacheDir))
	}

	client, err := spreadsheet.NewClient(ctx, apiKey, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	opts.logInfo("Fetching spreadsheet %s...", opts.SpreadsheetID)
	ss, err := client.Get(ctx, opts.SpreadsheetID)
	if err != nil {
		return nil, fmt.Errorf("fetch spreadsheet: %w", err)
	}
	opts.logInfo("Retrieved %d sheet(s)", len(ss.Sheets))

	result := &Result{Spreadsheet: ss}

	if opts.List {
		result.Listing = formatter.ToMarkdown(ss)
		return result, nil
	}

	opts.logInfo("Writing %s sheet files to %s...", format, opts.OutputDir)
	result.Files, err = exporter.WriteSheets(opts.OutputDir, ss, format)
	if err != nil {
		return nil, fmt.Errorf("write sheets: %w", err)
	}
	for _, f := range result.Files {
		if f.Name != exporter.SanitizeFileName(f.Title) {
			opts.logWarn("Sheet %q shares its file name with another sheet, written as %s", f.Title, f.FileName)
		}
	}

	if opts.ExportIDs {
		path := filepath.Join(opts.OutputDir, UniqueEntryIDsFile)
		opts.logInfo("Writing unique entry IDs to %s...", path)
		if err := exporter.WriteUniqueEntryIDs(path, ss, opts.IDPrefix, opts.IDSuffix); err != nil {
			return nil, fmt.Errorf("write unique entry IDs: %w", err)
		}
		result.IDsPath = path
	}

	if opts.WorkbookPath != "" {
		opts.logInfo("Saving workbook to %s...", opts.WorkbookPath)
		if err := exporter.WriteWorkbook(opts.WorkbookPath, ss); err != nil {
			return nil, fmt.Errorf("write workbook: %w", err)
		}
		result.WorkbookPath = opts.WorkbookPath
	}

	// Image export (opt-in).
	if opts.DownloadImages {
		downloads := imager.Plan(ss, exporter.SheetNames(ss))
		opts.logInfo("Downloading %d image(s) to %s...", len(downloads), opts.ImageDir)

		images, err := imager.DownloadImages(ctx, opts.HTTPClient, opts.ImageDir, downloads, opts.Parallel)
		if err != nil {
			return nil, fmt.Errorf("download images: %w", err)
		}
		for _, dlErr := range images.Errors {
			opts.logWarn("%v", dlErr)
		}
		opts.logInfo("Downloaded %d image(s)", len(images.Assets))
		result.Images = images
	}

	return result, nil
}

// newHTTPClient returns the client used for image downloads.
func newHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	return &http.Client{
		Timeout:   2 * time.Minute,
		Transport: transport,
	}
}

func displayPath(path string) string {
	if path == "" {
		return config.DefaultPath
	}
	return path
}
