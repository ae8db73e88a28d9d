package datamineexporter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/hellenic-development/datamine-exporter/pkg/spreadsheet"

	"google.golang.org/api/sheets/v4"
)

// datamineJSON builds a Sheets API response whose image formulas point at imageBase.
func datamineJSON(imageBase string) string {
	return fmt.Sprintf(`{
  "spreadsheetId": %[2]q,
  "properties": {"title": "Datamine"},
  "sheets": [
    {
      "properties": {"sheetId": 0, "title": "Recipes"},
      "data": [{"rowData": [
        {"values": [{"effectiveValue": {"stringValue": "Unique Entry ID"}}, {"effectiveValue": {"stringValue": "Name"}}]},
        {"values": [{"effectiveValue": {"stringValue": "r1"}}, {"effectiveValue": {"stringValue": "Bread"}}]}
      ]}]
    },
    {
      "properties": {"sheetId": 1, "title": "Items"},
      "data": [{"rowData": [
        {"values": [{"effectiveValue": {"stringValue": "Name"}}, {"effectiveValue": {"stringValue": "Image"}}]},
        {"values": [{"effectiveValue": {"stringValue": "Apple"}}, {"userEnteredValue": {"formulaValue": "=IMAGE(\"%[1]s/apple.png\")"}}]},
        {"values": [{"effectiveValue": {"stringValue": "Pear"}}, {"userEnteredValue": {"formulaValue": "=IMAGE(\"%[1]s/broken.png\")"}}]}
      ]}]
    },
    {
      "properties": {"sheetId": 2, "title": "Items"},
      "data": [{"rowData": [{"values": [{"effectiveValue": {"numberValue": 1.5}}]}]}]
    }
  ]
}`, imageBase, testSpreadsheetID)
}

const testSpreadsheetID = "test-datamine"

type fakeServer struct {
	*httptest.Server
	apiRequests atomic.Int32
}

func newFakeServer(t *testing.T, status int) *fakeServer {
	t.Helper()

	s := &fakeServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/v4/spreadsheets/"):
			s.apiRequests.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			if status != http.StatusOK {
				w.Write([]byte(`{"error": {"code": 403, "message": "API key not valid", "status": "PERMISSION_DENIED"}}`))
				return
			}
			w.Write([]byte(datamineJSON(s.URL + "/images")))
		case r.URL.Path == "/images/apple.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("apple-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *fakeServer) options(t *testing.T, envFile string) Options {
	return Options{
		EnvFile:       envFile,
		SpreadsheetID: testSpreadsheetID,
		Endpoint:      s.URL + "/",
		OutputDir:     filepath.Join(t.TempDir(), "export"),
		HTTPClient:    s.Client(),
	}
}

func writeEnvFile(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("API_KEY=test-key\n"), 0644); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	return path
}

type recordingLogger struct {
	warnings []string
}

func (l *recordingLogger) Infof(string, ...any) {}
func (l *recordingLogger) Warnf(f string, a ...any) {
	l.warnings = append(l.warnings, fmt.Sprintf(f, a...))
}
func (l *recordingLogger) Errorf(string, ...any) {}

func TestRun_WritesOneFilePerSheet(t *testing.T) {
	srv := newFakeServer(t, http.StatusOK)
	opts := srv.options(t, writeEnvFile(t))

	result, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	entries, err := os.ReadDir(opts.OutputDir)
	if err != nil {
		t.Fatalf("ReadDir() error: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	want := []string{"Items-2.json", "Items.json", "Recipes.json"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("output files = %v, want %v", names, want)
	}

	for i, f := range result.Files {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			t.Fatalf("ReadFile() error: %v", err)
		}
		wantBytes, _ := json.MarshalIndent(result.Spreadsheet.Sheets[i].Data, "", "  ")
		if !bytes.Equal(data, append(wantBytes, '\n')) {
			t.Errorf("%s does not hold the sheet's grid data:\n%s", f.FileName, data)
		}

		var grid []*sheets.GridData
		if err := json.Unmarshal(data, &grid); err != nil {
			t.Errorf("%s is not valid grid JSON: %v", f.FileName, err)
		}
	}

	if result.Images != nil {
		t.Errorf("Result.Images = %+v, want nil without image export", result.Images)
	}
	if got := srv.apiRequests.Load(); got != 1 {
		t.Errorf("API received %d requests, want 1", got)
	}
}

func TestRun_MissingConfigMakesNoRequest(t *testing.T) {
	srv := newFakeServer(t, http.StatusOK)
	opts := srv.options(t, filepath.Join(t.TempDir(), "missing.env"))

	_, err := Run(context.Background(), opts)
	if err == nil {
		t.Fatal("Run() expected an error without a config file")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Run() error = %v, want it to wrap fs.ErrNotExist", err)
	}
	if got := srv.apiRequests.Load(); got != 0 {
		t.Errorf("API received %d requests, want 0", got)
	}
	if _, err := os.Stat(opts.OutputDir); !os.IsNotExist(err) {
		t.Errorf("output directory exists after a failed run (stat error: %v)", err)
	}
}

func TestRun_ForbiddenWritesNothing(t *testing.T) {
	srv := newFakeServer(t, http.StatusForbidden)
	opts := srv.options(t, writeEnvFile(t))

	_, err := Run(context.Background(), opts)
	if err == nil {
		t.Fatal("Run() expected an error for status 403")
	}

	var apiErr *spreadsheet.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusForbidden {
		t.Errorf("Run() error = %v, want an APIError with status 403", err)
	}
	if _, err := os.Stat(opts.OutputDir); !os.IsNotExist(err) {
		t.Errorf("output directory exists after a failed fetch (stat error: %v)", err)
	}
}

func TestRun_ImagesWithOneBrokenLink(t *testing.T) {
	srv := newFakeServer(t, http.StatusOK)
	logger := &recordingLogger{}
	opts := srv.options(t, writeEnvFile(t))
	opts.DownloadImages = true
	opts.Logger = logger

	result, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if len(result.Files) != 3 {
		t.Errorf("Run() wrote %d sheet files, want 3", len(result.Files))
	}
	if result.Images == nil {
		t.Fatal("Result.Images = nil, want the image export result")
	}
	if len(result.Images.Assets) != 1 || result.Images.Assets[0].FileName != "Items/apple.png" {
		t.Errorf("image assets = %+v, want only Items/apple.png", result.Images.Assets)
	}
	if len(result.Images.Errors) != 1 || !strings.Contains(result.Images.Errors[0].Error(), "broken.png") {
		t.Errorf("image errors = %v, want the broken.png failure", result.Images.Errors)
	}

	data, err := os.ReadFile(filepath.Join(opts.OutputDir, "images", "Items", "apple.png"))
	if err != nil || string(data) != "apple-bytes" {
		t.Errorf("apple.png = %q, %v; want %q", data, err, "apple-bytes")
	}

	reported := false
	for _, w := range logger.warnings {
		if strings.Contains(w, "broken.png") {
			reported = true
		}
	}
	if !reported {
		t.Errorf("broken image was not reported, warnings: %q", logger.warnings)
	}
}

func TestRun_Idempotent(t *testing.T) {
	srv := newFakeServer(t, http.StatusOK)
	opts := srv.options(t, writeEnvFile(t))

	first, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("first Run() error: %v", err)
	}
	before := make(map[string][]byte)
	for _, f := range first.Files {
		before[f.Path], _ = os.ReadFile(f.Path)
	}

	second, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("second Run() error: %v", err)
	}
	if len(second.Files) != len(first.Files) {
		t.Fatalf("second Run() wrote %d files, want %d", len(second.Files), len(first.Files))
	}
	for _, f := range second.Files {
		after, _ := os.ReadFile(f.Path)
		if !bytes.Equal(after, before[f.Path]) {
			t.Errorf("%s changed between runs", f.FileName)
		}
	}
}

func TestRun_ListWritesNothing(t *testing.T) {
	srv := newFakeServer(t, http.StatusOK)
	opts := srv.options(t, "")
	opts.APIKey = "inline-key"
	opts.List = true

	result, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !strings.Contains(result.Listing, "- Recipes\n") || !strings.Contains(result.Listing, "`unique_entry_id`") {
		t.Errorf("Listing = %q, want sheet and column titles", result.Listing)
	}
	if _, err := os.Stat(opts.OutputDir); !os.IsNotExist(err) {
		t.Errorf("List mode created the output directory (stat error: %v)", err)
	}
}

func TestRun_Extras(t *testing.T) {
	srv := newFakeServer(t, http.StatusOK)
	opts := srv.options(t, writeEnvFile(t))
	opts.Format = "rows"
	opts.ExportIDs = true
	opts.IDPrefix = "<"
	opts.IDSuffix = ">"
	opts.WorkbookPath = filepath.Join(t.TempDir(), "datamine.xlsx")
	opts.CacheDir = t.TempDir()

	result, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	ids, err := os.ReadFile(result.IDsPath)
	if err != nil {
		t.Fatalf("ReadFile(%q) error: %v", result.IDsPath, err)
	}
	if want := "Recipes\n   <r1>\nItems\nItems\n"; string(ids) != want {
		t.Errorf("unique entry IDs = %q, want %q", ids, want)
	}

	rows, err := os.ReadFile(filepath.Join(opts.OutputDir, "Recipes.json"))
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	var got []map[string]any
	if err := json.Unmarshal(rows, &got); err != nil {
		t.Fatalf("rows file is not valid JSON: %v", err)
	}
	if len(got) != 1 || got[0]["name"] != "Bread" {
		t.Errorf("Recipes rows = %v, want one Bread row", got)
	}

	if _, err := os.Stat(opts.WorkbookPath); err != nil {
		t.Errorf("workbook not written: %v", err)
	}

	// A warm cache serves the second run without touching the API.
	if _, err := Run(context.Background(), opts); err != nil {
		t.Fatalf("cached Run() error: %v", err)
	}
	if got := srv.apiRequests.Load(); got != 1 {
		t.Errorf("API received %d requests with a warm cache, want 1", got)
	}
}

func TestRun_InvalidFormat(t *testing.T) {
	srv := newFakeServer(t, http.StatusOK)
	opts := srv.options(t, writeEnvFile(t))
	opts.Format = "csv"

	if _, err := Run(context.Background(), opts); err == nil {
		t.Fatal("Run() expected an error for an unknown format")
	}
	if got := srv.apiRequests.Load(); got != 0 {
		t.Errorf("API received %d requests, want 0", got)
	}
}
