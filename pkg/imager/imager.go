package imager

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hellenic-development/datamine-exporter/pkg/extractor"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/sheets/v4"
)

// DefaultParallelDownloads bounds concurrent image downloads when no limit is given.
const DefaultParallelDownloads = 5

// Download is one planned image download.
type Download struct {
	Ref      extractor.ImageRef
	FileName string // relative to the image directory, e.g. "Items/apple.png"
}

// ExportedAsset represents a single downloaded image.
type ExportedAsset struct {
	Sheet    string
	URL      string
	FileName string
	Row      int
	Column   int
}

// ExportResult holds the results of an image export operation.
type ExportResult struct {
	Assets []ExportedAsset
	Errors []error // non-fatal per-image download failures
}

// Err combines the per-image failures into one error, or returns nil when every download succeeded.
func (r *ExportResult) Err() error {
	var result *multierror.Error
	for _, err := range r.Errors {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Plan lists the images referenced by every sheet of ss. sheetNames holds the
// per-sheet directory names, aligned with ss.Sheets. A URL referenced several
// times in one sheet is downloaded once; file names are made unique per sheet.
func Plan(ss *sheets.Spreadsheet, sheetNames []string) []Download {
	var downloads []Download

	for i, sheet := range ss.Sheets {
		seenURLs := make(map[string]bool)
		usedNames := make(map[string]bool) // track filename collisions

		for _, ref := range extractor.ImageRefs(sheet) {
			if seenURLs[ref.URL] {
				continue
			}
			seenURLs[ref.URL] = true

			fileName := buildFileName(ref)
			ext := path.Ext(fileName)
			base := strings.TrimSuffix(fileName, ext)
			for n := 2; usedNames[strings.ToLower(fileName)]; n++ {
				fileName = fmt.Sprintf("%s-%d%s", base, n, ext)
			}
			usedNames[strings.ToLower(fileName)] = true

			downloads = append(downloads, Download{
				Ref:      ref,
				FileName: path.Join(sheetNames[i], fileName),
			})
		}
	}

	return downloads
}

// DownloadImages fetches every planned download into dir with at most parallel
// requests in flight. A failing image is recorded in ExportResult.Errors and
// does not stop the others; only an unusable dir is fatal.
func DownloadImages(ctx context.Context, client *http.Client, dir string, downloads []Download, parallel int) (*ExportResult, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if parallel <= 0 {
		parallel = DefaultParallelDownloads
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory %q: %w", dir, err)
	}
	for _, d := range downloads {
		sub := filepath.Dir(filepath.Join(dir, filepath.FromSlash(d.FileName)))
		if err := os.MkdirAll(sub, 0755); err != nil {
			return nil, fmt.Errorf("failed to create image directory %q: %w", sub, err)
		}
	}

	result := &ExportResult{}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(parallel)

	for _, d := range downloads {
		d := d
		g.Go(func() error {
			destPath := filepath.Join(dir, filepath.FromSlash(d.FileName))
			if err := downloadFile(ctx, client, d.Ref.URL, destPath); err != nil {
				mu.Lock()
				result.Errors = append(result.Errors, fmt.Errorf("failed to download %s (sheet %q, row %d, column %d): %w",
					d.Ref.URL, d.Ref.Sheet, d.Ref.Row+1, d.Ref.Column+1, err))
				mu.Unlock()
				return nil
			}

			mu.Lock()
			result.Assets = append(result.Assets, ExportedAsset{
				Sheet:    d.Ref.Sheet,
				URL:      d.Ref.URL,
				FileName: d.FileName,
				Row:      d.Ref.Row,
				Column:   d.Ref.Column,
			})
			mu.Unlock()
			return nil
		})
	}

	// Downloads never return errors to the group; failures are collected above.
	_ = g.Wait()

	sort.Slice(result.Assets, func(i, j int) bool {
		return result.Assets[i].FileName < result.Assets[j].FileName
	})

	return result, nil
}

// downloadFile performs an HTTP GET and saves the response body to destPath.
func downloadFile(ctx context.Context, client *http.Client, rawURL, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP GET failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d downloading image", resp.StatusCode)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create file %q: %w", destPath, err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(destPath)
		return fmt.Errorf("failed to write file %q: %w", destPath, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("failed to write file %q: %w", destPath, err)
	}

	return nil
}

// buildFileName derives a file name from the last URL path segment.
// Falls back to the cell position when the URL has no usable name and
// appends the extension detected from the URL.
func buildFileName(ref extractor.ImageRef) string {
	name := ""
	if u, err := url.Parse(ref.URL); err == nil {
		name = path.Base(u.Path)
	}

	ext := path.Ext(name)
	name = sanitize(strings.TrimSuffix(name, ext))
	if name == "" {
		name = fmt.Sprintf("r%d-c%d", ref.Row+1, ref.Column+1)
	}

	return name + "." + detectExtensionFromURL(ref.URL)
}

// detectExtensionFromURL extracts the file extension from a URL path.
// Returns "png" as default if no extension can be determined.
func detectExtensionFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "png"
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
	switch ext {
	case "png", "jpg", "jpeg", "gif", "webp", "svg", "bmp", "ico":
		return ext
	default:
		return "png"
	}
}

// sanitize keeps ASCII letters, digits, '-', '_' and '.'; everything else becomes '_'.
func sanitize(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}

	return strings.Trim(sb.String(), "._")
}
