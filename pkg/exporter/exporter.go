package exporter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hellenic-development/datamine-exporter/pkg/extractor"

	"google.golang.org/api/sheets/v4"
)

// Format selects what a sheet file contains.
type Format string

const (
	// FormatGrid writes the sheet's grid data exactly as returned by the API.
	FormatGrid Format = "grid"
	// FormatRows writes one JSON object per row, keyed by the normalized column titles.
	FormatRows Format = "rows"
)

// ParseFormat validates a format name. An empty name selects FormatGrid.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatGrid:
		return FormatGrid, nil
	case FormatRows:
		return FormatRows, nil
	default:
		return "", fmt.Errorf("invalid format %q (must be grid or rows)", s)
	}
}

// SheetFile describes one written sheet export.
type SheetFile struct {
	Title    string
	Name     string // file name without extension, unique within the export
	FileName string
	Path     string
}

// SheetNames returns the collision-free file names for every sheet of ss, in order.
func SheetNames(ss *sheets.Spreadsheet) []string {
	titles := make([]string, len(ss.Sheets))
	for i, sheet := range ss.Sheets {
		titles[i] = extractor.Title(sheet)
	}
	return FileNames(titles)
}

// WriteSheets writes one <name>.json file per sheet into dir, creating dir if needed.
// Any failure aborts the export.
func WriteSheets(dir string, ss *sheets.Spreadsheet, format Format) ([]SheetFile, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %q: %w", dir, err)
	}

	names := SheetNames(ss)
	files := make([]SheetFile, 0, len(ss.Sheets))

	for i, sheet := range ss.Sheets {
		title := extractor.Title(sheet)

		data, err := encodeSheet(sheet, format)
		if err != nil {
			return nil, fmt.Errorf("failed to encode sheet %q: %w", title, err)
		}

		file := SheetFile{
			Title:    title,
			Name:     names[i],
			FileName: names[i] + ".json",
		}
		file.Path = filepath.Join(dir, file.FileName)

		if err := os.WriteFile(file.Path, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write %q: %w", file.Path, err)
		}

		files = append(files, file)
	}

	return files, nil
}

func encodeSheet(sheet *sheets.Sheet, format Format) ([]byte, error) {
	var v any
	switch format {
	case FormatRows:
		rows, err := extractor.Rows(sheet)
		if err != nil {
			return nil, err
		}
		v = rows
	default:
		grid := sheet.Data
		if grid == nil {
			grid = []*sheets.GridData{}
		}
		v = grid
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}

	return append(data, '\n'), nil
}
