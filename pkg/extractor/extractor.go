package extractor

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"google.golang.org/api/sheets/v4"
)

// ErrNoGridData is returned for sheets fetched without grid data (or with an empty grid).
var ErrNoGridData = errors.New("no grid data")

// imageFormula matches =IMAGE("url", ...) formulas, which is how the datamine embeds icons.
var imageFormula = regexp.MustCompile(`(?i)^\s*=\s*IMAGE\(\s*"([^"]+)"`)

// ImageRef locates an image referenced by a cell.
type ImageRef struct {
	Sheet  string
	Row    int // 0-based, header row included
	Column int // 0-based
	URL    string
}

// Title returns the sheet tab name, or "" for a sheet without properties.
func Title(sheet *sheets.Sheet) string {
	if sheet == nil || sheet.Properties == nil {
		return ""
	}
	return sheet.Properties.Title
}

// ImageURL returns the URL of an =IMAGE("...") formula entered in cell.
func ImageURL(cell *sheets.CellData) (string, bool) {
	if cell == nil || cell.UserEnteredValue == nil || cell.UserEnteredValue.FormulaValue == nil {
		return "", false
	}

	matches := imageFormula.FindStringSubmatch(*cell.UserEnteredValue.FormulaValue)
	if len(matches) < 2 {
		return "", false
	}

	return matches[1], true
}

// CellText returns the textual value of a cell.
// The effective value wins; an empty effective value falls back to the URL of an
// image formula and then to the formatted value. Empty cells report false.
func CellText(cell *sheets.CellData) (string, bool) {
	if cell == nil {
		return "", false
	}

	if v := cell.EffectiveValue; v != nil {
		switch {
		case v.StringValue != nil:
			return *v.StringValue, true
		case v.NumberValue != nil:
			return strconv.FormatFloat(*v.NumberValue, 'f', -1, 64), true
		case v.BoolValue != nil:
			return strconv.FormatBool(*v.BoolValue), true
		}
	}

	if url, ok := ImageURL(cell); ok {
		return url, true
	}

	if cell.FormattedValue != "" {
		return cell.FormattedValue, true
	}

	return "", false
}

func gridRows(sheet *sheets.Sheet) ([]*sheets.RowData, error) {
	if sheet == nil || len(sheet.Data) == 0 || sheet.Data[0] == nil {
		return nil, ErrNoGridData
	}
	return sheet.Data[0].RowData, nil
}

// ColumnTitles returns the header row of a sheet in normalized form:
// lowercased, spaces translated to "_". Empty header cells are named column_<n>.
func ColumnTitles(sheet *sheets.Sheet) ([]string, error) {
	rows, err := gridRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", Title(sheet), err)
	}
	if len(rows) == 0 || rows[0] == nil {
		return nil, nil
	}

	titles := make([]string, len(rows[0].Values))
	for i, cell := range rows[0].Values {
		text, ok := CellText(cell)
		text = NormalizeColumnName(text)
		if !ok || text == "" {
			text = defaultColumnName(i)
		}
		titles[i] = text
	}

	return titles, nil
}

// NormalizeColumnName lowercases a header and translates spaces to underscores.
func NormalizeColumnName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

func defaultColumnName(index int) string {
	return fmt.Sprintf("column_%d", index+1)
}

// Rows returns every row after the header as an object keyed by column title.
// Values are strings, or nil for empty cells. Rows without any value are dropped.
func Rows(sheet *sheets.Sheet) ([]map[string]any, error) {
	columns, err := ColumnTitles(sheet)
	if err != nil {
		return nil, err
	}

	rows, _ := gridRows(sheet)
	result := make([]map[string]any, 0, len(rows))

	for i, row := range rows {
		if i == 0 || row == nil {
			continue
		}

		obj := make(map[string]any, len(columns))
		hasData := false
		for _, column := range columns {
			obj[column] = nil
		}

		for col, cell := range row.Values {
			key := defaultColumnName(col)
			if col < len(columns) {
				key = columns[col]
			}

			if text, ok := CellText(cell); ok {
				obj[key] = text
				hasData = true
			} else if _, exists := obj[key]; !exists {
				obj[key] = nil
			}
		}

		if hasData {
			result = append(result, obj)
		}
	}

	return result, nil
}

// ImageRefs lists the image formulas of a sheet in row-major order.
func ImageRefs(sheet *sheets.Sheet) []ImageRef {
	rows, err := gridRows(sheet)
	if err != nil {
		return nil
	}

	title := Title(sheet)
	var refs []ImageRef
	for r, row := range rows {
		if row == nil {
			continue
		}
		for c, cell := range row.Values {
			if url, ok := ImageURL(cell); ok {
				refs = append(refs, ImageRef{Sheet: title, Row: r, Column: c, URL: url})
			}
		}
	}

	return refs
}
