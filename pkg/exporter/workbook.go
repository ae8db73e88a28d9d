package exporter

import (
	"fmt"
	"strings"

	"github.com/hellenic-development/datamine-exporter/pkg/extractor"

	"github.com/xuri/excelize/v2"
	"google.golang.org/api/sheets/v4"
)

const maxWorksheetNameLen = 31

// WriteWorkbook saves the whole spreadsheet as a single .xlsx file with one
// worksheet per sheet tab. Numbers and booleans keep their type, every other
// cell is stored as its text.
func WriteWorkbook(path string, ss *sheets.Spreadsheet) error {
	f := excelize.NewFile()
	defer f.Close()

	titles := make([]string, len(ss.Sheets))
	for i, sheet := range ss.Sheets {
		titles[i] = extractor.Title(sheet)
	}
	names := uniqueNames(titles, worksheetName, maxWorksheetNameLen)

	const defaultSheet = "Sheet1"
	for i, sheet := range ss.Sheets {
		name := names[i]
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, name); err != nil {
				return fmt.Errorf("failed to name worksheet %q: %w", name, err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to add worksheet %q: %w", name, err)
		}

		if err := fillWorksheet(f, name, sheet); err != nil {
			return fmt.Errorf("failed to fill worksheet %q: %w", name, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %q: %w", path, err)
	}

	return nil
}

func fillWorksheet(f *excelize.File, name string, sheet *sheets.Sheet) error {
	if len(sheet.Data) == 0 || sheet.Data[0] == nil {
		return nil
	}

	for r, row := range sheet.Data[0].RowData {
		if row == nil {
			continue
		}
		for c, cell := range row.Values {
			value, ok := workbookValue(cell)
			if !ok {
				continue
			}

			ref, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(name, ref, value); err != nil {
				return err
			}
		}
	}

	return nil
}

func workbookValue(cell *sheets.CellData) (any, bool) {
	if cell != nil && cell.EffectiveValue != nil {
		switch v := cell.EffectiveValue; {
		case v.NumberValue != nil:
			return *v.NumberValue, true
		case v.BoolValue != nil:
			return *v.BoolValue, true
		}
	}

	return extractor.CellText(cell)
}

// worksheetName applies the Excel worksheet naming rules: at most 31
// characters and none of : \ / ? * [ ].
func worksheetName(title string) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '_'
		}
		return r
	}, title)

	name = strings.Trim(name, "'")
	if name == "" {
		name = "Sheet"
	}

	return truncateRunes(name, maxWorksheetNameLen)
}
