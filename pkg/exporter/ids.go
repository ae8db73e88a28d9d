package exporter

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/hellenic-development/datamine-exporter/pkg/extractor"

	"google.golang.org/api/sheets/v4"
)

// UniqueEntryIDColumn is the normalized header of the datamine's identifier column.
const UniqueEntryIDColumn = "unique_entry_id"

// WriteUniqueEntryIDs lists every unique entry ID grouped by sheet title:
//
//	Recipes
//	   <prefix>abc<suffix>
//
// Rows without an ID are skipped; sheets without one still get their title line.
func WriteUniqueEntryIDs(path string, ss *sheets.Spreadsheet, prefix, suffix string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %q: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %q: %w", path, cerr)
		}
	}()

	w := bufio.NewWriter(f)
	for _, sheet := range ss.Sheets {
		fmt.Fprintln(w, extractor.Title(sheet))

		rows, err := extractor.Rows(sheet)
		if err != nil {
			if errors.Is(err, extractor.ErrNoGridData) {
				continue
			}
			return err
		}

		for _, row := range rows {
			id, ok := row[UniqueEntryIDColumn].(string)
			if !ok {
				continue
			}
			fmt.Fprintf(w, "   %s%s%s\n", prefix, id, suffix)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write %q: %w", path, err)
	}

	return nil
}
