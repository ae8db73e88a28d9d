package formatter

import (
	"fmt"
	"strings"

	"github.com/hellenic-development/datamine-exporter/pkg/extractor"

	"google.golang.org/api/sheets/v4"
)

// ToMarkdown renders an overview of the spreadsheet: every sheet tab in order,
// followed by the normalized column titles of each tab. The column titles are
// the keys used by the rows export format.
func ToMarkdown(ss *sheets.Spreadsheet) string {
	var sb strings.Builder

	title := "Spreadsheet"
	if ss.Properties != nil && ss.Properties.Title != "" {
		title = ss.Properties.Title
	}
	sb.WriteString(fmt.Sprintf("# %s\n\n", title))

	sb.WriteString("## Sheets\n\n")
	if len(ss.Sheets) == 0 {
		sb.WriteString("_No sheets._\n")
		return sb.String()
	}
	for _, sheet := range ss.Sheets {
		sb.WriteString(fmt.Sprintf("- %s\n", extractor.Title(sheet)))
	}

	for _, sheet := range ss.Sheets {
		sb.WriteString(fmt.Sprintf("\n## %s columns\n\n", extractor.Title(sheet)))

		columns, err := extractor.ColumnTitles(sheet)
		if err != nil || len(columns) == 0 {
			sb.WriteString("_No columns._\n")
			continue
		}
		for _, column := range columns {
			sb.WriteString(fmt.Sprintf("- `%s`\n", column))
		}
	}

	return sb.String()
}
