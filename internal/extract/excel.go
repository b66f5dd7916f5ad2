package extract

import (
	"fmt"
	"strings"

	"github.com/hyperjump/shiori/internal/models"
	"github.com/xuri/excelize/v2"
)

// parseExcel returns one section per sheet: rows as lines, cells separated by tabs.
func parseExcel(path string) ([]section, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	var sections []section
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
		}
		var buf strings.Builder
		for _, row := range rows {
			buf.WriteString(strings.Join(row, "\t"))
			buf.WriteByte('\n')
		}
		sections = append(sections, section{
			text: strings.TrimSpace(buf.String()),
			meta: map[string]string{models.MetaSheet: sheet},
		})
	}
	return sections, nil
}
