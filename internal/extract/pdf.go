package extract

import (
	"fmt"
	"strconv"

	"github.com/hyperjump/shiori/internal/models"
	"github.com/ledongthuc/pdf"
)

// parsePDF returns one section per page; page numbers are 1-based.
func parsePDF(path string) ([]section, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	defer f.Close()

	numPages := r.NumPage()
	total := strconv.Itoa(numPages)
	sections := make([]section, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		sections = append(sections, section{
			text: text,
			meta: map[string]string{
				models.MetaPage:       strconv.Itoa(i),
				models.MetaTotalPages: total,
			},
		})
	}
	return sections, nil
}
