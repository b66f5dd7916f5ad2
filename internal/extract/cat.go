package extract

import (
	"fmt"

	"github.com/lu4p/cat"
)

// parseWithCat extracts .odt and .rtf text through lu4p/cat.
func parseWithCat(path string) ([]section, error) {
	text, err := cat.File(path)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	return []section{{text: text}}, nil
}
