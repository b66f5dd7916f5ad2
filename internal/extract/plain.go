package extract

import (
	"errors"
	"os"
	"unicode/utf8"
)

var errInvalidUTF8 = errors.New("content is not valid UTF-8")

// parsePlain returns the file as a single section. Invalid UTF-8 is a malformed file.
func parsePlain(path string) ([]section, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(content) {
		return nil, errInvalidUTF8
	}
	return []section{{text: string(content)}}, nil
}
