package extract

import (
	"archive/zip"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/hyperjump/shiori/internal/models"
)

var (
	// atTag matches <a:t>text</a:t> with any attributes.
	atTag = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)
	// slidePath matches ppt/slides/slideN.xml and captures N.
	slidePath = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
)

// parsePPTX returns one section per slide in slide-number order.
func parsePPTX(path string) ([]section, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open PPTX: %w", err)
	}
	defer zr.Close()

	type slide struct {
		num  int
		name string
	}
	var slides []slide
	for _, f := range zr.File {
		m := slidePath.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slides = append(slides, slide{num: n, name: f.Name})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	sections := make([]section, 0, len(slides))
	for _, s := range slides {
		data, err := readZipEntry(&zr.Reader, s.name)
		if err != nil {
			return nil, fmt.Errorf("extract PPTX: %w", err)
		}
		parts := atTag.FindAllStringSubmatch(string(data), -1)
		texts := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(unescapeXML(p[1])); t != "" {
				texts = append(texts, t)
			}
		}
		sections = append(sections, section{
			text: strings.Join(texts, "\n"),
			meta: map[string]string{models.MetaSlide: strconv.Itoa(s.num)},
		})
	}
	return sections, nil
}
