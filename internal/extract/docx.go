package extract

import (
	"archive/zip"
	"fmt"
	"regexp"
	"strings"
)

const (
	docxDocumentXMLPath = "word/document.xml"
	contentTypesPath    = "[Content_Types].xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

var (
	// wtTag matches <w:t>text</w:t> with any attributes.
	wtTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	// wpEnd marks paragraph ends so paragraphs survive as line breaks.
	wpEnd = regexp.MustCompile(`</w:p>`)
	// partNameRe and partNameRe2 cover both attribute orders of the main document Override.
	partNameRe  = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)
)

// parseDOCX returns the text runs of the main document part as one section,
// one line per paragraph.
func parseDOCX(path string) ([]section, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open DOCX: %w", err)
	}
	defer zr.Close()

	docPath := docxDocumentXMLPath
	if ct, err := readZipEntry(&zr.Reader, contentTypesPath); err == nil {
		if p := findMainPart(string(ct)); p != "" {
			docPath = p
		}
	}
	docXML, err := readZipEntry(&zr.Reader, docPath)
	if err != nil {
		return nil, fmt.Errorf("extract DOCX: %w", err)
	}

	var b strings.Builder
	for _, para := range wpEnd.Split(string(docXML), -1) {
		runs := wtTag.FindAllStringSubmatch(para, -1)
		if len(runs) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		for _, r := range runs {
			b.WriteString(unescapeXML(r[1]))
		}
	}
	return []section{{text: b.String()}}, nil
}

func findMainPart(contentTypes string) string {
	if m := partNameRe.FindStringSubmatch(contentTypes); len(m) > 1 {
		return strings.TrimPrefix(m[1], "/")
	}
	if m := partNameRe2.FindStringSubmatch(contentTypes); len(m) > 1 {
		return strings.TrimPrefix(m[1], "/")
	}
	return ""
}
