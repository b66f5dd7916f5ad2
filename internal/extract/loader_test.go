package extract

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/shiori/internal/models"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := zip.NewWriter(f)
	for name, body := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDirectory_plainText(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", []byte("The cat sat."))
	writeFile(t, dir, "b.txt", []byte("The dog ran."))
	writeFile(t, dir, "notes.csv", []byte("x,y"))
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "sub"), "c.txt", []byte("nested"))

	docs, err := NewLoader().LoadDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}
	if docs[0].Content != "The cat sat." || docs[0].Metadata[models.MetaFile] != "a.txt" {
		t.Errorf("docs[0] = %+v", docs[0])
	}
	if docs[1].Metadata[models.MetaSource] != filepath.Join(dir, "b.txt") {
		t.Errorf("source = %s", docs[1].Metadata[models.MetaSource])
	}
}

func TestLoadDirectory_caseInsensitiveExtension(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "NOTES.TXT", []byte("upper"))
	docs, err := NewLoader().LoadDirectory(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Content != "upper" {
		t.Errorf("docs = %+v", docs)
	}
}

func TestLoadDirectory_missingDirectory(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	_, err := NewLoader().LoadDirectory(context.Background(), missing)
	var le *LoaderError
	if !errors.As(err, &le) {
		t.Fatalf("error = %v, want *LoaderError", err)
	}
	if le.Path != missing {
		t.Errorf("LoaderError.Path = %s, want %s", le.Path, missing)
	}
}

func TestLoadDirectory_fileInsteadOfDirectory(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.txt", []byte("x"))
	_, err := NewLoader().LoadDirectory(context.Background(), path)
	var le *LoaderError
	if !errors.As(err, &le) {
		t.Fatalf("error = %v, want *LoaderError", err)
	}
}

func TestLoadDirectory_parsePolicy(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.txt", []byte("hello\x80world"))
	writeFile(t, dir, "good.txt", []byte("fine"))

	t.Run("abort", func(t *testing.T) {
		_, err := NewLoader().LoadDirectory(context.Background(), dir)
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("error = %v, want *ParseError", err)
		}
		if pe.File != bad {
			t.Errorf("ParseError.File = %s, want %s", pe.File, bad)
		}
	})

	t.Run("skip", func(t *testing.T) {
		docs, err := NewLoader(WithParsePolicy(PolicySkip)).LoadDirectory(context.Background(), dir)
		if err != nil {
			t.Fatal(err)
		}
		if len(docs) != 1 || docs[0].Content != "fine" {
			t.Errorf("docs = %+v", docs)
		}
	})
}

func TestLoadDirectory_cancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", []byte("x"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewLoader().LoadDirectory(ctx, dir); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestLoadDirectory_optInFormatsIgnoredByDefault(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "readme.md", []byte("# title"))
	docs, err := NewLoader().LoadDirectory(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 0 {
		t.Errorf("markdown should be skipped by default, got %d docs", len(docs))
	}
	docs, err = NewLoader(WithExtensions([]string{"md"})).LoadDirectory(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Content != "# title" {
		t.Errorf("docs = %+v", docs)
	}
}

func TestLoadFile_excelOneDocumentPerSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.xlsx")
	f := excelize.NewFile()
	f.SetCellValue("Sheet1", "A1", "Title")
	f.SetCellValue("Sheet1", "A2", "Value 1")
	f.SetCellValue("Sheet1", "B2", "Value 2")
	if _, err := f.NewSheet("Second"); err != nil {
		t.Fatal(err)
	}
	f.SetCellValue("Second", "A1", "More")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	f.Close()

	docs, err := NewLoader().LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(docs))
	}
	if docs[0].Content != "Title\nValue 1\tValue 2" || docs[0].Metadata[models.MetaSheet] != "Sheet1" {
		t.Errorf("docs[0] = %+v", docs[0])
	}
	if docs[1].Content != "More" || docs[1].Metadata[models.MetaSheet] != "Second" {
		t.Errorf("docs[1] = %+v", docs[1])
	}
}

func TestLoadFile_docx(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.docx")
	writeZip(t, path, map[string]string{
		"[Content_Types].xml": `<Types><Override PartName="/word/main.xml" ContentType="` + docxMainContentType + `"/></Types>`,
		"word/main.xml": `<w:document><w:body>` +
			`<w:p w:rsidR="00AB"><w:r><w:t>Hello </w:t></w:r><w:r><w:t xml:space="preserve">world</w:t></w:r></w:p>` +
			`<w:p><w:r><w:t>Tom &amp; Jerry</w:t></w:r></w:p>` +
			`</w:body></w:document>`,
	})
	docs, err := NewLoader().LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(docs) != 1 || docs[0].Content != "Hello world\nTom & Jerry" {
		t.Errorf("docs = %+v", docs)
	}
}

func TestLoadFile_pptxSlidesInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.pptx")
	writeZip(t, path, map[string]string{
		"ppt/slides/slide10.xml": `<p:sld><a:t>Ten</a:t></p:sld>`,
		"ppt/slides/slide2.xml":  `<p:sld><a:t>Two</a:t><a:t xml:space="preserve"> more </a:t></p:sld>`,
		"ppt/slides/_rels/slide2.xml.rels": `<Relationships/>`,
	})
	docs, err := NewLoader().LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(docs))
	}
	if docs[0].Metadata[models.MetaSlide] != "2" || docs[0].Content != "Two\nmore" {
		t.Errorf("docs[0] = %+v", docs[0])
	}
	if docs[1].Metadata[models.MetaSlide] != "10" || docs[1].Content != "Ten" {
		t.Errorf("docs[1] = %+v", docs[1])
	}
}

func TestLoadFile_corruptZip(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.docx", []byte("not a zip"))
	_, err := NewLoader().LoadFile(path)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
}

func TestLoadFile_corruptPDF(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.pdf", []byte("%PDF-garbage"))
	_, err := NewLoader().LoadFile(path)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
}

func TestSupports(t *testing.T) {
	l := NewLoader(WithExtensions([]string{".txt", ".xyz"}))
	tests := []struct {
		path string
		want bool
	}{
		{"a.txt", true},
		{"a.TXT", true},
		{"a.pdf", false},
		{"a.xyz", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := l.Supports(tt.path); got != tt.want {
			t.Errorf("Supports(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
