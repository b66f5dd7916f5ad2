package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/shiori/internal/indexer"
	"github.com/hyperjump/shiori/internal/models"
)

func sampleResponse() *models.RetrieveResponse {
	return &models.RetrieveResponse{
		Query:     "cat",
		K:         2,
		Total:     2,
		QueryTime: 3,
		Results: models.RetrievalResult{
			{
				Rank:     1,
				Distance: 0.5,
				Position: 0,
				Chunk: models.Chunk{
					Content:  "The cat\nsat.",
					Metadata: map[string]string{models.MetaFile: "a.txt", models.MetaSource: "docs/a.txt"},
				},
			},
			{
				Rank:     2,
				Distance: 1.25,
				Position: 3,
				Chunk: models.Chunk{
					Content:  "Page text",
					Metadata: map[string]string{models.MetaFile: "b.pdf", models.MetaPage: "2"},
				},
			},
		},
	}
}

func TestWriteResults_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteResults(&buf, sampleResponse(), OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.RetrieveResponse
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Total != 2 || decoded.Results[1].Chunk.Metadata[models.MetaPage] != "2" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteResults_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteResults(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Found 2 results in 3ms", "Rank: 1 | Distance: 0.5000", "file=a.txt source=docs/a.txt", "Page text"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteResults_Compact(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteResults(&buf, sampleResponse(), OutputCompact); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), buf.String())
	}
	if lines[0] != "1\t0.5000\ta.txt\tThe cat sat." {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.Contains(lines[1], "b.pdf#2") {
		t.Errorf("line 1 = %q, want page label", lines[1])
	}
}

func TestParseOutputFormat(t *testing.T) {
	for _, s := range []string{"text", "compact", "json"} {
		if _, err := ParseOutputFormat(s); err != nil {
			t.Errorf("ParseOutputFormat(%q): %v", s, err)
		}
	}
	if _, err := ParseOutputFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestWriteBuildStats(t *testing.T) {
	var buf bytes.Buffer
	WriteBuildStats(&buf, indexer.BuildStats{Documents: 2, Chunks: 5, Skipped: 1, Duration: 1500 * time.Millisecond}, "/tmp/idx")
	out := buf.String()
	if !strings.Contains(out, "Indexed 2 document(s) into 5 chunk(s) in 1.5s") || !strings.Contains(out, "1 blank chunk(s) skipped") {
		t.Errorf("output = %q", out)
	}
}

func TestWritePrompt(t *testing.T) {
	resp := &models.PromptResponse{Query: "q", Prompt: "SYSTEM: x", Hits: 0}
	var buf bytes.Buffer
	if err := WritePrompt(&buf, resp, OutputText); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "SYSTEM: x\n" {
		t.Errorf("text prompt = %q", buf.String())
	}
}
