// Package cli provides output helpers for the Shiori command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/shiori/internal/indexer"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/pkg/utils"
)

// OutputFormat is the format for retrieval result output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact prints one result per line.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

// WriteResults writes retrieval results to w in the given format.
func WriteResults(w io.Writer, response *models.RetrieveResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		writeResultsCompact(w, response)
		return nil
	default:
		writeResultsText(w, response)
		return nil
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeResultsText(w io.Writer, response *models.RetrieveResponse) {
	fmt.Fprintf(w, "\nFound %d results in %dms (k=%d)\n\n", response.Total, response.QueryTime, response.K)
	for _, r := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Distance: %.4f | Position: %d\n", r.Rank, r.Distance, r.Position)
		if meta := formatMetadata(r.Chunk.Metadata); meta != "" {
			fmt.Fprintf(w, "%s\n", meta)
		}
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(r.Chunk.Content, 200))
	}
}

func writeResultsCompact(w io.Writer, response *models.RetrieveResponse) {
	for _, r := range response.Results {
		fmt.Fprintf(w, "%d\t%.4f\t%s\t%s\n", r.Rank, r.Distance, SourceLabel(r.Chunk.Metadata),
			utils.Truncate(utils.OneLine(r.Chunk.Content), 80))
	}
}

// SourceLabel is "file" or "file#page" / "file#sheet" / "file#slide" when present.
// Page and slide numbers are 1-based.
func SourceLabel(meta map[string]string) string {
	label := meta[models.MetaFile]
	if label == "" {
		label = meta[models.MetaSource]
	}
	for _, k := range []string{models.MetaPage, models.MetaSheet, models.MetaSlide} {
		if v, ok := meta[k]; ok {
			return label + "#" + v
		}
	}
	return label
}

// formatMetadata renders metadata as sorted key=value pairs.
func formatMetadata(meta map[string]string) string {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + meta[k]
	}
	return strings.Join(parts, " ")
}

// WriteBuildStats writes a one-line summary of an index build.
func WriteBuildStats(w io.Writer, stats indexer.BuildStats, out string) {
	fmt.Fprintf(w, "Indexed %d document(s) into %d chunk(s) in %s", stats.Documents, stats.Chunks, stats.Duration.Round(1e6))
	if stats.Skipped > 0 {
		fmt.Fprintf(w, " (%d blank chunk(s) skipped)", stats.Skipped)
	}
	fmt.Fprintf(w, "\nIndex written to %s\n", out)
}

// WritePrompt writes the assembled prompt as text, or as JSON when format is OutputJSON.
func WritePrompt(w io.Writer, response *models.PromptResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	_, err := fmt.Fprintln(w, response.Prompt)
	return err
}
