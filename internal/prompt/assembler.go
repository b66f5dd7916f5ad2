// Package prompt formats retrieved chunks and a user question into a single LLM instruction.
package prompt

import (
	"strconv"
	"strings"

	"github.com/hyperjump/shiori/internal/models"
)

// Assembler builds prompts of the form
//
//	SYSTEM: <directive>
//
//	CONTEXT:
//	[1] <chunk 1>
//	[2] <chunk 2>
//
//	USER QUESTION: <query>
//
//	ASSISTANT:
//
// With no results the CONTEXT section is kept, with no entries.
type Assembler struct {
	directive string
}

// NewAssembler returns an assembler using directive as the system line.
func NewAssembler(directive string) *Assembler {
	return &Assembler{directive: directive}
}

// Directive returns the system directive.
func (a *Assembler) Directive() string { return a.directive }

// Assemble returns the prompt for query with results in rank order. query is inserted verbatim.
func (a *Assembler) Assemble(results models.RetrievalResult, query string) string {
	var b strings.Builder
	b.WriteString("SYSTEM: ")
	b.WriteString(a.directive)
	b.WriteString("\n\nCONTEXT:\n")
	for i, r := range results {
		b.WriteByte('[')
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString("] ")
		b.WriteString(r.Chunk.Content)
		b.WriteByte('\n')
	}
	b.WriteString("\nUSER QUESTION: ")
	b.WriteString(query)
	b.WriteString("\n\nASSISTANT:")
	return b.String()
}
