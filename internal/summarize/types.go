// Package summarize produces natural-language summaries for code
// chunks. The summary and the chunk's code concatenate into the
// combined text that gets embedded.
package summarize

import (
	"context"
	"strings"
)

// Result is a chunk's enrichment text
type Result struct {
	Summary  string
	Combined string
	Tokens   int
}

// Summarizer generates summaries for code chunks. Implementations must
// bound their latency; on error or timeout the caller substitutes the
// deterministic fallback.
type Summarizer interface {
	// Summarize describes the code unit. unitName may be empty for
	// module and file chunks.
	Summarize(ctx context.Context, code, language, unitKind, unitName string) (*Result, error)

	// Available checks if the summarizer backend is reachable
	Available(ctx context.Context) bool

	// Close releases resources
	Close() error
}

// Fallback builds the deterministic stand-in used when summarization
// fails: `# Function foo in go` style, with the name omitted when the
// unit has none.
func Fallback(code, language, unitKind, unitName string) *Result {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(titleKind(unitKind))
	if unitName != "" {
		b.WriteString(" ")
		b.WriteString(unitName)
	}
	b.WriteString(" in ")
	b.WriteString(language)

	summary := b.String()
	return &Result{
		Summary:  summary,
		Combined: Combine(summary, code),
		Tokens:   WordCount(code) + WordCount(summary),
	}
}

// Combine joins a summary and code into the text to embed
func Combine(summary, code string) string {
	return summary + "\n\n" + code
}

// WordCount counts whitespace-separated words
func WordCount(s string) int {
	return len(strings.Fields(s))
}

func titleKind(kind string) string {
	if kind == "" {
		return kind
	}
	if kind[0] >= 'a' && kind[0] <= 'z' {
		return string(kind[0]-'a'+'A') + kind[1:]
	}
	return kind
}
