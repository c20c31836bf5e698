package ingestion

import (
	"strings"
	"unicode"
)

// Chunking defaults, matching CHUNK_SIZE and CHUNK_OVERLAP.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Chunker splits text into overlapping fixed-size windows measured in runes.
type Chunker struct {
	// Size is the maximum number of runes per chunk.
	Size int
	// Overlap is the number of runes shared by consecutive chunks.
	Overlap int
}

// normalized returns c with out-of-range settings replaced by usable values.
func (c Chunker) normalized() Chunker {
	if c.Size <= 0 {
		c.Size = DefaultChunkSize
	}
	if c.Overlap < 0 {
		c.Overlap = 0
	}
	if c.Overlap >= c.Size {
		c.Overlap = c.Size / 5
	}
	return c
}

// Split returns the chunks of text. Whitespace runs are collapsed first so
// layout noise from PDF extraction does not consume the chunk budget.
// Returns nil for blank input.
func (c Chunker) Split(text string) []string {
	c = c.normalized()
	runes := []rune(normalizeSpace(text))
	if len(runes) == 0 {
		return nil
	}

	step := c.Size - c.Overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := min(start+c.Size, len(runes))
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			chunks = append(chunks, s)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// normalizeSpace collapses every whitespace run into one separator: a newline
// if the run contained one, a space otherwise.
func normalizeSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var sep rune
	for _, r := range s {
		if unicode.IsSpace(r) {
			if r == '\n' {
				sep = '\n'
			} else if sep == 0 {
				sep = ' '
			}
			continue
		}
		if sep != 0 && b.Len() > 0 {
			b.WriteRune(sep)
		}
		sep = 0
		b.WriteRune(r)
	}
	return b.String()
}
