// Package kb provides the knowledge retriever used by the
// general-query handler: documents are chunked and indexed for
// full-text search, and queries pull back the best-matching context
// with source citations.
package kb

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/openhelpdesk/deskd/internal/store"
)

const (
	chunkSize    = 1000
	chunkOverlap = 200
)

// Retriever answers getContext queries against the indexed knowledge
// base.
type Retriever struct {
	db *store.DB
}

// New returns a retriever over the given database.
func New(db *store.DB) *Retriever {
	return &Retriever{db: db}
}

// LoadFile chunks and indexes one document. Returns the number of
// chunks written.
func (r *Retriever) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	source := filepath.Base(path)
	chunks := SplitText(string(data), chunkSize, chunkOverlap)
	for i, chunk := range chunks {
		if err := r.db.InsertKBChunk(&store.KBChunk{
			Source:     source,
			ChunkIndex: i,
			Content:    chunk,
		}); err != nil {
			return i, fmt.Errorf("index %s chunk %d: %w", source, i, err)
		}
	}
	return len(chunks), nil
}

// GetContext returns the most relevant knowledge-base excerpts for a
// query, formatted with source citations. An empty string means the
// knowledge base has nothing useful.
func (r *Retriever) GetContext(query string) (string, error) {
	match := ftsQuery(query)
	if match == "" {
		return "", nil
	}
	chunks, err := r.db.SearchKB(match, 3)
	if err != nil {
		return "", fmt.Errorf("search knowledge base: %w", err)
	}
	if len(chunks) == 0 {
		return "", nil
	}

	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s] %s", c.Source, c.Content)
	}
	return b.String(), nil
}

var wordRe = regexp.MustCompile(`[A-Za-z0-9]+`)

// ftsQuery turns free text into an OR-joined FTS5 match expression,
// quoting each term so punctuation cannot break the query syntax.
func ftsQuery(text string) string {
	words := wordRe.FindAllString(text, 12)
	if len(words) == 0 {
		return ""
	}
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = `"` + w + `"`
	}
	return strings.Join(quoted, " OR ")
}

// SplitText chunks text with overlap, breaking at sentence or word
// boundaries where possible.
func SplitText(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			chunks = append(chunks, strings.TrimSpace(text[start:]))
			break
		}
		// Prefer a sentence break, then a word break, inside the
		// second half of the window.
		cut := end
		if i := strings.LastIndexAny(text[start:end], ".!?\n"); i > size/2 {
			cut = start + i + 1
		} else if i := strings.LastIndex(text[start:end], " "); i > size/2 {
			cut = start + i
		}
		chunk := strings.TrimSpace(text[start:cut])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}
