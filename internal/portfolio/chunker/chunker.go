// Package chunker splits long text into overlapping windows snapped to line breaks.
package chunker

import (
	"strconv"
	"strings"

	"github.com/smaxiso/portfolio-rag/internal/portfolio/model"
)

const (
	// DefaultSize is the nominal window length in characters.
	DefaultSize = 800
	// DefaultOverlap is the number of characters shared by consecutive windows.
	DefaultOverlap = 100
	// DefaultIDPrefix keeps résumé chunk ids stable across runs.
	DefaultIDPrefix = "resume_chunk_"
)

// Window is one span of the source text. Start and End are character offsets.
type Window struct {
	Start int
	End   int
	Text  string
}

// Windows advances a window of size characters over text. A window that ends
// before the text does is snapped back to the last line break inside it, and
// the next window starts overlap characters before the actual end.
func Windows(text string, size, overlap int) []Window {
	if strings.TrimSpace(text) == "" || size <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}

	runes := []rune(text)
	n := len(runes)
	var out []Window

	for start := 0; start < n; {
		end := start + size
		if end >= n {
			end = n
		} else if nl := lastNewline(runes, start, end); nl > start {
			end = nl
		}

		out = append(out, Window{Start: start, End: end, Text: string(runes[start:end])})
		if end == n {
			break
		}

		next := end - overlap
		if next <= start {
			// A snap close to start would stall the window.
			next = end
		}
		start = next
	}
	return out
}

// lastNewline returns the index of the last '\n' in runes[start:end], or -1.
func lastNewline(runes []rune, start, end int) int {
	for i := end - 1; i >= start; i-- {
		if runes[i] == '\n' {
			return i
		}
	}
	return -1
}

// Splitter turns text into chunks with offset based ids.
type Splitter struct {
	Size     int
	Overlap  int
	IDPrefix string
}

// New returns a Splitter with the default résumé settings.
func New() *Splitter {
	return &Splitter{Size: DefaultSize, Overlap: DefaultOverlap, IDPrefix: DefaultIDPrefix}
}

// Split chunks text, copying meta onto every chunk. Ids are IDPrefix followed
// by the start offset, so unchanged content keeps its ids.
func (s *Splitter) Split(text string, meta model.Metadata) []model.Chunk {
	windows := Windows(text, s.Size, s.Overlap)
	if len(windows) == 0 {
		return nil
	}

	chunks := make([]model.Chunk, 0, len(windows))
	for _, w := range windows {
		chunks = append(chunks, model.Chunk{
			ID:       s.IDPrefix + strconv.Itoa(w.Start),
			Text:     w.Text,
			Metadata: meta,
		})
	}
	return chunks
}

// Split is Splitter.Split with the résumé id prefix and no metadata.
func Split(text string, size, overlap int) []model.Chunk {
	s := &Splitter{Size: size, Overlap: overlap, IDPrefix: DefaultIDPrefix}
	return s.Split(text, model.Metadata{})
}
