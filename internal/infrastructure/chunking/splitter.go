package chunking

import "strings"

// separators ordered by how much document structure they preserve.
// The splitter recurses down this list until pieces fit the budget.
var separators = []string{"\n\n", "\n", ". ", " "}

type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

// Split breaks text into chunks of at most ChunkSize runes, preferring
// paragraph and sentence boundaries, with Overlap runes carried from
// the end of one chunk into the start of the next.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	pieces := s.recursiveSplit(text, 0)

	out := make([]string, 0, len(pieces))
	for i, piece := range pieces {
		if i > 0 && s.Overlap > 0 {
			prev := []rune(pieces[i-1])
			start := len(prev) - s.Overlap
			if start < 0 {
				start = 0
			}
			piece = string(prev[start:]) + " " + piece
		}
		piece = strings.TrimSpace(piece)
		if piece != "" {
			out = append(out, piece)
		}
	}
	return out
}

func (s *Splitter) recursiveSplit(text string, sepIdx int) []string {
	if len([]rune(text)) <= s.ChunkSize {
		return []string{text}
	}
	if sepIdx >= len(separators) {
		return s.hardSplit(text)
	}

	parts := strings.Split(text, separators[sepIdx])
	out := make([]string, 0, len(parts))
	var buf strings.Builder

	flush := func() {
		if buf.Len() > 0 {
			out = append(out, buf.String())
			buf.Reset()
		}
	}

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if len([]rune(part)) > s.ChunkSize {
			flush()
			out = append(out, s.recursiveSplit(part, sepIdx+1)...)
			continue
		}
		if buf.Len() > 0 && len([]rune(buf.String()))+len([]rune(part))+1 > s.ChunkSize {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString(separators[sepIdx])
		}
		buf.WriteString(part)
	}
	flush()
	return out
}

// hardSplit is the last resort for text with no usable separators.
func (s *Splitter) hardSplit(text string) []string {
	runes := []rune(text)
	out := make([]string, 0, len(runes)/s.ChunkSize+1)
	for start := 0; start < len(runes); start += s.ChunkSize {
		end := start + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}
