package services

import (
	"strings"
)

// Splitter cuts extracted document text into bounded chunks. It tries the
// separators in order, preferring paragraph breaks over line breaks over
// sentence ends over spaces, and falls back to a plain character window with
// overlap when no separator helps.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

const (
	defaultChunkSize    = 800
	defaultChunkOverlap = 200
)

func NewSplitter() *Splitter {
	return &Splitter{
		chunkSize:  defaultChunkSize,
		overlap:    defaultChunkOverlap,
		separators: []string{"\n\n", "\n", ". ", " ", ""},
	}
}

func NewSplitterWith(chunkSize, overlap int) *Splitter {
	s := NewSplitter()
	if chunkSize > 0 {
		s.chunkSize = chunkSize
	}
	if overlap >= 0 && overlap < s.chunkSize {
		s.overlap = overlap
	}
	return s
}

// Split returns the ordered chunks of text. Empty and whitespace-only chunks
// are dropped. Each chunk is trimmed after overlap is carried, so when a
// carried overlap starts or ends in separator whitespace the region shared by
// consecutive chunks is the overlap minus that boundary whitespace.
func (s *Splitter) Split(text string) []string {
	raw := s.split(text, s.separators)
	out := make([]string, 0, len(raw))
	for _, c := range raw {
		trimmed := strings.TrimSpace(c)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func (s *Splitter) split(text string, separators []string) []string {
	if text == "" {
		return nil
	}
	if runeLen(text) <= s.chunkSize {
		return []string{text}
	}

	sep, rest := pickSeparator(text, separators)
	if sep == "" {
		return s.window(text)
	}

	parts := splitKeep(text, sep)
	return s.merge(parts, rest)
}

// pickSeparator returns the first separator present in text and the
// separators after it, for recursing into oversized parts.
func pickSeparator(text string, separators []string) (string, []string) {
	for i, sep := range separators {
		if sep == "" {
			return "", nil
		}
		if strings.Contains(text, sep) {
			return sep, separators[i+1:]
		}
	}
	return "", nil
}

// splitKeep splits text by sep, keeping the separator at the end of each
// piece so rejoining chunks loses nothing.
func splitKeep(text, sep string) []string {
	pieces := strings.Split(text, sep)
	out := make([]string, 0, len(pieces))
	for i, p := range pieces {
		if i < len(pieces)-1 {
			p += sep
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// merge packs the separator pieces into chunks of at most chunkSize
// characters, carrying up to overlap characters of trailing pieces into the
// next chunk.
func (s *Splitter) merge(parts []string, rest []string) []string {
	var out []string
	var current []string
	curLen := 0

	flush := func() {
		if curLen == 0 {
			return
		}
		out = append(out, strings.Join(current, ""))
		// retain a tail of at most overlap characters
		for curLen > s.overlap && len(current) > 0 {
			curLen -= runeLen(current[0])
			current = current[1:]
		}
	}

	for _, part := range parts {
		pl := runeLen(part)
		if pl > s.chunkSize {
			flush()
			current = nil
			curLen = 0
			out = append(out, s.split(part, rest)...)
			continue
		}
		if curLen+pl > s.chunkSize && curLen > 0 {
			flush()
		}
		current = append(current, part)
		curLen += pl
	}
	if curLen > 0 {
		out = append(out, strings.Join(current, ""))
	}
	return out
}

// window is the last-resort cut: fixed-size character slices where each
// slice after the first starts with the previous slice's trailing overlap.
func (s *Splitter) window(text string) []string {
	runes := []rune(text)
	step := s.chunkSize - s.overlap
	if step <= 0 {
		step = s.chunkSize
	}
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + s.chunkSize
		if end >= len(runes) {
			out = append(out, string(runes[start:]))
			break
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}
