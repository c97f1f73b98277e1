package services

import (
	"fmt"
	"strings"
	"testing"
)

func TestSplitShortTextIsSingleChunk(t *testing.T) {
	s := NewSplitter()
	chunks := s.Split("a short note")
	if len(chunks) != 1 {
		t.Fatalf("want 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "a short note" {
		t.Fatalf("unexpected chunk: %q", chunks[0])
	}
}

func TestSplitEmptyText(t *testing.T) {
	s := NewSplitter()
	if got := s.Split(""); len(got) != 0 {
		t.Fatalf("want no chunks, got %d", len(got))
	}
	if got := s.Split("   \n\n  "); len(got) != 0 {
		t.Fatalf("whitespace-only input: want no chunks, got %d", len(got))
	}
}

func TestSplitContinuousTextWindowsWithOverlap(t *testing.T) {
	s := NewSplitter()
	text := strings.Repeat("abcdefghij", 200) // 2000 chars, no separators

	chunks := s.Split(text)
	if len(chunks) != 3 {
		t.Fatalf("want 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 800 {
		t.Fatalf("first chunk: want 800 chars, got %d", len(chunks[0]))
	}
	tail := chunks[0][len(chunks[0])-200:]
	if !strings.HasPrefix(chunks[1], tail) {
		t.Fatalf("second chunk must start with the first chunk's trailing 200 chars")
	}
	if !strings.HasSuffix(chunks[2], text[len(text)-10:]) {
		t.Fatalf("last chunk must end at the end of the text")
	}
}

func TestSplitPrefersParagraphBreaks(t *testing.T) {
	s := NewSplitter()
	para1 := strings.Repeat("x", 500)
	para2 := strings.Repeat("y", 500)
	text := para1 + "\n\n" + para2

	chunks := s.Split(text)
	if len(chunks) != 2 {
		t.Fatalf("want 2 chunks, got %d", len(chunks))
	}
	if !strings.HasPrefix(chunks[0], "x") || strings.Contains(chunks[0], "y") {
		t.Fatalf("first chunk should hold only the first paragraph")
	}
	if !strings.HasPrefix(chunks[1], "y") {
		t.Fatalf("second chunk should start the second paragraph, got %q", chunks[1][:10])
	}
}

func TestSplitChunksStayWithinBound(t *testing.T) {
	s := NewSplitter()
	var b strings.Builder
	for i := 0; i < 120; i++ {
		b.WriteString("The quick brown fox jumps over the lazy dog near the river bank. ")
	}
	for _, c := range s.Split(b.String()) {
		if len(c) > 800 {
			t.Fatalf("chunk exceeds bound: %d chars", len(c))
		}
	}
}

func TestSplitNewlineChunksShareTrimmedOverlap(t *testing.T) {
	s := NewSplitterWith(100, 20)
	var b strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "ln%07d\n", i)
	}

	chunks := s.Split(b.String())
	if len(chunks) != 4 {
		t.Fatalf("want 4 chunks, got %d", len(chunks))
	}
	// Each carried overlap is two 10-char lines. The trailing newline is
	// trimmed from the emitted chunk, leaving 19 shared characters.
	for i := 0; i < len(chunks)-1; i++ {
		tail := chunks[i][len(chunks[i])-19:]
		if !strings.HasPrefix(chunks[i+1], tail) {
			t.Fatalf("chunk %d must start with chunk %d's trailing overlap; tail=%q head=%q",
				i+1, i, tail, chunks[i+1][:19])
		}
	}
}

func TestSplitterWithCustomSizes(t *testing.T) {
	s := NewSplitterWith(100, 20)
	text := strings.Repeat("z", 250)
	chunks := s.Split(text)
	if len(chunks) < 3 {
		t.Fatalf("want at least 3 chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c) > 100 {
			t.Fatalf("chunk exceeds custom bound: %d chars", len(c))
		}
	}
}
