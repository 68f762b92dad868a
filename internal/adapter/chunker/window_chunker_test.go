package chunker

import (
	"strings"
	"testing"

	"docrag/internal/domain"
)

func TestWindowChunkerShortText(t *testing.T) {
	c, err := NewWindowChunker(1000, 100)
	if err != nil {
		t.Fatal(err)
	}

	text := "short text well under the window"
	chunks := c.Split(text)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != text {
		t.Errorf("short text must be returned unchanged")
	}
}

func TestWindowChunkerExactBoundary(t *testing.T) {
	c, err := NewWindowChunker(10, 2)
	if err != nil {
		t.Fatal(err)
	}

	text := strings.Repeat("x", 10)
	chunks := c.Split(text)

	if len(chunks) != 1 {
		t.Fatalf("text exactly one window wide should be a single chunk, got %d", len(chunks))
	}
}

func TestWindowChunkerWindowing(t *testing.T) {
	c, err := NewWindowChunker(1000, 100)
	if err != nil {
		t.Fatal(err)
	}

	text := strings.Repeat("x", 2500)
	chunks := c.Split(text)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	wantLens := []int{1000, 1000, 700}
	for i, want := range wantLens {
		if len(chunks[i]) != want {
			t.Errorf("chunk %d: expected length %d, got %d", i, want, len(chunks[i]))
		}
	}
}

func TestWindowChunkerCoverage(t *testing.T) {
	cases := []struct {
		textLen, chunkSize, overlap int
	}{
		{2500, 1000, 100},
		{100, 30, 10},
		{1, 10, 0},
		{999, 1000, 999},
		{5000, 512, 0},
		{731, 100, 37},
	}

	for _, tc := range cases {
		c, err := NewWindowChunker(tc.chunkSize, tc.overlap)
		if err != nil {
			t.Fatal(err)
		}

		// Distinct runes so reassembly can be checked positionally.
		runes := make([]rune, tc.textLen)
		for i := range runes {
			runes[i] = rune('a' + i%26)
		}
		text := string(runes)

		chunks := c.Split(text)
		if len(chunks) == 0 {
			t.Fatalf("chunkSize=%d overlap=%d: no chunks", tc.chunkSize, tc.overlap)
		}

		// Every position of the input must be covered by some window.
		step := tc.chunkSize - tc.overlap
		pos := 0
		covered := 0
		for i, chunk := range chunks {
			start := i * step
			if start != pos {
				t.Fatalf("chunk %d starts at %d, expected %d", i, start, pos)
			}
			if got := string(runes[start : start+len([]rune(chunk))]); got != chunk {
				t.Fatalf("chunk %d does not match source range", i)
			}
			end := start + len([]rune(chunk))
			if end > covered {
				covered = end
			}
			pos += step
		}
		if covered != tc.textLen {
			t.Errorf("chunkSize=%d overlap=%d: covered %d of %d", tc.chunkSize, tc.overlap, covered, tc.textLen)
		}

		// No trailing empty chunk.
		if chunks[len(chunks)-1] == "" {
			t.Error("trailing empty chunk produced")
		}
	}
}

func TestWindowChunkerRejectsBadOverlap(t *testing.T) {
	if _, err := NewWindowChunker(100, 100); err == nil {
		t.Error("expected error for overlap == chunk size")
	}
	if _, err := NewWindowChunker(100, 150); err == nil {
		t.Error("expected error for overlap > chunk size")
	}
	if _, err := NewWindowChunker(100, -1); err == nil {
		t.Error("expected error for negative overlap")
	}
	if _, err := NewWindowChunker(0, 0); err == nil {
		t.Error("expected error for zero chunk size")
	}
}

func TestChunkPage(t *testing.T) {
	c, err := NewWindowChunker(10, 2)
	if err != nil {
		t.Fatal(err)
	}

	page := domain.Page{
		URL:   "https://docs.example.com/intro",
		Title: "Introduction",
		Text:  "abcdefghijklmnopqrstuvwxyz",
	}

	chunks := c.ChunkPage(page)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i, chunk := range chunks {
		if chunk.Index != i {
			t.Errorf("chunk %d has index %d", i, chunk.Index)
		}
		if chunk.SourceURL != page.URL {
			t.Errorf("chunk %d has wrong source URL", i)
		}
		if chunk.Title != page.Title {
			t.Errorf("chunk %d has wrong title", i)
		}
		if chunk.ID == "" {
			t.Errorf("chunk %d has empty ID", i)
		}
	}
}

func TestChunkIDDeterministic(t *testing.T) {
	a := ChunkID("https://docs.example.com/a", "some chunk text")
	b := ChunkID("https://docs.example.com/a", "some chunk text")
	if a != b {
		t.Errorf("same (url, text) must yield same ID: %s vs %s", a, b)
	}

	c := ChunkID("https://docs.example.com/b", "some chunk text")
	if a == c {
		t.Error("different URLs must yield different IDs")
	}

	d := ChunkID("https://docs.example.com/a", "other chunk text")
	if a == d {
		t.Error("different text must yield different IDs")
	}
}

func TestChunkIDSeparatorAmbiguity(t *testing.T) {
	// (url, text) pairs that would collide under naive concatenation.
	a := ChunkID("https://e.com/ab", "c")
	b := ChunkID("https://e.com/a", "bc")
	if a == b {
		t.Error("url/text boundary must be unambiguous")
	}
}
