package chunker

import (
	"strconv"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitEmptyInput(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty string", ""},
		{"whitespace only", "   \n\n\t  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Split(tt.text, nil, 800, 200)
			if len(chunks) != 0 {
				t.Errorf("expected no chunks, got %d", len(chunks))
			}
		})
	}
}

func TestSplitSizeBound(t *testing.T) {
	const maxSize = 200

	// Many short sentences across several paragraphs.
	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString("Verstappen won the race with a comfortable gap. ")
		b.WriteString("The strategy worked perfectly for the team.\n\n")
	}

	chunks := Split(b.String(), nil, maxSize, 0)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c.Text) > maxSize {
			t.Errorf("chunk %d exceeds max size: %d > %d", i, len(c.Text), maxSize)
		}
		if c.Text == "" {
			t.Errorf("chunk %d is empty", i)
		}
	}
}

func TestSplitOversizedSentenceKeptWhole(t *testing.T) {
	// One sentence longer than maxSize must not be cut mid-token.
	sentence := "The " + strings.Repeat("extremely ", 40) + "long regulation document never pauses."
	if len(sentence) <= 100 {
		t.Fatal("test sentence is not oversized")
	}

	chunks := Split(sentence, nil, 100, 0)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != sentence {
		t.Errorf("oversized sentence was modified:\n got %q\nwant %q", chunks[0].Text, sentence)
	}
}

func TestSplitCoverage(t *testing.T) {
	// Concatenating chunks (overlap disabled) must reconstruct the source
	// content in order, modulo whitespace normalization at join points.
	text := "First paragraph about the championship.\n\n" +
		"Second paragraph with more detail. It has two sentences.\n\n" +
		"Third paragraph closes the article."

	chunks := Split(text, nil, 60, 0)

	var got strings.Builder
	for _, c := range chunks {
		got.WriteString(c.Text)
		got.WriteString(" ")
	}

	normalize := func(s string) string {
		return strings.Join(strings.Fields(s), " ")
	}
	if normalize(got.String()) != normalize(text) {
		t.Errorf("chunks do not cover source text:\n got %q\nwant %q",
			normalize(got.String()), normalize(text))
	}
}

func TestSplitOverlapContinuity(t *testing.T) {
	const overlap = 30

	var b strings.Builder
	for i := 0; i < 10; i++ {
		b.WriteString("Sentence number one fills some space here. ")
		b.WriteString("Sentence number two adds a little more.\n\n")
	}

	chunks := Split(b.String(), nil, 150, overlap)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i := 1; i < len(chunks); i++ {
		// Each chunk after the first starts with the trailing overlap chars
		// of the previous chunk's pre-merge text, followed by a space. The
		// previous chunk's text ends with its own pre-merge block, so its
		// suffix is exactly that tail as long as blocks exceed the overlap.
		prev := chunks[i-1].Text
		if len(prev) <= overlap {
			t.Fatalf("chunk %d shorter than overlap, test setup invalid", i-1)
		}
		tail := prev[len(prev)-overlap:]
		if !strings.HasPrefix(chunks[i].Text, tail+" ") {
			t.Errorf("chunk %d does not start with previous tail:\n tail %q\n text %q",
				i, tail, chunks[i].Text[:min(len(chunks[i].Text), overlap+20)])
		}
	}
}

func TestSplitOverlapMultibyte(t *testing.T) {
	// With byte-based slicing an overlap of 16 would cut "Räikkönen"
	// inside the "ö", leading the second chunk with an orphaned
	// continuation byte.
	text := "Kimi Räikkönen drove well.\n\nHe won the race easily that day."

	chunks := Split(text, nil, 30, 16)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if !utf8.ValidString(c.Text) {
			t.Errorf("chunk %d contains invalid UTF-8: %q", i, c.Text)
		}
		if got := c.Metadata["char_count"]; got != strconv.Itoa(utf8.RuneCountInString(c.Text)) {
			t.Errorf("chunk %d: char_count = %q, want %d", i, got, utf8.RuneCountInString(c.Text))
		}
	}
	if !strings.HasPrefix(chunks[1].Text, "önen drove well. ") {
		t.Errorf("chunk 1 overlap not cut on a rune boundary: %q", chunks[1].Text)
	}
}

func TestSplitPositionalMetadata(t *testing.T) {
	text := "Alpha paragraph one.\n\nBeta paragraph two.\n\nGamma paragraph three."
	chunks := Split(text, map[string]string{"source": "test", "title": "Test Doc"}, 30, 0)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i, c := range chunks {
		if got := c.Metadata["chunk_index"]; got != strconv.Itoa(i) {
			t.Errorf("chunk %d: chunk_index = %q", i, got)
		}
		if got := c.Metadata["total_chunks"]; got != strconv.Itoa(len(chunks)) {
			t.Errorf("chunk %d: total_chunks = %q, want %d", i, got, len(chunks))
		}
		if got := c.Metadata["char_count"]; got != strconv.Itoa(utf8.RuneCountInString(c.Text)) {
			t.Errorf("chunk %d: char_count = %q, want %d", i, got, utf8.RuneCountInString(c.Text))
		}
		if c.Metadata["source"] != "test" || c.Metadata["title"] != "Test Doc" {
			t.Errorf("chunk %d: source metadata not inherited: %v", i, c.Metadata)
		}
	}
}

func TestExtractMetadata(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantSeasons string
		wantDrivers string
		wantTeams   string
	}{
		{
			name:        "seasons and drivers",
			text:        "Verstappen beat Hamilton to the 2021 title, then won again in 2022.",
			wantSeasons: "2021,2022",
			wantDrivers: "verstappen,hamilton",
		},
		{
			name:      "teams case insensitive",
			text:      "FERRARI and McLaren fought for second in the constructors.",
			wantTeams: "ferrari,mclaren",
		},
		{
			name: "no tags",
			text: "A sentence with no detectable entities at all.",
		},
		{
			name:        "driver cap at five",
			text:        "verstappen hamilton leclerc norris sainz piastri russell",
			wantDrivers: "verstappen,hamilton,leclerc,norris,sainz",
		},
		{
			name:        "year deduplication",
			text:        "In 2024 and again in 2024, the 2024 season was discussed.",
			wantSeasons: "2024",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := extractMetadata(tt.text)
			if got := meta["seasons"]; got != tt.wantSeasons {
				t.Errorf("seasons = %q, want %q", got, tt.wantSeasons)
			}
			if got := meta["drivers"]; got != tt.wantDrivers {
				t.Errorf("drivers = %q, want %q", got, tt.wantDrivers)
			}
			if got := meta["teams"]; got != tt.wantTeams {
				t.Errorf("teams = %q, want %q", got, tt.wantTeams)
			}
		})
	}
}

func TestSplitDeterministic(t *testing.T) {
	text := "The 2024 season opened in Bahrain. Verstappen took pole.\n\n" +
		"Ferrari showed strong race pace. Leclerc finished on the podium.\n\n" +
		"Mercedes struggled with balance across both cars."

	a := Split(text, map[string]string{"source": "x"}, 120, 40)
	b := Split(text, map[string]string{"source": "x"}, 120, 40)

	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Text != b[i].Text {
			t.Errorf("chunk %d text differs", i)
		}
		for k, v := range a[i].Metadata {
			if b[i].Metadata[k] != v {
				t.Errorf("chunk %d metadata %q differs: %q vs %q", i, k, v, b[i].Metadata[k])
			}
		}
	}
}
