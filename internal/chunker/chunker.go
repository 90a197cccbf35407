// Package chunker splits raw document text into overlapping, metadata-tagged
// chunks — the unit of embedding and storage.
//
// The algorithm is deterministic:
//
//  1. Split on blank-line boundaries into paragraphs.
//  2. Re-split oversized paragraphs on sentence boundaries, greedily packing
//     sentences into segments no larger than maxSize. A single sentence
//     longer than maxSize is kept whole — never cut mid-token.
//  3. Greedily merge consecutive segments up to maxSize, joined with a
//     paragraph break.
//  4. Prepend up to overlap trailing characters of the previous chunk's
//     pre-merge text to every chunk after the first.
//  5. Tag each chunk with positional metadata and F1 entities detected by
//     content scan (see metadata.go).
package chunker

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Chunk is a bounded-size span of source text with attached metadata.
// Chunks are immutable after creation.
type Chunk struct {
	Text     string
	Metadata map[string]string
}

var paragraphSplit = regexp.MustCompile(`\n{2,}`)

// Split chunks text into overlapping chunks of at most maxSize characters.
// sourceMeta fields are inherited by every chunk. Empty or blank input
// yields no chunks; no produced chunk is ever empty.
//
// The size bound is relaxed in exactly one case: a single sentence longer
// than maxSize is emitted whole rather than split mid-sentence.
func Split(text string, sourceMeta map[string]string, maxSize, overlap int) []Chunk {
	segments := segment(text, maxSize)
	merged := merge(segments, maxSize)
	if len(merged) == 0 {
		return nil
	}

	chunks := make([]Chunk, 0, len(merged))
	prevTail := ""

	for i, block := range merged {
		chunkText := block
		if i > 0 && prevTail != "" {
			chunkText = prevTail + " " + block
		}

		meta := make(map[string]string, len(sourceMeta)+6)
		for k, v := range sourceMeta {
			meta[k] = v
		}
		for k, v := range extractMetadata(chunkText) {
			meta[k] = v
		}
		meta["chunk_index"] = strconv.Itoa(i)
		meta["total_chunks"] = strconv.Itoa(len(merged))
		meta["char_count"] = strconv.Itoa(utf8.RuneCountInString(chunkText))

		chunks = append(chunks, Chunk{Text: chunkText, Metadata: meta})

		// Tail is taken from the pre-overlap block so injected context
		// never propagates across more than one chunk.
		prevTail = tailRunes(block, overlap)
	}

	return chunks
}

// segment splits text into paragraph segments, re-splitting any paragraph
// larger than maxSize on sentence boundaries.
func segment(text string, maxSize int) []string {
	var segments []string
	for _, para := range paragraphSplit.Split(strings.TrimSpace(text), -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) <= maxSize {
			segments = append(segments, para)
			continue
		}

		current := ""
		for _, sent := range splitSentences(para) {
			if current == "" {
				current = sent
			} else if len(current)+len(sent)+1 <= maxSize {
				current = current + " " + sent
			} else {
				segments = append(segments, current)
				current = sent
			}
		}
		if current != "" {
			segments = append(segments, current)
		}
	}
	return segments
}

// merge greedily packs consecutive segments into blocks of at most maxSize,
// joining with a paragraph break.
func merge(segments []string, maxSize int) []string {
	var merged []string
	current := ""
	for _, seg := range segments {
		if current == "" {
			current = seg
		} else if len(current)+len(seg)+2 <= maxSize {
			current = current + "\n\n" + seg
		} else {
			merged = append(merged, current)
			current = seg
		}
	}
	if current != "" {
		merged = append(merged, current)
	}
	return merged
}

// splitSentences splits a paragraph after '.', '!' or '?' followed by
// whitespace. Go's regexp has no lookbehind, so boundaries are found by a
// linear scan; the terminator stays with its sentence.
func splitSentences(para string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(para)-1; i++ {
		c := para[i]
		if (c == '.' || c == '!' || c == '?') && isSpace(para[i+1]) {
			sent := strings.TrimSpace(para[start : i+1])
			if sent != "" {
				sentences = append(sentences, sent)
			}
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(para[start:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// tailRunes returns the last n runes of s. Slicing by rune keeps the
// overlap from starting inside a multibyte character.
func tailRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
