// Package textproc implements C1: HTML→text cleaning, sentence splitting,
// sentence-overlap chunking, and content hashing. Every function here is
// pure — no I/O, no context — so dedup and chunk identity are fully
// deterministic.
package textproc

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// TargetWords is the default chunk target size, in words.
const TargetWords = 100

var (
	entityEscape  = regexp.MustCompile(`&[#\w]+;`)
	blankRuns     = regexp.MustCompile(`\n\s*\n`)
	sentenceBreak = regexp.MustCompile(`[.!?]\s+`)
)

// Clean parses raw_html and extracts its text, with each non-blank text node
// on its own line, HTML entity escapes stripped, runs of blank lines
// collapsed to a single newline, and the result trimmed. Clean is idempotent:
// Clean(Clean(x)) == Clean(x).
func Clean(rawHTML string) string {
	if strings.TrimSpace(rawHTML) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		// Not parseable as HTML fragments: treat as already-plain text so a
		// malformed blob never fails the whole post.
		return normalize(rawHTML)
	}
	var lines []string
	doc.Find("body").Each(func(_ int, s *goquery.Selection) {
		extractLines(s, &lines)
	})
	if len(lines) == 0 {
		// Nothing under the (always synthesized) <body> has text; fall back
		// to the whole document's text.
		lines = append(lines, doc.Text())
	}
	return normalize(strings.Join(lines, "\n"))
}

// extractLines walks s's children depth-first, emitting one line per
// non-blank text node so adjacent elements don't run together —
// equivalent to BeautifulSoup's get_text(separator="\n").
func extractLines(s *goquery.Selection, out *[]string) {
	s.Contents().Each(func(_ int, node *goquery.Selection) {
		if goquery.NodeName(node) == "#text" {
			if text := node.Text(); strings.TrimSpace(text) != "" {
				*out = append(*out, text)
			}
			return
		}
		extractLines(node, out)
	})
}

func normalize(text string) string {
	text = entityEscape.ReplaceAllString(text, "")
	text = blankRuns.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}

// SplitSentences splits text on sentence-ending punctuation (.?!) followed by
// whitespace, preserving the punctuation on the left half and dropping empty
// fragments.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var sentences []string
	matches := sentenceBreak.FindAllStringIndex(text, -1)
	last := 0
	for _, m := range matches {
		// m[0] is the index of the punctuation char that starts the match;
		// keep it attached to the left-hand sentence, drop the whitespace.
		if sentence := strings.TrimSpace(text[last : m[0]+1]); sentence != "" {
			sentences = append(sentences, sentence)
		}
		last = m[1]
	}
	if tail := strings.TrimSpace(text[last:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// ChunkInput is the minimal shape Chunk needs from a blob: its text content
// and an optional title to prefix each chunk with.
type ChunkInput struct {
	Content string
	Title   string
}

// Chunk implements the sentence-overlap chunking algorithm: accumulate
// sentences into a running chunk; once the next sentence would
// push the running chunk over targetWords, emit it (prefixed with
// "Title: {title}\n\n" when a title is set) and start the next chunk seeded
// with the last sentence of the one just emitted, as a one-sentence overlap.
// The sentences still pending at the end are emitted as a final chunk;
// content with no sentences yields no chunks. Chunk is deterministic: identical
// inputs produce identical output (and therefore identical Hash sequences).
func Chunk(input ChunkInput, targetWords int) []string {
	if targetWords <= 0 {
		targetWords = TargetWords
	}
	sentences := SplitSentences(input.Content)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var current []string
	wordCount := 0

	emit := func() {
		text := strings.Join(current, " ")
		if input.Title != "" {
			text = "Title: " + input.Title + "\n\n" + text
		}
		chunks = append(chunks, text)
	}

	for _, sentence := range sentences {
		n := len(strings.Fields(sentence))
		if wordCount+n > targetWords && len(current) > 0 {
			emit()
			last := current[len(current)-1]
			current = []string{last}
			wordCount = len(strings.Fields(last))
		}
		current = append(current, sentence)
		wordCount += n
	}
	if len(current) > 0 {
		emit()
	}
	return chunks
}

// Hash returns the 64-hex SHA-256 digest of text, used as the dedup key for
// chunk content-addressing.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
