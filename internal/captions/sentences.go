package captions

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rivo/uniseg"

	"timedtext/internal/timeline"
)

type span struct {
	start, end int
}

// sentenceSpans splits text into sentences (UAX #29) and returns their byte
// spans with surrounding whitespace trimmed.
func sentenceSpans(text string) []span {
	var spans []span
	state := -1
	pos := 0
	rest := text
	for len(rest) > 0 {
		var sentence string
		sentence, rest, state = uniseg.FirstSentenceInString(rest, state)
		lead := len(sentence) - len(strings.TrimLeftFunc(sentence, unicode.IsSpace))
		trimmed := strings.TrimSpace(sentence)
		if trimmed != "" {
			start := pos + lead
			spans = append(spans, span{start: start, end: start + len(trimmed)})
		}
		pos += len(sentence)
	}
	return spans
}

// locate finds each token's byte span in text, in order. It fails when a
// token cannot be found after the previous one.
func locate(text string, tokens []*timeline.TimedText) ([]span, bool) {
	spans := make([]span, len(tokens))
	cursor := 0
	for i, tok := range tokens {
		word := strings.TrimSpace(tok.Text)
		if word == "" {
			spans[i] = span{start: cursor, end: cursor}
			continue
		}
		idx := strings.Index(text[cursor:], word)
		if idx < 0 {
			return nil, false
		}
		start := cursor + idx
		spans[i] = span{start: start, end: start + len(word)}
		cursor = spans[i].end
	}
	return spans, true
}

// JoinTokens concatenates token texts with single spaces.
func JoinTokens(tokens []*timeline.TimedText) string {
	words := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if w := strings.TrimSpace(tok.Text); w != "" {
			words = append(words, w)
		}
	}
	return strings.Join(words, " ")
}

// Annotate fills in character offsets, sentence flags and punctuation flags
// for tokens laid out in text. When text does not contain the tokens in
// order, the space-joined token texts are used instead.
func Annotate(text string, tokens []*timeline.TimedText) {
	if len(tokens) == 0 {
		return
	}
	spans, ok := locate(text, tokens)
	if !ok || strings.TrimSpace(text) == "" {
		text = JoinTokens(tokens)
		spans, _ = locate(text, tokens)
	}
	sentences := sentenceSpans(text)

	// Offsets count grapheme clusters, accumulated span by span.
	counted, chars := 0, 0
	for i, tok := range tokens {
		sp := spans[i]
		chars += uniseg.GraphemeClusterCount(text[counted:sp.start])
		tok.Offset = chars
		tok.Length = uniseg.GraphemeClusterCount(text[sp.start:sp.end])
		chars += tok.Length
		counted = sp.end
		tok.StartOfSentence = false
		tok.EndOfSentence = false
		for _, s := range sentences {
			if s.start >= sp.start && s.start < sp.end {
				tok.StartOfSentence = true
			}
			if s.end > sp.start && s.end <= sp.end {
				tok.EndOfSentence = true
			}
		}
		tok.Punctuation = endsWithPunct(tok.Text)
	}
	for i := 1; i < len(tokens); i++ {
		if tokens[i].StartOfSentence {
			tokens[i-1].EndOfSentence = true
		}
	}
}

func endsWithPunct(text string) bool {
	trimmed := strings.TrimRightFunc(text, unicode.IsSpace)
	if trimmed == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(trimmed)
	return unicode.IsPunct(r)
}
