package captions

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"timedtext/internal/timeline"
)

// DefaultLanguage is used when no language tag is configured.
const DefaultLanguage = "en"

// FormatTimestamp renders seconds as HH:MM:SS.mmm, rounded to the nearest
// millisecond. Zero, negative and non-finite values render as 00:00:00.000.
func FormatTimestamp(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 {
		return "00:00:00.000"
	}
	ms := int64(math.Round(seconds * 1000))
	h := ms / 3_600_000
	ms %= 3_600_000
	m := ms / 60_000
	ms %= 60_000
	s := ms / 1000
	ms %= 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// ParseTimestamp parses HH:MM:SS.mmm (or MM:SS.mmm) into seconds.
func ParseTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	clock, frac, _ := strings.Cut(value, ".")
	parts := strings.Split(clock, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	var total float64
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid timestamp %q", value)
		}
		total = total*60 + float64(n)
	}
	if frac != "" {
		ms, err := strconv.Atoi(frac)
		if err != nil || len(frac) != 3 {
			return 0, fmt.Errorf("invalid timestamp %q", value)
		}
		total += float64(ms) / 1000
	}
	return total, nil
}

// NormalizeLanguage canonicalizes a BCP 47 tag, defaulting to English.
func NormalizeLanguage(tag string) (string, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return DefaultLanguage, nil
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return "", fmt.Errorf("language tag %q: %w", tag, err)
	}
	return parsed.String(), nil
}

// WriteVTT writes cues as a WebVTT caption file.
func WriteVTT(w io.Writer, lang string, cues []timeline.Cue) error {
	if lang == "" {
		lang = DefaultLanguage
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "WEBVTT\nKind: captions\nLanguage: %s\n", lang)
	for i, cue := range cues {
		fmt.Fprintf(bw, "\n%d\n%s --> %s\n%s\n", i+1, FormatTimestamp(cue.Start), FormatTimestamp(cue.End), cue.Text)
	}
	return bw.Flush()
}

// RenderVTT returns the WebVTT document for cues.
func RenderVTT(lang string, cues []timeline.Cue) string {
	var b strings.Builder
	_ = WriteVTT(&b, lang, cues)
	return b.String()
}

// ParsedCue is a cue read back from a WebVTT document.
type ParsedCue struct {
	Index int
	Start float64
	End   float64
	Text  string
}

// ParseVTT reads the cues of a WebVTT document produced by WriteVTT.
func ParseVTT(r io.Reader) ([]ParsedCue, error) {
	scanner := bufio.NewScanner(r)
	var (
		cues []ParsedCue
		cur  *ParsedCue
		seq  int
	)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		switch {
		case strings.TrimSpace(line) == "":
			if cur != nil {
				cues = append(cues, *cur)
				cur = nil
			}
		case strings.Contains(line, "-->"):
			startText, endText, _ := strings.Cut(line, "-->")
			start, err := ParseTimestamp(startText)
			if err != nil {
				return nil, err
			}
			fields := strings.Fields(endText)
			if len(fields) == 0 {
				return nil, fmt.Errorf("invalid cue timing %q", line)
			}
			end, err := ParseTimestamp(fields[0])
			if err != nil {
				return nil, err
			}
			cur = &ParsedCue{Index: seq, Start: start, End: end}
		case cur != nil:
			if cur.Text != "" {
				cur.Text += "\n"
			}
			cur.Text += line
		default:
			if n, err := strconv.Atoi(strings.TrimSpace(line)); err == nil {
				seq = n
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan vtt: %w", err)
	}
	if cur != nil {
		cues = append(cues, *cur)
	}
	return cues, nil
}
