package captions

import (
	"strconv"

	"timedtext/internal/timeline"
)

// Options tune the cue break heuristic. Character counts are grapheme
// clusters within a child's text.
type Options struct {
	// Threshold is the running length that triggers a break, roughly two
	// caption lines.
	Threshold int
	// LookBehind is how many tokens, ending at the trigger token, are
	// searched for a sentence end or punctuation.
	LookBehind int
	// LookAhead is how many tokens after the trigger may absorb the break
	// when nothing suitable is found behind it.
	LookAhead int
	// Tail is the number of trailing tokens treated as widow territory.
	Tail int
	// Karaoke tags every token after the first with its own start time.
	Karaoke bool
}

// DefaultOptions returns the stock heuristic values.
func DefaultOptions() Options {
	return Options{
		Threshold:  74,
		LookBehind: 5,
		LookAhead:  3,
		Tail:       5,
		Karaoke:    true,
	}
}

func (o Options) sanitized() Options {
	def := DefaultOptions()
	if o.Threshold <= 0 {
		o.Threshold = def.Threshold
	}
	if o.LookBehind <= 0 {
		o.LookBehind = 1
	}
	if o.LookAhead < 0 {
		o.LookAhead = 0
	}
	if o.Tail < 0 {
		o.Tail = 0
	}
	return o
}

// Segmenter groups annotated tokens into caption cues.
type Segmenter struct {
	opts Options
}

// NewSegmenter returns a Segmenter using opts; zero or negative values fall
// back to sane defaults.
func NewSegmenter(opts Options) *Segmenter {
	return &Segmenter{opts: opts.sanitized()}
}

// Options returns the effective options.
func (s *Segmenter) Options() Options {
	return s.opts
}

// GroupIntoCues annotates tokens against their joined text and groups them
// with the default options. The group keys use the first token's start.
func GroupIntoCues(tokens []*timeline.TimedText) []timeline.Cue {
	if len(tokens) == 0 {
		return nil
	}
	seg := NewSegmenter(DefaultOptions())
	return seg.Segment(JoinTokens(tokens), tokens[0].MarkedRange.Start, tokens)
}

// Segment annotates tokens against text, runs the break sweep and assembles
// cues. clipStart namespaces the caption group keys.
func (s *Segmenter) Segment(text string, clipStart float64, tokens []*timeline.TimedText) []timeline.Cue {
	if len(tokens) == 0 {
		return nil
	}
	Annotate(text, tokens)
	s.Sweep(clipStart, tokens)
	return s.Assemble(tokens)
}

// Sweep assigns caption groups and break markers to annotated tokens.
func (s *Segmenter) Sweep(clipStart float64, tokens []*timeline.TimedText) {
	for _, tok := range tokens {
		tok.CaptionGroup = ""
		tok.Pilcrow, tok.Pilcrow0, tok.Pilcrow2, tok.Pilcrow3, tok.Glue = false, false, false, false, false
	}
	n := len(tokens)
	lastBreak, from := 0, 0
	for i := 0; i < n; i++ {
		tok := tokens[i]
		if i < n-1 && tok.Offset+tok.Length-lastBreak < s.opts.Threshold {
			continue
		}
		brk, through := s.chooseBreak(tokens, from, i)
		tokens[brk].Pilcrow = true
		lastBreak = tokens[brk].Offset + tokens[brk].Length + 1
		key := groupKey(clipStart, lastBreak)
		for j := from; j <= through; j++ {
			tokens[j].CaptionGroup = key
		}
		from = through + 1
		i = through
	}
}

// chooseBreak picks the break token for a trigger at i and the last token
// that belongs to the group being closed.
func (s *Segmenter) chooseBreak(tokens []*timeline.TimedText, from, i int) (brk, through int) {
	n := len(tokens)
	if i == n-1 {
		return i, i
	}
	low := max(from, i-s.opts.LookBehind+1)
	if j := lastMatch(tokens, low, i, isSentenceEnd); j >= 0 {
		return j, j
	}
	if j := lastMatch(tokens, low, i, isPunct); j >= 0 {
		return j, j
	}

	tokens[i].Pilcrow0 = true
	if i < n-s.opts.Tail {
		for k := i + 1; k <= min(i+s.opts.LookAhead, n-1); k++ {
			if tokens[k].Punctuation {
				tokens[k].Pilcrow2 = true
				return k, k
			}
		}
		return i, i
	}

	// Inside the tail: move the break to a sentence end or punctuation mark
	// near the trigger. The final token is not a candidate; breaking there is
	// the same as not breaking at all.
	tail := max(from, n-s.opts.Tail)
	for _, pred := range []func(*timeline.TimedText) bool{isSentenceEnd, isPunct} {
		if k := firstMatch(tokens, i+1, n-2, pred); k >= 0 {
			tokens[k].Pilcrow3 = true
			return k, k
		}
		if k := lastMatch(tokens, tail, i-1, pred); k >= 0 {
			tokens[k].Pilcrow3 = true
			return k, i
		}
	}
	return i, i
}

func isSentenceEnd(t *timeline.TimedText) bool { return t.EndOfSentence }

func isPunct(t *timeline.TimedText) bool { return t.Punctuation }

func lastMatch(tokens []*timeline.TimedText, lo, hi int, pred func(*timeline.TimedText) bool) int {
	for j := hi; j >= lo && j >= 0; j-- {
		if pred(tokens[j]) {
			return j
		}
	}
	return -1
}

func firstMatch(tokens []*timeline.TimedText, lo, hi int, pred func(*timeline.TimedText) bool) int {
	for j := max(lo, 0); j <= hi && j < len(tokens); j++ {
		if pred(tokens[j]) {
			return j
		}
	}
	return -1
}

func groupKey(clipStart float64, lastBreak int) string {
	return strconv.FormatFloat(clipStart, 'f', -1, 64) + "-" + strconv.Itoa(lastBreak)
}
