package compiler

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"timedtext/internal/captions"
	"timedtext/internal/captionstore"
	"timedtext/internal/descriptor"
	"timedtext/internal/logging"
	"timedtext/internal/timeline"
)

// ArtifactStore keeps the WebVTT documents produced per segment.
type ArtifactStore interface {
	Put(ctx context.Context, segmentID, language, body string, cues int) (captionstore.Artifact, error)
	Release(ctx context.Context, id string) error
}

// Options configure a Compiler.
type Options struct {
	// Language tags the WebVTT artifacts. Empty means English.
	Language string
	// Captions tunes the cue break heuristic.
	Captions captions.Options
}

// Compiler turns segment descriptors into a Track.
type Compiler struct {
	logger    *slog.Logger
	segmenter *captions.Segmenter
	store     ArtifactStore
	language  string
	newID     func() string

	previous []*timeline.CaptionPayload
}

// New builds a Compiler. A nil store skips caption artifacts; a nil logger
// discards warnings.
func New(logger *slog.Logger, store ArtifactStore, opts Options) *Compiler {
	lang, err := captions.NormalizeLanguage(opts.Language)
	if err != nil {
		logging.WarnWithContext(logger, "invalid caption language; using default", "compile_language_invalid",
			logging.String("language", opts.Language),
			logging.Error(err),
			logging.String(logging.FieldImpact, "captions are tagged "+captions.DefaultLanguage),
		)
		lang = captions.DefaultLanguage
	}
	return &Compiler{
		logger:    logging.NewComponentLogger(logger, "compiler"),
		segmenter: captions.NewSegmenter(opts.Captions),
		store:     store,
		language:  lang,
		newID:     uuid.NewString,
	}
}

// Language returns the tag used for caption artifacts.
func (c *Compiler) Language() string {
	return c.language
}

// Compile builds a Track from segments in order and returns it with its total
// duration. Malformed timing is repaired item by item and logged; Compile
// never fails. Caption payloads of the previously compiled Track are
// released once the new one is complete.
func (c *Compiler) Compile(ctx context.Context, segments []descriptor.Segment) (*timeline.Track, float64) {
	items := make([]timeline.Item, 0, len(segments))
	var prev *timeline.Clip
	for i := range segments {
		clip := c.compileSegment(ctx, &segments[i])
		if prev != nil && prev.MediaReference == clip.MediaReference {
			if gap, ok := c.gapBetween(prev.SourceRange, clip.SourceRange, clip.MediaReference); ok {
				items = append(items, gap)
			} else if overlaps(prev.SourceRange, clip.SourceRange) {
				c.warnOverlap(clip.ClipID, prev.SourceRange, clip.SourceRange)
			}
		}
		items = append(items, clip)
		prev = clip
	}

	track := timeline.NewTrack(items)
	c.releasePrevious(ctx)
	c.previous = track.Payloads()

	c.logger.Debug("timeline compiled",
		logging.Int("segments", len(segments)),
		logging.Int("items", len(items)),
		logging.Float64("duration", track.Duration),
	)
	return track, track.Duration
}

// Release drops the caption artifacts of the most recent compile pass.
func (c *Compiler) Release(ctx context.Context) {
	c.releasePrevious(ctx)
	c.previous = nil
}

func (c *Compiler) releasePrevious(ctx context.Context) {
	if c.store == nil {
		return
	}
	for _, payload := range c.previous {
		err := c.store.Release(ctx, payload.ID)
		switch {
		case err == nil:
		case errors.Is(err, captionstore.ErrNotFound):
			c.logger.Debug("caption artifact already released", logging.String("artifact_id", payload.ID))
		default:
			logging.WarnWithContext(c.logger, "caption artifact release failed", "caption_release_failed",
				logging.String("artifact_id", payload.ID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "stale caption artifact stays in the store"),
			)
		}
	}
}

func (c *Compiler) compileSegment(ctx context.Context, seg *descriptor.Segment) *timeline.Clip {
	id := strings.TrimSpace(seg.ID)
	if id == "" {
		id = c.newID()
	}
	media := timeline.MediaReference{Target: strings.TrimSpace(seg.Media)}
	clip := &timeline.Clip{
		ClipID:         id,
		Name:           seg.Name,
		MediaReference: media,
		Metadata:       timeline.Metadata{Data: seg.Metadata},
	}

	declared, declaredErr := seg.Range.Resolve()
	anchor := declared.Start

	var children []*timeline.Clip
	prevEnd := anchor
	for i := range seg.Children {
		child := c.compileChild(id, media, &seg.Children[i], prevEnd)
		children = append(children, child)
		prevEnd = child.SourceRange.End()
	}

	switch {
	case declaredErr == nil:
		clip.SourceRange = declared
	case len(children) > 0:
		c.warnTiming("segment", id, declaredErr)
		first, last := children[0].SourceRange, children[len(children)-1].SourceRange
		clip.SourceRange = timeline.TimeRange{Start: first.Start, Duration: max(last.End()-first.Start, 0)}
	default:
		c.warnTiming("segment", id, declaredErr)
		clip.SourceRange = timeline.TimeRange{}
	}

	for i, child := range children {
		if i > 0 {
			if gap, ok := c.gapBetween(children[i-1].SourceRange, child.SourceRange, child.MediaReference); ok {
				clip.Children = append(clip.Children, gap)
			} else if overlaps(children[i-1].SourceRange, child.SourceRange) {
				c.warnOverlap(child.ClipID, children[i-1].SourceRange, child.SourceRange)
			}
		}
		clip.Children = append(clip.Children, child)
		clip.TimedTexts = append(clip.TimedTexts, child.TimedTexts...)
		clip.Cues = append(clip.Cues, child.Cues...)
	}

	clip.Effects = c.compileEffects(id, seg.Effects)
	clip.Metadata.Captions = c.storeCaptions(ctx, clip)
	return clip
}

func (c *Compiler) compileChild(segmentID string, segMedia timeline.MediaReference, child *descriptor.Child, anchor float64) *timeline.Clip {
	id := strings.TrimSpace(child.ID)
	if id == "" {
		id = c.newID()
	}
	media := segMedia
	if target := strings.TrimSpace(child.Media); target != "" {
		media = timeline.MediaReference{Target: target}
	}

	declared, declaredErr := child.Range.Resolve()
	tokenAnchor := anchor
	if declaredErr == nil {
		tokenAnchor = declared.Start
	}

	tokens := make([]*timeline.TimedText, 0, len(child.Tokens))
	for i := range child.Tokens {
		tok := &child.Tokens[i]
		rng, err := tok.Range.Resolve()
		if err != nil {
			c.warnTiming("token", segmentID, err, logging.String("clip_id", id), logging.Int("token_index", i))
			rng = timeline.TimeRange{Start: tokenAnchor}
		}
		tokens = append(tokens, &timeline.TimedText{Text: tok.Text, MarkedRange: rng})
		tokenAnchor = rng.End()
	}

	clip := &timeline.Clip{
		ClipID:         id,
		MediaReference: media,
		TimedTexts:     tokens,
	}
	switch {
	case declaredErr == nil:
		clip.SourceRange = declared
	case len(tokens) > 0:
		c.warnTiming("child", segmentID, declaredErr, logging.String("clip_id", id))
		start := tokens[0].MarkedRange.Start
		clip.SourceRange = timeline.TimeRange{Start: start, Duration: max(tokens[len(tokens)-1].End()-start, 0)}
	default:
		c.warnTiming("child", segmentID, declaredErr, logging.String("clip_id", id))
		clip.SourceRange = timeline.TimeRange{Start: anchor}
	}

	if len(tokens) > 0 {
		clip.Cues = c.segmenter.Segment(child.Text, clip.SourceRange.Start, tokens)
	}
	return clip
}

func (c *Compiler) compileEffects(segmentID string, effects []descriptor.Effect) []timeline.Effect {
	out := make([]timeline.Effect, 0, len(effects))
	for i := range effects {
		eff := &effects[i]
		rng, err := eff.Range.Resolve()
		if err != nil {
			c.warnTiming("effect", segmentID, err, logging.String("effect", eff.Name))
			continue
		}
		id := strings.TrimSpace(eff.ID)
		if id == "" {
			id = c.newID()
		}
		out = append(out, timeline.Effect{ID: id, Name: eff.Name, SourceRange: rng, Parameters: eff.Parameters})
	}
	return out
}

// gapBetween returns a Gap covering the hole between prev and next. Holes
// within timeline.Epsilon are round-off from the descriptor notation.
func (c *Compiler) gapBetween(prev, next timeline.TimeRange, media timeline.MediaReference) (*timeline.Gap, bool) {
	if next.Start-prev.End() <= timeline.Epsilon {
		return nil, false
	}
	return &timeline.Gap{
		GapID:          c.newID(),
		SourceRange:    timeline.TimeRange{Start: prev.End(), Duration: next.Start - prev.End()},
		MediaReference: media,
	}, true
}

func overlaps(prev, next timeline.TimeRange) bool {
	return prev.End()-next.Start > timeline.Epsilon
}

func (c *Compiler) storeCaptions(ctx context.Context, clip *timeline.Clip) *timeline.CaptionPayload {
	if c.store == nil {
		return nil
	}
	body := captions.RenderVTT(c.language, clip.Cues)
	art, err := c.store.Put(ctx, clip.ClipID, c.language, body, len(clip.Cues))
	if err != nil {
		logging.WarnWithContext(c.logger, "caption artifact store failed", "caption_store_failed",
			logging.String(logging.FieldSegmentID, clip.ClipID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "segment has no caption track"),
		)
		return nil
	}
	return &timeline.CaptionPayload{
		ID:       art.ID,
		URL:      art.URL(),
		Language: c.language,
		Cues:     len(clip.Cues),
	}
}

func (c *Compiler) warnTiming(scope, segmentID string, err error, attrs ...logging.Attr) {
	attrs = append([]logging.Attr{
		logging.String("scope", scope),
		logging.String(logging.FieldSegmentID, segmentID),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the descriptor timing notation"),
		logging.String(logging.FieldImpact, "zero-length range substituted"),
	}, attrs...)
	logging.WarnWithContext(c.logger, "malformed descriptor timing", "compile_malformed_timing", attrs...)
}

func (c *Compiler) warnOverlap(id string, prev, next timeline.TimeRange) {
	logging.WarnWithContext(c.logger, "overlapping native ranges", "compile_overlap",
		logging.String("clip_id", id),
		logging.Span("previous", prev.Start, prev.End()),
		logging.Span("next", next.Start, next.End()),
		logging.String(logging.FieldImpact, "no gap inserted; virtual timeline plays both ranges in full"),
	)
}
