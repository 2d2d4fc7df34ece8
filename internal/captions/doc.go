// Package captions turns timed transcript tokens into caption cues.
//
// Annotate lays tokens over their paragraph text and marks sentence
// boundaries (Unicode sentence segmentation via uniseg) and trailing
// punctuation. The Segmenter then sweeps each paragraph left to right,
// closing a cue whenever the running text passes the configured length and
// picking the break point from nearby sentence ends or punctuation, with
// extra rules to avoid stranding a few words at the end of a paragraph.
// Assemble collects the groups into ordered, non-overlapping cues and
// WriteVTT renders them as a WebVTT caption file.
//
// The heuristic constants are empirical; they live in Options so callers
// can tune them from configuration.
package captions
