package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"timedtext/internal/captions"
	"timedtext/internal/timeline"
)

type lookupResult struct {
	Time         float64 `json:"time"`
	Found        bool    `json:"found"`
	SegmentIndex int     `json:"segment_index,omitempty"`
	Segment      string  `json:"segment,omitempty"`
	Clip         string  `json:"clip,omitempty"`
	Native       float64 `json:"native,omitempty"`
	Text         string  `json:"text,omitempty"`
}

func lookup(track *timeline.Track, t float64) lookupResult {
	pos, ok := track.ClipAt(t)
	if !ok {
		return lookupResult{Time: t}
	}
	res := lookupResult{
		Time:         t,
		Found:        true,
		SegmentIndex: pos.SegmentIndex,
		Segment:      itemName(pos.Segment),
		Native:       pos.Native,
	}
	if pos.Clip != nil {
		res.Clip = pos.Clip.ID()
	}
	if pos.TimedText != nil {
		res.Text = pos.TimedText.Text
	}
	return res
}

func newLookupCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "lookup FILE TIME...",
		Short: "Resolve virtual times to segments, clips and tokens",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			times := make([]float64, 0, len(args)-1)
			for _, raw := range args[1:] {
				t, err := parseTime(raw)
				if err != nil {
					return err
				}
				times = append(times, t)
			}

			logger, err := ctx.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			src, err := ctx.compileSource(cmd.Context(), logger, args[0])
			if err != nil {
				return err
			}
			defer src.Close(cmd.Context())

			results := make([]lookupResult, 0, len(times))
			for _, t := range times {
				results = append(results, lookup(src.track, t))
			}
			if jsonOutput {
				return writeJSON(cmd, results)
			}

			columns := []column{
				{title: "Time", numeric: true},
				{title: "Segment"},
				{title: "Clip"},
				{title: "Native", numeric: true},
				{title: "Text"},
			}
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				if !r.Found {
					rows = append(rows, []string{captions.FormatTimestamp(r.Time), "-", "-", "-", "no match"})
					continue
				}
				clip := r.Clip
				if clip == "" {
					clip = "-"
				}
				rows = append(rows, []string{
					captions.FormatTimestamp(r.Time),
					strconv.Itoa(r.SegmentIndex) + " " + r.Segment,
					clip,
					captions.FormatTimestamp(r.Native),
					r.Text,
				})
			}
			renderTable(cmd.OutOrStdout(), columns, rows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
