package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"timedtext/internal/captions"
	"timedtext/internal/timeline"
)

type itemSummary struct {
	Index    int     `json:"index"`
	Kind     string  `json:"kind"`
	ID       string  `json:"id"`
	Name     string  `json:"name,omitempty"`
	Media    string  `json:"media"`
	Offset   float64 `json:"offset"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Children int     `json:"children"`
	Tokens   int     `json:"tokens"`
	Cues     int     `json:"cues"`
	Effects  int     `json:"effects"`
	Captions string  `json:"captions,omitempty"`
}

type trackSummary struct {
	Path     string        `json:"path"`
	Title    string        `json:"title,omitempty"`
	Language string        `json:"language"`
	Duration float64       `json:"duration"`
	Items    []itemSummary `json:"items"`
}

func summarizeTrack(src *source) trackSummary {
	summary := trackSummary{
		Path:     src.path,
		Title:    src.doc.Title,
		Language: src.compiler.Language(),
		Duration: src.track.Duration,
		Items:    make([]itemSummary, 0, src.track.Len()),
	}
	for i, it := range src.track.Items {
		r := it.Range()
		row := itemSummary{
			Index:    i,
			Kind:     it.Kind().String(),
			ID:       it.ID(),
			Media:    it.Media().Target,
			Offset:   src.track.Offsets[i],
			Start:    r.Start,
			Duration: r.Duration,
		}
		if clip, ok := it.(*timeline.Clip); ok {
			row.Name = clip.Name
			row.Children = len(clip.Children)
			row.Tokens = len(clip.TimedTexts)
			row.Cues = len(clip.Cues)
			row.Effects = len(clip.Effects)
			if p := clip.Metadata.Captions; p != nil {
				row.Captions = p.URL
			}
		}
		summary.Items = append(summary.Items, row)
	}
	return summary
}

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Compile a descriptor and show the resulting timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			src, err := ctx.compileSource(cmd.Context(), logger, args[0])
			if err != nil {
				return err
			}
			defer src.Close(cmd.Context())

			summary := summarizeTrack(src)
			if jsonOutput {
				return writeJSON(cmd, summary)
			}

			out := cmd.OutOrStdout()
			if summary.Title != "" {
				fmt.Fprintf(out, "Title: %s\n", summary.Title)
			}
			fmt.Fprintf(out, "Language: %s\n", summary.Language)
			fmt.Fprintf(out, "Duration: %s (%d items)\n", captions.FormatTimestamp(summary.Duration), len(summary.Items))
			if len(summary.Items) == 0 {
				return nil
			}

			columns := []column{
				{title: "#", numeric: true},
				{title: "Kind"},
				{title: "Name"},
				{title: "Media"},
				{title: "Offset", numeric: true},
				{title: "Native", numeric: true},
				{title: "Duration", numeric: true},
				{title: "Tokens", numeric: true},
				{title: "Cues", numeric: true},
				{title: "Effects", numeric: true},
			}
			rows := make([][]string, 0, len(summary.Items))
			for i, row := range summary.Items {
				rows = append(rows, []string{
					strconv.Itoa(row.Index),
					row.Kind,
					itemName(src.track.Items[i]),
					row.Media,
					captions.FormatTimestamp(row.Offset),
					captions.FormatTimestamp(row.Start),
					captions.FormatTimestamp(row.Duration),
					strconv.Itoa(row.Tokens),
					strconv.Itoa(row.Cues),
					strconv.Itoa(row.Effects),
				})
			}
			renderTable(out, columns, rows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
