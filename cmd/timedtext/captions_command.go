package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"timedtext/internal/fileutil"
	"timedtext/internal/logging"
	"timedtext/internal/timeline"
)

const captionWriteLimit = 4

func newCaptionsCommand(ctx *commandContext) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "captions FILE",
		Short: "Write one WebVTT file per segment",
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

			if outDir == "" {
				outDir = "."
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create output directory %q: %w", outDir, err)
			}

			written, err := writeCaptionFiles(cmd.Context(), src, outDir)
			if err != nil {
				return err
			}
			sort.Strings(written)
			out := cmd.OutOrStdout()
			for _, path := range written {
				fmt.Fprintln(out, path)
			}
			fmt.Fprintf(out, "Wrote %d caption file(s)\n", len(written))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Directory for the WebVTT files")
	return cmd
}

// writeCaptionFiles copies every stored caption artifact of src into dir,
// named after the segment and language.
func writeCaptionFiles(ctx context.Context, src *source, dir string) ([]string, error) {
	segments := src.track.Segments()
	names := captionFileNames(segments)
	paths := make([]string, len(segments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(captionWriteLimit)
	for i, clip := range segments {
		payload := clip.Metadata.Captions
		if payload == nil {
			continue
		}
		g.Go(func() error {
			path, err := writeCaptionFile(gctx, src, clip, payload, filepath.Join(dir, names[i]))
			if err != nil {
				return err
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	written := paths[:0]
	for _, p := range paths {
		if p != "" {
			written = append(written, p)
		}
	}
	return written, nil
}

func writeCaptionFile(ctx context.Context, src *source, clip *timeline.Clip, payload *timeline.CaptionPayload, path string) (string, error) {
	ctx = logging.ContextWithSegment(ctx, clip.ClipID)
	logger := logging.WithContext(ctx, src.logger)

	artifact, err := src.store.Get(ctx, payload.ID)
	if err != nil {
		return "", fmt.Errorf("load captions for segment %s: %w", clip.ClipID, err)
	}
	if err := fileutil.WriteFileVerified(path, []byte(artifact.Body), 0o644); err != nil {
		return "", fmt.Errorf("write captions for segment %s: %w", clip.ClipID, err)
	}
	logger.Info("captions written",
		logging.String("path", path),
		logging.Int("cues", artifact.Cues),
		logging.String(logging.FieldArtifactID, artifact.ID),
	)
	return path, nil
}

// captionFileNames picks one file name per segment with captions. A segment
// whose name is already taken gets its index appended.
func captionFileNames(segments []*timeline.Clip) []string {
	names := make([]string, len(segments))
	taken := make(map[string]bool, len(segments))
	for i, clip := range segments {
		payload := clip.Metadata.Captions
		if payload == nil {
			continue
		}
		name := captionFileName(clip.ClipID, payload.Language)
		for n := i; taken[name]; n++ {
			name = captionFileName(fmt.Sprintf("%s-%d", clip.ClipID, n), payload.Language)
		}
		taken[name] = true
		names[i] = name
	}
	return names
}

func captionFileName(segmentID, language string) string {
	return fileutil.SanitizeFileName(fmt.Sprintf("%s.%s.vtt", segmentID, language))
}
