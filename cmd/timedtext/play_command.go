package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"timedtext/internal/captions"
	"timedtext/internal/config"
	"timedtext/internal/logging"
	"timedtext/internal/playback"
	"timedtext/internal/session"
)

type playOptions struct {
	from  float64
	to    float64
	speed float64
	live  bool
}

func newPlayCommand(ctx *commandContext) *cobra.Command {
	var opts playOptions

	cmd := &cobra.Command{
		Use:   "play FILE",
		Short: "Play a descriptor against simulated media and print captions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			src, err := ctx.openSource(runCtx, logger, args[0])
			if err != nil {
				return err
			}
			defer src.Close(context.WithoutCancel(runCtx))

			opts.live = isTerminal(cmd.OutOrStdout())
			return runPlayback(runCtx, cfg, logger, src, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().Float64Var(&opts.from, "from", 0, "Start of the playback window in seconds")
	cmd.Flags().Float64Var(&opts.to, "to", math.Inf(1), "End of the playback window in seconds")
	cmd.Flags().Float64Var(&opts.speed, "speed", 0, "Simulated media speed (defaults to simulation.speed)")
	return cmd
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// runPlayback drives a session on its own loop until the window or Track
// ends, or ctx is cancelled.
func runPlayback(ctx context.Context, cfg *config.Config, logger *slog.Logger, src *source, opts playOptions, w io.Writer) error {
	link := session.DeepLink{Start: opts.from, End: opts.to}

	loop := playback.NewLoop()
	loopCtx, cancelLoop := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelLoop()
	loopErr := make(chan error, 1)
	go func() { loopErr <- loop.Run(loopCtx) }()

	done := make(chan struct{})
	printer := newPlayPrinter(w, opts.live, logger)

	var sess *session.Session
	var setupErr error
	err := loop.Call(ctx, func() {
		provider := playback.NewSimProvider(loop, simOptions(cfg, opts.speed))
		ctrl := playback.New(logger, loop, provider, playbackOptions(cfg))
		sess = session.New(logger, src.compiler, ctrl)

		started := false
		finished := false
		ctrl.Subscribe(func(ev playback.Event) {
			if finished {
				return
			}
			switch ev.Type {
			case playback.EventPlay:
				started = true
			case playback.EventPlayhead:
				printer.playhead(ev.Playhead, ctrl.Duration())
			case playback.EventPause, playback.EventEnded:
				if started {
					finished = true
					printer.finish(ctrl.CurrentTime(), ctrl.Duration())
					close(done)
				}
			}
		})

		track := sess.OnSourceChanged(ctx, src.doc.Segments)
		src.track = track
		if track.Len() == 0 {
			setupErr = errors.New("descriptor has nothing to play")
			return
		}
		if link.Start >= track.Duration {
			setupErr = fmt.Errorf("--from %g is past the end of the timeline (%g)", link.Start, track.Duration)
			return
		}
		if _, err := sess.ApplyDeepLink(link.String()); err != nil {
			setupErr = fmt.Errorf("apply playback window: %w", err)
		}
	})
	if err == nil {
		err = setupErr
	}

	if err == nil {
		select {
		case <-done:
		case <-ctx.Done():
			err = ctx.Err()
		case lerr := <-loopErr:
			err = fmt.Errorf("playback loop stopped: %w", lerr)
		}
	}

	if sess != nil {
		closeErr := loop.Call(loopCtx, func() { sess.Close(context.WithoutCancel(ctx)) })
		if closeErr != nil {
			logger.Debug("session close skipped", logging.Error(closeErr))
		}
	}
	return err
}

// playPrinter renders playheads either as one rewritten status line or as a
// line per caption change.
type playPrinter struct {
	w       io.Writer
	live    bool
	logger  *slog.Logger
	sampler *logging.ProgressSampler

	lastSegment int
	lastText    string
	width       int
}

func newPlayPrinter(w io.Writer, live bool, logger *slog.Logger) *playPrinter {
	return &playPrinter{
		w:           w,
		live:        live,
		logger:      logger,
		sampler:     logging.NewProgressSampler(25),
		lastSegment: -1,
	}
}

func (p *playPrinter) playhead(ph *playback.Playhead, duration float64) {
	if ph == nil || ph.Pseudo {
		return
	}
	segment := itemName(ph.Segment)
	if duration > 0 && p.sampler.ShouldLog(ph.Time/duration*100, segment) {
		p.logger.Info("playback progress",
			logging.Int(logging.FieldSegmentIndex, ph.SegmentIndex),
			logging.String(logging.FieldSegmentID, ph.Segment.ID()),
			logging.Seconds("position", ph.Time),
			logging.Seconds("duration", duration),
		)
	}

	text := ph.Caption()
	if p.live {
		line := fmt.Sprintf("%s / %s  %s  %s",
			captions.FormatTimestamp(ph.Time),
			captions.FormatTimestamp(duration),
			segment,
			text,
		)
		pad := max(p.width-len(line), 0)
		p.width = len(line)
		fmt.Fprintf(p.w, "\r%s%s", line, strings.Repeat(" ", pad))
		return
	}

	if ph.SegmentIndex != p.lastSegment {
		p.lastSegment = ph.SegmentIndex
		p.lastText = ""
		fmt.Fprintf(p.w, "%s  [%d] %s\n", captions.FormatTimestamp(ph.Time), ph.SegmentIndex, segment)
	}
	if text != "" && text != p.lastText {
		p.lastText = text
		fmt.Fprintf(p.w, "%s    %s\n", captions.FormatTimestamp(ph.Time), text)
	}
}

func (p *playPrinter) finish(position, duration float64) {
	if p.live {
		fmt.Fprintln(p.w)
	}
	fmt.Fprintf(p.w, "Stopped at %s of %s\n", captions.FormatTimestamp(position), captions.FormatTimestamp(duration))
}
