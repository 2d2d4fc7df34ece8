package session

import (
	"context"
	"log/slog"
	"slices"

	"timedtext/internal/descriptor"
	"timedtext/internal/logging"
	"timedtext/internal/playback"
	"timedtext/internal/timeline"
)

// Compiler produces Tracks from segment descriptors.
type Compiler interface {
	Compile(ctx context.Context, segments []descriptor.Segment) (*timeline.Track, float64)
	Release(ctx context.Context)
}

// Session binds one compiler to one controller. Like the controller, it must
// only be used from the playback loop.
type Session struct {
	logger   *slog.Logger
	compiler Compiler
	ctrl     *playback.Controller

	segments      []descriptor.Segment
	resumeOnReady bool
	unsubscribe   func()
	closed        bool
}

// New wires a session. The controller should have no Track loaded yet.
func New(logger *slog.Logger, compiler Compiler, ctrl *playback.Controller) *Session {
	s := &Session{
		logger:   logging.NewComponentLogger(logger, "session"),
		compiler: compiler,
		ctrl:     ctrl,
	}
	s.unsubscribe = ctrl.Subscribe(s.onEvent)
	return s
}

// Controller returns the controller driven by the session.
func (s *Session) Controller() *playback.Controller { return s.ctrl }

// Track returns the Track currently loaded.
func (s *Session) Track() *timeline.Track { return s.ctrl.Track() }

// OnSourceChanged recompiles segments and replaces the loaded Track. The
// playhead keeps its virtual time, or returns to zero when that time is past
// the new end, and playback continues once the new handles are ready if it
// was running.
func (s *Session) OnSourceChanged(ctx context.Context, segments []descriptor.Segment) *timeline.Track {
	if s.closed {
		return nil
	}
	s.segments = slices.Clone(segments)
	return s.load(ctx)
}

// Reload recompiles the last source reported by the host.
func (s *Session) Reload(ctx context.Context) *timeline.Track {
	if s.closed {
		return nil
	}
	return s.load(ctx)
}

func (s *Session) load(ctx context.Context) *timeline.Track {
	at := s.ctrl.CurrentTime()
	wasPlaying := s.ctrl.Playing() || s.resumeOnReady

	track, duration := s.compiler.Compile(ctx, s.segments)
	if at >= duration {
		at = 0
	}
	s.resumeOnReady = false
	s.ctrl.Load(track, at)
	s.logger.Info("source compiled",
		logging.Int("segments", len(s.segments)),
		logging.Int("items", track.Len()),
		logging.Float64("duration", duration),
		logging.Float64("position", s.ctrl.CurrentTime()),
	)

	if wasPlaying {
		s.resume()
	}
	return track
}

func (s *Session) resume() {
	err := s.ctrl.Play()
	if err == nil {
		return
	}
	s.resumeOnReady = true
	s.logger.Debug("playback resumes when handles are ready", logging.Error(err))
}

func (s *Session) onEvent(ev playback.Event) {
	switch ev.Type {
	case playback.EventCanPlay:
		if s.resumeOnReady {
			s.resumeOnReady = false
			s.resume()
		}
	case playback.EventPause:
		s.resumeOnReady = false
	}
}

// ApplyDeepLink parses raw and restricts playback to its window. Playback
// starts at the window start once every handle can play.
func (s *Session) ApplyDeepLink(raw string) (DeepLink, error) {
	link, err := ParseDeepLink(raw)
	if err != nil {
		return DeepLink{}, err
	}
	s.resumeOnReady = false
	if err := s.ctrl.SetWindow(link.Start, link.End); err != nil {
		return DeepLink{}, err
	}
	s.logger.Debug("deep link applied", logging.String("link", link.String()))
	return link, nil
}

// Close detaches every handle and releases compiled caption artifacts.
func (s *Session) Close(ctx context.Context) {
	if s.closed {
		return
	}
	s.closed = true
	s.unsubscribe()
	s.ctrl.Close()
	s.compiler.Release(ctx)
}
