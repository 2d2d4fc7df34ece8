package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"timedtext/internal/captions"
	"timedtext/internal/captionstore"
	"timedtext/internal/compiler"
	"timedtext/internal/descriptor"
	"timedtext/internal/logging"
	"timedtext/internal/timeline"
)

// source is a descriptor document compiled against the configured store.
type source struct {
	path     string
	doc      *descriptor.Document
	track    *timeline.Track
	compiler *compiler.Compiler
	store    *captionstore.Store
	logger   *slog.Logger
}

func (s *source) Close(ctx context.Context) {
	s.compiler.Release(ctx)
	if err := s.store.Close(); err != nil {
		s.logger.Debug("caption store close failed", logging.Error(err))
	}
}

// openSource loads the descriptor at path and prepares a compiler for it
// without compiling.
func (c *commandContext) openSource(ctx context.Context, logger *slog.Logger, path string) (*source, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	doc, err := descriptor.LoadFile(path)
	if err != nil {
		return nil, err
	}
	store, err := c.openStore(ctx)
	if err != nil {
		return nil, err
	}
	return &source{
		path:     path,
		doc:      doc,
		compiler: compiler.New(logger, store, compilerOptions(cfg, doc.Language)),
		store:    store,
		logger:   logger,
	}, nil
}

func (c *commandContext) compileSource(ctx context.Context, logger *slog.Logger, path string) (*source, error) {
	src, err := c.openSource(ctx, logger, path)
	if err != nil {
		return nil, err
	}
	track, duration := src.compiler.Compile(ctx, src.doc.Segments)
	src.track = track
	logger.Debug("descriptor compiled",
		logging.String("path", path),
		logging.Int("segments", len(src.doc.Segments)),
		logging.Seconds("duration", duration),
	)
	return src, nil
}

// parseTime accepts plain seconds or an HH:MM:SS.mmm timestamp.
func parseTime(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if strings.Contains(value, ":") {
		return captions.ParseTimestamp(value)
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid time %q", value)
	}
	return v, nil
}

func itemName(it timeline.Item) string {
	if c, ok := it.(*timeline.Clip); ok && c.Name != "" {
		return c.Name
	}
	return it.ID()
}
