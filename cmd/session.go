package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/papapumpkin/titlepatch/internal/config"
	"github.com/papapumpkin/titlepatch/internal/logging"
	"github.com/papapumpkin/titlepatch/internal/patcher"
	"github.com/papapumpkin/titlepatch/internal/store"
	"github.com/papapumpkin/titlepatch/internal/telemetry"
)

// session bundles what every command needs: config, logger, telemetry, the
// patching system and the override store.
type session struct {
	cfg    config.Config
	logger *slog.Logger
	events *telemetry.Emitter
	sys    *patcher.System
	store  *store.SQLiteStore // nil when state_db is empty
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	s := &session{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr),
	}

	if cfg.TelemetryPath != "" {
		s.events, err = telemetry.NewEmitter(cfg.TelemetryPath)
		if err != nil {
			return nil, err
		}
	}
	if cfg.StateDB != "" {
		s.store, err = store.Open(ctx, cfg.StateDB)
		if err != nil {
			s.events.Close()
			return nil, err
		}
	}
	s.sys = patcher.New(patcher.WithLogger(s.logger), patcher.WithEmitter(s.events))
	return s, nil
}

func (s *session) Close() {
	if s.store != nil {
		s.store.Close()
	}
	s.events.Close()
}

// load reads the given files, or the configured patch directory when none
// are given, then replays stored overrides.
func (s *session) load(ctx context.Context, files []string) (patcher.LoadReport, error) {
	var sources []patcher.Source
	if len(files) > 0 {
		for _, f := range files {
			sources = append(sources, patcher.FileSource(f))
		}
	} else {
		var err error
		sources, err = patcher.Discover(s.cfg.PatchesDir)
		if err != nil {
			return patcher.LoadReport{}, err
		}
		if len(sources) == 0 {
			s.logger.Warn("no patch files found", "dir", s.cfg.PatchesDir)
		}
	}

	report := s.sys.LoadAll(sources)
	if err := s.replayOverrides(ctx); err != nil {
		return report, err
	}
	return report, nil
}

func (s *session) replayOverrides(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	unmatched, err := s.store.Replay(ctx, s.sys)
	if err != nil {
		return err
	}
	for _, o := range unmatched {
		s.logger.Debug("override matches no loaded patch", "title", fmt.Sprintf("%08X", o.TitleID), "patch", o.PatchID)
	}
	return nil
}

// parseTitleID parses a title id written in hex, with or without 0x.
func parseTitleID(s string) (uint32, error) {
	t := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	n, err := strconv.ParseUint(t, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid title id %q: want up to 8 hex digits", s)
	}
	return uint32(n), nil
}

// parseUint32 parses a decimal or 0x-prefixed number.
func parseUint32(what, s string) (uint32, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}
	return uint32(n), nil
}
