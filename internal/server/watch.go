package server

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/parcelgrid/proforma/internal/model"
)

// watchConfig watches the config file's directory and applies logging-level
// changes live through the zap atomic level. The directory is watched rather
// than the file itself so editors that replace-by-rename keep the watch
// alive.
func (s *Server) watchConfig() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(s.configPath)); err != nil {
		_ = watcher.Close()
		return err
	}

	base := filepath.Base(s.configPath)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { _ = watcher.Close() }()

		for {
			select {
			case <-s.ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != base {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				s.reloadLogLevel()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("config watch error", zap.Error(err))
			}
		}
	}()

	return nil
}

func (s *Server) reloadLogLevel() {
	cfg, err := model.LoadConfig(s.configPath)
	if err != nil {
		s.logger.Warn("config reload failed", zap.Error(err))
		return
	}

	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		s.logger.Warn("config reload: bad log level",
			zap.String("level", cfg.Logging.Level), zap.Error(err))
		return
	}

	if s.level.Level() != level {
		s.level.SetLevel(level)
		s.logger.Info("log level changed", zap.String("level", level.String()))
	}
}
