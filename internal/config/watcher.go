package config

import (
	"context"
	"path/filepath"

	"ordercore/internal/logger"
	"ordercore/internal/risk"

	"github.com/fsnotify/fsnotify"
)

// WatchRiskLimits reloads the config file on change and pushes the risk
// section into the validator, so limits can be tightened without a
// restart. Only the risk section is hot; everything else needs a restart
// and is deliberately ignored here.
func WatchRiskLimits(ctx context.Context, path string, validator *risk.Validator) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return err
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != abs || !ev.Op.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				cfg, err := Load(abs)
				if err != nil {
					logger.Warnf("config reload failed, keeping current limits: %v", err)
					continue
				}
				validator.SetLimits(cfg.Risk)
				logger.Infof("risk limits reloaded from %s", abs)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warnf("config watcher error: %v", err)
			}
		}
	}()
	return nil
}
