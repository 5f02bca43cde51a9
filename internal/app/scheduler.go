package app

import (
	"context"

	"github.com/bobmcallan/playasset/internal/common"
)

// StartBackground launches the simulation batch (when enabled) and the
// analytics config watcher. Both stop on Close.
func (a *App) StartBackground() {
	ctx, cancel := context.WithCancel(context.Background())
	a.backgroundCancel = cancel

	if a.Config.Jobs.SimulationBatch.Enabled {
		go a.SimulationBatch.Start(ctx)
	} else {
		a.Logger.Info().Msg("Simulation batch: disabled")
	}

	if a.ConfigPath == "" {
		return
	}
	w, err := common.NewConfigWatcher(a.ConfigPath, a.Analytics, a.Logger)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Config watcher unavailable; analytics reload disabled")
		return
	}
	if err := w.Start(ctx); err != nil {
		a.Logger.Warn().Err(err).Str("path", a.ConfigPath).Msg("Config watcher failed to start")
		return
	}
	a.watcher = w
}

// StopBackground cancels background goroutines. Safe to call more than once.
func (a *App) StopBackground() {
	if a.backgroundCancel != nil {
		a.backgroundCancel()
		a.backgroundCancel = nil
	}
	if a.watcher != nil {
		a.watcher.Stop()
		a.watcher = nil
	}
}
