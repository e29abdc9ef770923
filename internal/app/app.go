package app

import (
	"context"
	"errors"

	"github.com/bassista/solution_explorer/internal/config"
	"github.com/bassista/solution_explorer/internal/domain"
	"github.com/bassista/solution_explorer/internal/explorer"
	"github.com/bassista/solution_explorer/internal/logger"
)

// App is the application container (immutable dependencies + lifecycle context).
// It is not a request context; handlers should still use gin's request context.
type App struct {
	Config   *config.Config
	Explorer *explorer.Repository

	BaseCtx context.Context
	Cancel  context.CancelFunc
}

func New(cfg *config.Config, repo *explorer.Repository) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if repo == nil {
		return nil, errors.New("explorer repository is nil")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		Config:   cfg,
		Explorer: repo,
		BaseCtx:  ctx,
		Cancel:   cancel,
	}, nil
}

// ExplorerOptions maps the explorer section of the configuration onto repository options.
func ExplorerOptions(cfg config.ExplorerConfig) explorer.Options {
	opts := explorer.DefaultOptions()
	opts.WorkDir = cfg.WorkDir
	opts.IgnoreFile = cfg.IgnoreFile
	if len(cfg.Extensions) > 0 {
		opts.Extensions = cfg.Extensions
	}
	if cfg.Debounce > 0 {
		opts.Debounce = cfg.Debounce
	}
	if cfg.LoadConcurrency > 0 {
		opts.LoadConcurrency = cfg.LoadConcurrency
	}
	return opts
}

// OpenRoot opens the configured root path, if any. A partially loaded
// solution is logged and kept open.
func (a *App) OpenRoot() error {
	root := a.Config.Explorer.RootPath
	if root == "" {
		logger.WithComponent("app").Info("no root path configured, waiting for an explicit open")
		return nil
	}

	s, err := a.Explorer.OpenPath(a.BaseCtx, root, domain.Identity{})
	var partial *domain.PartialLoadError
	switch {
	case errors.As(err, &partial):
		logger.WithPath("app", s.Path()).Warnf("root opened with %d unreadable diagram(s)", len(partial.Failures))
		return nil
	case err != nil:
		return err
	}
	logger.WithPath("app", s.Path()).Infof("root opened as %s", s.Kind())
	return nil
}

func (a *App) Shutdown() {
	if a == nil || a.Cancel == nil {
		return
	}
	a.Cancel()
	if a.Explorer != nil {
		if err := a.Explorer.Close(); err != nil {
			logger.WithComponent("app").Warnf("close explorer: %v", err)
		}
	}
}
