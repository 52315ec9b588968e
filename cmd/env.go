package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/campus-events/attendance-cli/internal/pipeline"
	"github.com/campus-events/attendance-cli/internal/store"
	syncpkg "github.com/campus-events/attendance-cli/internal/sync"
	"github.com/campus-events/attendance-cli/pkg/luma"
)

// env bundles the wired components a subcommand needs.
type env struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "attendance.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	return &env{
		Store:    st,
		Pipeline: pipeline.New(st, cfg.Import),
	}, nil
}

func initLuma() (luma.Client, error) {
	if cfg.Luma.APIKey == "" {
		return nil, eris.New("luma API key is required (ATTENDANCE_LUMA_API_KEY)")
	}
	opts := []luma.Option{luma.WithRateLimit(cfg.Luma.RatePerSec)}
	if cfg.Luma.BaseURL != "" {
		opts = append(opts, luma.WithBaseURL(cfg.Luma.BaseURL))
	}
	return luma.NewClient(cfg.Luma.APIKey, opts...), nil
}

func initSyncer(ctx context.Context) (*env, *syncpkg.Syncer, error) {
	e, err := initEnv(ctx)
	if err != nil {
		return nil, nil, err
	}
	client, err := initLuma()
	if err != nil {
		e.Close()
		return nil, nil, err
	}
	return e, syncpkg.New(e.Store, client, e.Pipeline, cfg.Luma, cfg.Import.MaxDownloads), nil
}
