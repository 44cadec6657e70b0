package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/docsort/docsort/internal/config"
	"github.com/docsort/docsort/internal/engine"
	"github.com/docsort/docsort/internal/fsops"
	"github.com/docsort/docsort/internal/ledger"
	"github.com/docsort/docsort/internal/model"
	"github.com/docsort/docsort/internal/naming"
	"github.com/docsort/docsort/internal/pathplan"
	"github.com/docsort/docsort/internal/resolve"
	"github.com/docsort/docsort/internal/review"
	"github.com/docsort/docsort/internal/route"
	"github.com/docsort/docsort/internal/rule"
)

// app bundles the wired application for one command invocation.
type app struct {
	cfg      *config.Config
	store    *ledger.SQLiteStore
	mover    *fsops.LocalMover
	engine   *engine.Engine
	reviews  *review.Coordinator
	taxonomy model.Taxonomy
}

func (a *app) close() {
	_ = a.store.Close()
}

// initStore opens and migrates the ledger database.
func initStore(ctx context.Context) (*ledger.SQLiteStore, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	store, err := ledger.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// buildApp wires the full pipeline from configuration. Overrides let flags
// adjust the loaded configuration before wiring.
func buildApp(ctx context.Context, overrides func(*config.Config)) (*app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if overrides != nil {
		overrides(cfg)
	}

	taxonomy, err := config.LoadTaxonomy(cfg.TaxonomyPath)
	if err != nil {
		return nil, err
	}

	rules, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		return nil, err
	}

	store, err := ledger.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	mover := fsops.NewLocalMover(fsops.Options{
		CleanupEmptyDirs: cfg.CleanupEmptyDirs,
	})

	router, err := route.NewRouter(cfg.Thresholds)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	checker := engine.NewChecker(store, mover)

	planner, err := pathplan.NewPlanner(cfg.PathPlan, checker)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	namer, err := naming.NewGenerator(cfg.Naming, checker)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	resolver := resolve.NewResolver(taxonomy, router.MinThreshold(), cfg.MaxTags)

	eng := engine.New(store, mover, nil, engine.Components{
		Rules:    rule.NewEngine(rules),
		Router:   router,
		Resolver: resolver,
		Planner:  planner,
		Namer:    namer,
	}, engine.Config{
		Actor:        cfg.Actor,
		Workers:      cfg.Workers,
		MoveTimeout:  cfg.MoveTimeout,
		DryRun:       cfg.DryRun,
		StageReviews: cfg.StageReviews,
	})

	reviews := review.NewCoordinator(store, eng, cfg.ReviewWeights)
	eng.SetReviews(reviews)

	return &app{
		cfg:      cfg,
		store:    store,
		mover:    mover,
		engine:   eng,
		reviews:  reviews,
		taxonomy: taxonomy,
	}, nil
}
