package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pricing-engine/internal/catalog"
	"github.com/sells-group/pricing-engine/internal/experiment"
	"github.com/sells-group/pricing-engine/internal/monitoring"
	"github.com/sells-group/pricing-engine/internal/optimize"
	"github.com/sells-group/pricing-engine/internal/pricing"
	"github.com/sells-group/pricing-engine/internal/resilience"
	"github.com/sells-group/pricing-engine/internal/store"
)

// appEnv bundles the wired components commands operate on.
type appEnv struct {
	Store       store.Store
	Catalog     *catalog.Catalog
	Engine      *pricing.Engine
	Experiments *experiment.Manager
	Optimizer   *optimize.Optimizer
	Collector   *monitoring.Collector
}

func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "pricing.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv validates config for the mode, opens the store, loads the
// adjustment catalog, and wires the engine stack.
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}

	cat := catalog.Default()
	if cfg.Catalog.Path != "" {
		cat, err = catalog.LoadFile(cfg.Catalog.Path)
		if err != nil {
			st.Close()
			return nil, eris.Wrap(err, "load catalog")
		}
	}

	mgr := experiment.NewManager(st)
	engine := pricing.NewEngine(st, cat, mgr, pricing.Options{
		StaleAfter:       cfg.Pricing.MarketStaleAfter(),
		CollabTimeout:    cfg.Pricing.CollabTimeout(),
		QuoteValidity:    cfg.Pricing.QuoteValidity(),
		Segment:          cfg.Pricing.DefaultSegment,
		BreakerThreshold: cfg.Pricing.BreakerThreshold,
		BreakerCooldown:  cfg.Pricing.BreakerCooldown(),
		Retry: resilience.RetryConfig{
			MaxAttempts:    cfg.Pricing.RetryMaxAttempts,
			InitialBackoff: cfg.Pricing.RetryBackoff(),
		},
	})
	opt := optimize.New(st, st, st, cfg.Pricing.MarketStaleAfter())
	opt.ElasticityWindow = time.Duration(cfg.Optimize.ElasticityWindowDays) * 24 * time.Hour

	return &appEnv{
		Store:       st,
		Catalog:     cat,
		Engine:      engine,
		Experiments: mgr,
		Optimizer:   opt,
		Collector:   monitoring.NewCollector(st),
	}, nil
}

// commandContext pairs a request context with the wired environment for
// small command closures.
type commandContext struct {
	ctx context.Context
	env *appEnv
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
