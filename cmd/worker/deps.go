package main

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/tandm-app/tandm/config"
	"github.com/tandm-app/tandm/internal/bootstrap"
	"github.com/tandm-app/tandm/internal/logging"
	"github.com/tandm-app/tandm/internal/metrics"
)

type deps struct {
	cfg      *config.Config
	log      *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	store    *bootstrap.Store
}

func openDeps(ctx context.Context) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(cfg.App.Environment, cfg.App.LogLevel)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var app *firebase.App
	if cfg.NeedsFirebase() {
		app, err = bootstrap.NewFirebaseApp(ctx, cfg.Firebase)
		if err != nil {
			return nil, err
		}
	}

	store, err := bootstrap.OpenStore(ctx, cfg, app, log, m)
	if err != nil {
		return nil, err
	}

	return &deps{cfg: cfg, log: log, registry: reg, metrics: m, store: store}, nil
}

func (d *deps) Close() {
	if err := d.store.Close(); err != nil {
		d.log.Warn("close store", zap.Error(err))
	}
	_ = d.log.Sync()
}
