package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httpapi "github.com/tandm-app/tandm/internal/api/http"
	"github.com/tandm-app/tandm/internal/bootstrap"
	invservice "github.com/tandm-app/tandm/internal/invoices/service"
	"github.com/tandm-app/tandm/internal/invoices/sweeper"
)

const shutdownTimeout = 10 * time.Second

// RunServe runs the overdue sweeper on its schedule and serves health and
// metrics until SIGINT or SIGTERM.
func RunServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := openDeps(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	invoices := invservice.NewInvoiceService(d.store, d.log, d.metrics)
	sched := sweeper.NewScheduler(invoices, d.log, d.metrics)
	if d.cfg.Sweeper.Enabled {
		if err := sched.Start(d.cfg.Sweeper.Schedule); err != nil {
			return err
		}
	}

	bootstrap.SetGinMode(d.cfg.App.Environment)
	checks := map[string]httpapi.Pinger{"store": nil}
	if d.store.Pinger != nil {
		checks["store"] = d.store.Pinger
	}
	router := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName: "tandm-worker",
		Version:     d.cfg.App.Version,
		Checks:      checks,
		Gatherer:    d.registry,
		Log:         d.log,

		AllowedOrigins: d.cfg.Server.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + d.cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	d.log.Info("worker listening",
		zap.String("addr", srv.Addr),
		zap.String("store", d.store.Backend),
		zap.Bool("sweeper", d.cfg.Sweeper.Enabled))
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("serve http: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		d.log.Warn("shutdown http server", zap.Error(err))
	}
	sched.Stop(shutdownCtx)
	return runErr
}
