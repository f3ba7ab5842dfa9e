package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	invservice "github.com/tandm-app/tandm/internal/invoices/service"
	"github.com/tandm-app/tandm/internal/invoices/sweeper"
)

// RunSweep marks overdue invoices once and exits.
func RunSweep() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := openDeps(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	invoices := invservice.NewInvoiceService(d.store, d.log, d.metrics)
	n, err := sweeper.NewScheduler(invoices, d.log, d.metrics).RunOnce(ctx)
	d.log.Info("sweep finished", zap.Int("marked", n))
	return err
}
