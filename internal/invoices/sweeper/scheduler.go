// Package sweeper moves sent invoices past their due date to overdue on a
// cron schedule.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/tandm-app/tandm/internal/docstore"
	"github.com/tandm-app/tandm/internal/invoices/domain"
	"github.com/tandm-app/tandm/internal/logging"
	"github.com/tandm-app/tandm/internal/metrics"
)

type InvoiceStore interface {
	FetchOverdueCandidates(ctx context.Context, now time.Time) ([]domain.Invoice, error)
	MarkOverdue(ctx context.Context, id string) error
}

type Scheduler struct {
	invoices InvoiceStore
	log      *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	timeout  time.Duration
	cron     *cron.Cron
}

func NewScheduler(invoices InvoiceStore, log *zap.Logger, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		invoices: invoices,
		log:      logging.OrNop(log).Named("sweeper"),
		metrics:  m,
		now:      time.Now,
		timeout:  5 * time.Minute,
	}
}

// Start registers the sweep under spec (six fields, seconds first) and
// starts the cron runner.
func (s *Scheduler) Start(spec string) error {
	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		_, _ = s.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule overdue sweep %q: %w", spec, err)
	}

	s.cron = c
	c.Start()
	s.log.Info("overdue sweep scheduled", zap.String("schedule", spec))
	return nil
}

// Stop halts the schedule and waits for a running sweep until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunOnce marks every overdue invoice and returns how many were updated.
// Invoices whose status changed after the candidate query are skipped.
// Failures on single invoices do not stop the sweep; they are joined into
// the returned error.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	now := s.now().UTC()
	candidates, err := s.invoices.FetchOverdueCandidates(ctx, now)
	if err != nil {
		s.log.Error("overdue sweep failed", zap.Error(err))
		return 0, err
	}

	var (
		marked  int
		skipped int
		errs    []error
	)
	for _, inv := range candidates {
		err := s.invoices.MarkOverdue(ctx, inv.ID)
		switch {
		case errors.Is(err, docstore.ErrConflict):
			skipped++
			s.log.Info("invoice changed since query, not marked", zap.String("id", inv.ID), zap.Error(err))
		case err != nil:
			errs = append(errs, fmt.Errorf("invoice %s: %w", inv.ID, err))
		default:
			marked++
		}
	}
	s.metrics.InvoicesMarkedOverdue(marked)

	err = errors.Join(errs...)
	if err != nil {
		s.log.Warn("overdue sweep incomplete", zap.Int("marked", marked), zap.Int("failed", len(errs)), zap.Error(err))
	} else {
		s.log.Info("overdue sweep completed", zap.Int("marked", marked), zap.Int("skipped", skipped), zap.Time("at", now))
	}
	return marked, err
}
