package scheduler

import (
	"context"
	"time"

	"achievements/internal/logger"
	"achievements/internal/models"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type Reconciler interface {
	Reconcile(ctx context.Context) ([]models.AccountReconciliation, error)
}

type MismatchGauge interface {
	SetReconcileMismatches(n int)
}

// ReconcileScheduler periodically checks the point journal against the
// stored account counters.
type ReconcileScheduler struct {
	cron       *cron.Cron
	reconciler Reconciler
	gauge      MismatchGauge
	schedule   string
	timeout    time.Duration
}

func NewReconcileScheduler(reconciler Reconciler, gauge MismatchGauge, cronExpr string) *ReconcileScheduler {
	return &ReconcileScheduler{
		cron:       cron.New(cron.WithSeconds()),
		reconciler: reconciler,
		gauge:      gauge,
		schedule:   cronExpr,
		timeout:    time.Minute,
	}
}

func (s *ReconcileScheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunOnce(context.Background()) }); err != nil {
		return err
	}
	s.cron.Start()
	logger.WithFields(logrus.Fields{"schedule": s.schedule}).Info("reconcile scheduler started")
	return nil
}

func (s *ReconcileScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("reconcile scheduler stopped")
}

// RunOnce performs a single reconciliation and returns the mismatch count,
// or -1 when the run failed.
func (s *ReconcileScheduler) RunOnce(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	mismatches, err := s.reconciler.Reconcile(ctx)
	if err != nil {
		logger.WithFields(logrus.Fields{"error": err}).Error("reconcile failed")
		return -1
	}
	for _, row := range mismatches {
		logger.WithFields(logrus.Fields{
			"account_id":   row.AccountID,
			"balance":      row.Balance,
			"entry_sum":    row.EntrySum,
			"expected":     row.Expected(),
			"total_earned": row.TotalEarned,
			"total_burned": row.TotalBurned,
		}).Warn("ledger mismatch")
	}
	s.gauge.SetReconcileMismatches(len(mismatches))
	return len(mismatches)
}
