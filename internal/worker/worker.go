package worker

import (
	"context"
	"github.com/rookgm/storefront/internal/models"
	"go.uber.org/zap"
	"time"
)

type SweepService interface {
	ReconcileStale(ctx context.Context, orderCh <-chan models.Order)
	GetStaleOrders(ctx context.Context, orderCh chan<- models.Order) error
}

// PaymentSweeper is worker that reconciles orders stuck in processing
type PaymentSweeper struct {
	svc      SweepService
	interval time.Duration
	logger   *zap.Logger
}

// used when configured interval is not positive
const defaultInterval = time.Minute

// NewPaymentSweeper create new payment sweeper
func NewPaymentSweeper(svc SweepService, interval time.Duration, logger *zap.Logger) *PaymentSweeper {
	if interval <= 0 {
		logger.Warn("non-positive sweep interval, using default",
			zap.Duration("interval", interval),
			zap.Duration("default", defaultInterval))
		interval = defaultInterval
	}
	return &PaymentSweeper{
		svc:      svc,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps every interval until ctx is done
func (ps *PaymentSweeper) Run(ctx context.Context) {
	orders := make(chan models.Order, 10)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ps.svc.ReconcileStale(ctx, orders)
	}()

	ticker := time.NewTicker(ps.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			<-done
			ps.logger.Debug("payment sweeper is done")
			return
		case <-ticker.C:
			if err := ps.svc.GetStaleOrders(ctx, orders); err != nil && ctx.Err() == nil {
				ps.logger.Error("error listing stale orders", zap.Error(err))
			}
		}
	}
}
