package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/pricing-engine/internal/config"
)

// QuoteExpirer abstracts the expiry sweep the checker runs.
type QuoteExpirer interface {
	ExpireStaleQuotes(ctx context.Context) (int, error)
}

// Checker runs periodic health checks and the quote expiry sweep in the
// background.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	store     QuoteExpirer
	cfg       config.MonitoringConfig
	sweep     time.Duration
}

// NewChecker creates a background checker. sweep is the interval for
// the quote expiry pass.
func NewChecker(collector *Collector, alerter *Alerter, st QuoteExpirer, cfg config.MonitoringConfig, sweep time.Duration) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		store:     st,
		cfg:       cfg,
		sweep:     sweep,
	}
}

// Run starts the periodic loops. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	sweep := c.sweep
	if sweep <= 0 {
		sweep = 15 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting background checker",
		zap.Duration("check_interval", interval),
		zap.Duration("sweep_interval", sweep),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	checkTicker := time.NewTicker(interval)
	defer checkTicker.Stop()
	sweepTicker := time.NewTicker(sweep)
	defer sweepTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("background checker stopped")
			return
		case <-checkTicker.C:
			c.check(ctx, log)
		case <-sweepTicker.C:
			c.expire(ctx, log)
		}
	}
}

func (c *Checker) check(ctx context.Context, log *zap.Logger) {
	if !c.cfg.Enabled {
		return
	}
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		log.Error("monitoring: failed to collect metrics", zap.Error(err))
		return
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		log.Debug("monitoring: no alerts triggered")
		return
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Info("monitoring: alert check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
}

// expire moves pending quotes past their validity window to expired.
func (c *Checker) expire(ctx context.Context, log *zap.Logger) {
	n, err := c.store.ExpireStaleQuotes(ctx)
	if err != nil {
		log.Error("monitoring: quote expiry sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("monitoring: expired stale quotes", zap.Int("count", n))
	}
}
