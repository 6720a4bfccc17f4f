package leaderboard

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper runs Aggregator.Sweep on a cron schedule so peaks keep moving
// between leaderboard requests.
type Sweeper struct {
	cron *cron.Cron
	log  *zap.Logger
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ l *zap.SugaredLogger }

func (c cronLogger) Info(msg string, kv ...interface{}) { c.l.Debugw(msg, kv...) }

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.l.Errorw(msg, append(kv, "error", err)...)
}

// NewSweeper schedules agg.Sweep with spec (standard cron syntax or
// descriptors such as "@every 15m"). Jobs run with ctx.
func NewSweeper(ctx context.Context, agg *Aggregator, spec string, log *zap.Logger) (*Sweeper, error) {
	log = log.Named("sweep")
	cl := cronLogger{l: log.Sugar()}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	_, err := c.AddFunc(spec, func() {
		n, err := agg.Sweep(ctx)
		if err != nil {
			log.Warn("peak sweep failed", zap.Error(err))
			return
		}
		log.Debug("peak sweep done", zap.Int("records", n))
	})
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return &Sweeper{cron: c, log: log}, nil
}

func (s *Sweeper) Start() {
	s.log.Info("peak sweep started")
	s.cron.Start()
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("peak sweep stopped")
}
