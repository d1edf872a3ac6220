package app

import (
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
	"quiz-duel-service/internal/metrics"
)

// Sweeper periodically discards decided matches whose grace window has passed.
type Sweeper struct {
	scheduler gocron.Scheduler
	registry  *Registry
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewSweeper schedules a registry sweep every interval. Call Start to run it.
func NewSweeper(registry *Registry, interval time.Duration, m *metrics.Metrics, logger *zap.Logger) (*Sweeper, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	s := &Sweeper{scheduler: scheduler, registry: registry, metrics: m, logger: logger}
	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.sweep),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return nil, err
	}
	return s, nil
}

func (s *Sweeper) Start() {
	s.scheduler.Start()
}

func (s *Sweeper) Shutdown() error {
	return s.scheduler.Shutdown()
}

func (s *Sweeper) sweep() {
	discarded := s.registry.Sweep(time.Now())
	s.metrics.SetMatches(s.registry.Len())
	if len(discarded) > 0 {
		s.logger.Debug("Discarded decided matches", zap.Strings("match_ids", discarded))
	}
}
