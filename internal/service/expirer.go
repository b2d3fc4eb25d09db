package service

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultExpirerInterval = 5 * time.Minute
	defaultMaxIdle         = 1 * time.Hour
)

// ExpirerService drops hosted episodes that nothing has touched for a
// while, so abandoned replay sessions do not pin trackers forever.
type ExpirerService struct {
	episodes *EpisodeService
	logger   *zap.Logger

	interval time.Duration
	maxIdle  time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewExpirerService(episodes *EpisodeService, logger *zap.Logger) *ExpirerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpirerService{
		episodes: episodes,
		logger:   logger,
		interval: defaultExpirerInterval,
		maxIdle:  defaultMaxIdle,
		stopCh:   make(chan struct{}),
	}
}

func (s *ExpirerService) SetInterval(d time.Duration) {
	s.interval = d
}

func (s *ExpirerService) SetMaxIdle(d time.Duration) {
	s.maxIdle = d
}

// Start runs the expirer on a periodic schedule in a background goroutine.
func (s *ExpirerService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("episode expirer started",
			zap.Duration("interval", s.interval),
			zap.Duration("max_idle", s.maxIdle))

		for {
			select {
			case <-ticker.C:
				s.run()
			case <-s.stopCh:
				s.logger.Info("episode expirer stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the expirer.
func (s *ExpirerService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *ExpirerService) run() {
	if dropped := s.episodes.ExpireIdle(s.maxIdle); dropped > 0 {
		s.logger.Info("expired idle episodes",
			zap.Int("count", dropped),
			zap.Int("remaining", s.episodes.Len()))
	}
}
