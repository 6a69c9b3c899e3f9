package credential

import (
	"sync"
	"time"

	"github.com/machsheltie/Equoria-sub009/services/logging"
	"go.uber.org/zap"
)

// Sweeper bounds storage growth by hard-deleting rows that have been
// invalidated or expired for longer than the retention window.
type Sweeper struct {
	store     *Store
	retention time.Duration
	logger    *logging.Service

	stopOnce sync.Once
	stop     chan struct{}
}

func NewSweeper(store *Store, retention time.Duration, logger *logging.Service) *Sweeper {
	return &Sweeper{
		store:     store,
		retention: retention,
		logger:    logger,
		stop:      make(chan struct{}),
	}
}

// Sweep runs one purge pass and returns the number of rows removed.
func (s *Sweeper) Sweep() (int64, error) {
	cutoff := time.Now().Add(-s.retention)

	removed, err := s.store.PurgeExpiredOrInvalidated(cutoff)
	if err != nil {
		s.logger.Error("credential sweep failed", zap.Error(err))
		return 0, err
	}

	if removed > 0 {
		s.logger.Info("swept stale credentials",
			zap.Int64("removed", removed),
			zap.Time("older_than", cutoff))
	} else {
		s.logger.Debug("no stale credentials to sweep")
	}

	return removed, nil
}

func (s *Sweeper) StartWorker(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := s.Sweep(); err != nil {
					s.logger.Error("credential sweep worker failed", zap.Error(err))
				}
			case <-s.stop:
				return
			}
		}
	}()

	s.logger.Info("started credential sweep worker",
		zap.Duration("interval", interval),
		zap.Duration("retention", s.retention))
}

func (s *Sweeper) StopWorker() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}
