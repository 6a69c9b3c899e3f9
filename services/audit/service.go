package audit

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/machsheltie/Equoria-sub009/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Kind string

const (
	KindReuseDetected Kind = "reuse_detected"
	KindFamilyRevoked Kind = "family_revoked"
)

// Event is one security-relevant occurrence, persisted to the
// security_events table and mirrored to the log.
type Event struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Kind       Kind      `json:"kind" gorm:"size:32;not null;index"`
	UserID     uint      `json:"user_id" gorm:"index"`
	FamilyID   string    `json:"family_id" gorm:"size:36;index"`
	DetectedAt time.Time `json:"detected_at" gorm:"not null"`
	IPAddress  string    `json:"ip_address" gorm:"size:45"`
	UserAgent  string    `json:"user_agent" gorm:"size:500"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Event) TableName() string {
	return "security_events"
}

// Recorder accepts events without blocking the caller.
type Recorder interface {
	Record(event Event)
}

type NoOpRecorder struct{}

func (NoOpRecorder) Record(Event) {}

// Service buffers events on a channel and persists them from a single
// worker goroutine. Record never blocks: when the buffer is full the event
// is dropped and counted.
type Service struct {
	db        *gorm.DB
	logger    *logging.Service
	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func NewService(db *gorm.DB, logger *logging.Service, buffer int) *Service {
	if buffer <= 0 {
		buffer = 1
	}

	s := &Service{
		db:     db,
		logger: logger,
		ch:     make(chan Event, buffer),
		done:   make(chan struct{}),
	}

	s.wg.Add(1)
	go s.run()

	return s
}

func (s *Service) run() {
	defer s.wg.Done()

	for {
		select {
		case event := <-s.ch:
			s.persist(event)
		case <-s.done:
			for {
				select {
				case event := <-s.ch:
					s.persist(event)
				default:
					return
				}
			}
		}
	}
}

func (s *Service) persist(event Event) {
	s.logger.Warn("security event",
		zap.String("kind", string(event.Kind)),
		zap.Uint("user_id", event.UserID),
		zap.String("family_id", event.FamilyID),
		zap.Time("detected_at", event.DetectedAt),
		zap.String("ip_address", event.IPAddress))

	if s.db == nil {
		return
	}

	if err := s.db.Create(&event).Error; err != nil {
		s.logger.Error("failed to persist security event",
			zap.String("kind", string(event.Kind)),
			zap.String("family_id", event.FamilyID),
			zap.Error(err))
	}
}

func (s *Service) Record(event Event) {
	if s == nil || s.closed.Load() {
		return
	}
	if event.DetectedAt.IsZero() {
		event.DetectedAt = time.Now()
	}

	select {
	case s.ch <- event:
	case <-s.done:
	default:
		s.dropped.Add(1)
	}
}

// Close drains the buffer and stops the worker.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
		s.wg.Wait()
	})
}

func (s *Service) Dropped() uint64 {
	if s == nil {
		return 0
	}
	return s.dropped.Load()
}

// EventsForFamily is a query helper for operators reading the forensic trail
// of one lineage.
func (s *Service) EventsForFamily(familyID string) ([]Event, error) {
	var events []Event
	err := s.db.Where("family_id = ?", familyID).Order("detected_at asc").Find(&events).Error
	if err != nil {
		return nil, err
	}

	return events, nil
}
