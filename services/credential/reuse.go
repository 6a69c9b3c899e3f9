package credential

import (
	"time"

	"github.com/machsheltie/Equoria-sub009/services/audit"
	"github.com/machsheltie/Equoria-sub009/services/logging"
	"go.uber.org/zap"
)

// RequestMeta is the originating request context attached to security
// events. Zero values are fine for non-HTTP callers.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// ReuseDetector converts a detected replay into a family-wide response:
// invalidate the whole lineage, then report. Reporting is fire-and-forget;
// the rejection returned to the caller never waits on it.
type ReuseDetector struct {
	store    *Store
	recorder audit.Recorder
	logger   *logging.Service
}

func NewReuseDetector(store *Store, recorder audit.Recorder, logger *logging.Service) *ReuseDetector {
	if recorder == nil {
		recorder = audit.NoOpRecorder{}
	}
	return &ReuseDetector{
		store:    store,
		recorder: recorder,
		logger:   logger,
	}
}

func (d *ReuseDetector) OnReuseDetected(familyID string, userID uint, meta RequestMeta) {
	detectedAt := time.Now()

	count, err := d.store.InvalidateFamily(familyID)
	if err != nil {
		d.logger.Error("failed to invalidate family after reuse detection",
			zap.String("family_id", familyID),
			zap.Uint("user_id", userID),
			zap.Error(err))
	} else {
		d.logger.Warn("credential reuse detected, family invalidated",
			zap.String("family_id", familyID),
			zap.Uint("user_id", userID),
			zap.Int64("invalidated_count", count))
	}

	d.recorder.Record(audit.Event{
		Kind:       audit.KindReuseDetected,
		UserID:     userID,
		FamilyID:   familyID,
		DetectedAt: detectedAt,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
	})
}
