package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/machsheltie/Equoria-sub009/config"
	"github.com/machsheltie/Equoria-sub009/services/audit"
	"github.com/machsheltie/Equoria-sub009/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// The four security rejections. All are terminal for the request; callers
// must map them to one identical external response to avoid oracle leakage.
var (
	ErrInvalidCredential = errors.New("invalid credential")
	ErrExpired           = errors.New("credential expired")
	ErrFamilyInvalidated = errors.New("credential family invalidated")
	ErrReuseDetected     = errors.New("credential reuse detected")

	ErrSecretGenerationFailed = errors.New("failed to generate secure secret")
)

// Service is the rotation engine: the single operation that exchanges a
// presented credential for its successor, plus issuance and revocation.
type Service struct {
	db       *gorm.DB
	store    *Store
	ledger   *FamilyLedger
	detector *ReuseDetector
	recorder audit.Recorder
	config   *config.Config
	logger   *logging.Service
}

func NewService(db *gorm.DB, cfg *config.Config, recorder audit.Recorder, logger *logging.Service) *Service {
	if recorder == nil {
		recorder = audit.NoOpRecorder{}
	}

	store := NewStore(db)

	logger.Info("initializing credential service",
		zap.Duration("expiry", cfg.Credential.Expiry),
		zap.Int("secret_length", cfg.Credential.SecretLength),
		zap.Duration("retention", cfg.Credential.Retention))

	return &Service{
		db:       db,
		store:    store,
		ledger:   NewFamilyLedger(store),
		detector: NewReuseDetector(store, recorder, logger),
		recorder: recorder,
		config:   cfg,
		logger:   logger,
	}
}

func (s *Service) Store() *Store {
	return s.store
}

func (s *Service) Ledger() *FamilyLedger {
	return s.ledger
}

// Issue starts a new family for an authentication event and returns its
// first credential.
func (s *Service) Issue(userID uint, deviceInfo string) (*IssuedCredential, error) {
	secret, err := s.generateSecret()
	if err != nil {
		s.logger.Error("failed to generate credential secret", zap.Error(err))
		return nil, ErrSecretGenerationFailed
	}

	familyID := NewFamilyID()
	expiresAt := time.Now().Add(s.config.Credential.Expiry)

	cred, err := s.store.Create(userID, familyID, s.hashSecret(secret), expiresAt, deviceInfo)
	if err != nil {
		return nil, err
	}

	s.logger.Info("credential family created",
		zap.Uint("user_id", userID),
		zap.String("family_id", familyID),
		zap.Time("expires_at", expiresAt))

	return &IssuedCredential{Secret: secret, Credential: cred}, nil
}

// Rotate exchanges a presented secret for a new credential in the same
// family. The retire-and-mint sequence runs in one transaction so a caller
// can never observe a retired predecessor without a successor, or two live
// credentials in one family. Replay escalation happens after the
// transaction, on the failure path only.
func (s *Service) Rotate(secret string, meta RequestMeta) (*RotationResult, error) {
	secretHash := s.hashSecret(secret)

	var result *RotationResult
	var replayed *Credential

	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		store := s.store.WithTx(tx)

		cred, err := store.FindBySecretHash(secretHash)
		if err != nil {
			if errors.Is(err, ErrCredentialNotFound) {
				return ErrInvalidCredential
			}
			return err
		}

		now := time.Now()
		if cred.Expired(now) {
			return ErrExpired
		}

		if cred.Invalidated {
			return ErrFamilyInvalidated
		}

		if !cred.Active {
			replayed = cred
			return ErrReuseDetected
		}

		retired, err := store.TryRetire(cred.ID)
		if err != nil {
			return err
		}
		if !retired {
			// Lost the race: a concurrent caller consumed this secret
			// between lookup and retire.
			replayed = cred
			return ErrReuseDetected
		}

		newSecret, err := s.generateSecret()
		if err != nil {
			return ErrSecretGenerationFailed
		}

		successor, err := store.Create(cred.UserID, cred.FamilyID, s.hashSecret(newSecret), now.Add(s.config.Credential.Expiry), cred.DeviceInfo)
		if err != nil {
			return err
		}

		result = &RotationResult{
			Secret:     newSecret,
			Credential: successor,
			OldID:      cred.ID,
		}
		return nil
	})

	if txErr != nil {
		if replayed != nil {
			s.detector.OnReuseDetected(replayed.FamilyID, replayed.UserID, meta)
		}
		if isRejection(txErr) {
			s.logger.Warn("credential rotation rejected", zap.Error(txErr))
			return nil, txErr
		}
		s.logger.Error("credential rotation failed", zap.Error(txErr))
		return nil, fmt.Errorf("credential rotation failed: %w", txErr)
	}

	s.logger.Info("credential rotated",
		zap.Uint("user_id", result.Credential.UserID),
		zap.String("family_id", result.Credential.FamilyID),
		zap.Uint("old_id", result.OldID),
		zap.Uint("new_id", result.Credential.ID))

	return result, nil
}

// RevokeFamily invalidates an entire lineage. Used by logout and
// administrative action; distinct from reuse detection in the audit trail.
func (s *Service) RevokeFamily(familyID string, userID uint, meta RequestMeta) (int64, error) {
	count, err := s.store.InvalidateFamily(familyID)
	if err != nil {
		return 0, err
	}

	if count > 0 {
		s.recorder.Record(audit.Event{
			Kind:       audit.KindFamilyRevoked,
			UserID:     userID,
			FamilyID:   familyID,
			DetectedAt: time.Now(),
			IPAddress:  meta.IPAddress,
			UserAgent:  meta.UserAgent,
		})
	}

	s.logger.Info("credential family revoked",
		zap.String("family_id", familyID),
		zap.Uint("user_id", userID),
		zap.Int64("invalidated_count", count))

	return count, nil
}

// RevokeBySecret resolves a presented secret to its family and revokes the
// whole family. The credential need not be the live one; logging out with a
// rotated-out secret still ends the session lineage.
func (s *Service) RevokeBySecret(secret string, meta RequestMeta) error {
	cred, err := s.store.FindBySecretHash(s.hashSecret(secret))
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return ErrInvalidCredential
		}
		return err
	}

	_, err = s.RevokeFamily(cred.FamilyID, cred.UserID, meta)
	return err
}

func isRejection(err error) bool {
	return errors.Is(err, ErrInvalidCredential) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrFamilyInvalidated) ||
		errors.Is(err, ErrReuseDetected)
}

// IsRejection reports whether err is one of the four security rejections,
// as opposed to a storage failure. Only storage failures are retryable.
func IsRejection(err error) bool {
	return isRejection(err)
}

func (s *Service) generateSecret() (string, error) {
	secretBytes := make([]byte, s.config.Credential.SecretLength)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(secretBytes), nil
}

func (s *Service) hashSecret(secret string) string {
	hash := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(hash[:])
}
