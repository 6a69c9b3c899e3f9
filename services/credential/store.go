package credential

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var ErrCredentialNotFound = errors.New("credential not found")

// Store is the persistence layer for credentials. It is the single source of
// truth: no cache of the active flag is authoritative.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx returns a store bound to an open transaction.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{db: tx}
}

// Create mints a new active, non-invalidated row.
func (s *Store) Create(userID uint, familyID, secretHash string, expiresAt time.Time, deviceInfo string) (*Credential, error) {
	now := time.Now()
	cred := Credential{
		SecretHash:  secretHash,
		UserID:      userID,
		FamilyID:    familyID,
		IssuedAt:    now,
		ExpiresAt:   expiresAt,
		Active:      true,
		Invalidated: false,
		DeviceInfo:  deviceInfo,
	}

	if err := s.db.Create(&cred).Error; err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}

	return &cred, nil
}

func (s *Store) FindBySecretHash(secretHash string) (*Credential, error) {
	var cred Credential
	err := s.db.Where("secret_hash = ?", secretHash).First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &cred, nil
}

func (s *Store) FindByID(id uint) (*Credential, error) {
	var cred Credential
	err := s.db.Where("id = ?", id).First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &cred, nil
}

// TryRetire flips Active off, but only if it is still on. The single
// conditional UPDATE is what makes rotation exactly-once under concurrency:
// of any number of callers presenting the same credential, exactly one sees
// RowsAffected == 1.
func (s *Store) TryRetire(id uint) (bool, error) {
	result := s.db.Model(&Credential{}).
		Where("id = ? AND active = ?", id, true).
		Update("active", false)

	if result.Error != nil {
		return false, fmt.Errorf("failed to retire credential: %w", result.Error)
	}

	return result.RowsAffected == 1, nil
}

// InvalidateFamily retires and invalidates every row in the family in one
// multi-row UPDATE, so partial invalidation is never observable. Rows already
// invalidated are left untouched; the returned count is the rows flipped by
// this call.
func (s *Store) InvalidateFamily(familyID string) (int64, error) {
	now := time.Now()
	result := s.db.Model(&Credential{}).
		Where("family_id = ? AND invalidated = ?", familyID, false).
		Updates(map[string]any{
			"active":         false,
			"invalidated":    true,
			"invalidated_at": now,
		})

	if result.Error != nil {
		return 0, fmt.Errorf("failed to invalidate family: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// PurgeExpiredOrInvalidated hard-deletes rows that have been invalidated or
// expired for longer than the retention window. Active rows inside their
// lifetime are never touched, so a rotation in flight cannot lose its row.
func (s *Store) PurgeExpiredOrInvalidated(olderThan time.Time) (int64, error) {
	result := s.db.
		Where("(invalidated = ? AND invalidated_at < ?) OR expires_at < ?", true, olderThan, olderThan).
		Delete(&Credential{})

	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge credentials: %w", result.Error)
	}

	return result.RowsAffected, nil
}

func (s *Store) CountByFamily(familyID string) (int64, error) {
	var count int64
	err := s.db.Model(&Credential{}).Where("family_id = ?", familyID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("database error: %w", err)
	}

	return count, nil
}
