package credential

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NewFamilyID mints the identifier for a fresh rotation chain.
func NewFamilyID() string {
	return uuid.New().String()
}

// FamilyLedger is a read view over the store keyed by family. It holds no
// state of its own; every answer reflects the most recent invalidation.
type FamilyLedger struct {
	store *Store
}

func NewFamilyLedger(store *Store) *FamilyLedger {
	return &FamilyLedger{store: store}
}

// IsFamilyValid reports whether no row in the family has been invalidated.
// An unknown family is valid by this definition; callers that care about
// existence should consult CurrentActive.
func (l *FamilyLedger) IsFamilyValid(familyID string) (bool, error) {
	var count int64
	err := l.store.db.Model(&Credential{}).
		Where("family_id = ? AND invalidated = ?", familyID, true).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("database error: %w", err)
	}

	return count == 0, nil
}

// CurrentActive returns the single live credential of the family, or
// ErrCredentialNotFound when the family has none.
func (l *FamilyLedger) CurrentActive(familyID string) (*Credential, error) {
	var cred Credential
	err := l.store.db.Where("family_id = ? AND active = ?", familyID, true).First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &cred, nil
}
