package credential

import (
	"time"
)

// Credential is one issued refresh credential. Rows are only ever mutated by
// rotation (Active flips off once), family invalidation (Invalidated flips on
// for the whole family) and the sweeper (hard delete past retention).
type Credential struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	SecretHash    string     `json:"-" gorm:"uniqueIndex;size:64;not null"`
	UserID        uint       `json:"user_id" gorm:"not null;index"`
	FamilyID      string     `json:"family_id" gorm:"size:36;not null;index"`
	IssuedAt      time.Time  `json:"issued_at" gorm:"not null"`
	ExpiresAt     time.Time  `json:"expires_at" gorm:"not null;index"`
	Active        bool       `json:"active" gorm:"not null"`
	Invalidated   bool       `json:"invalidated" gorm:"not null"`
	InvalidatedAt *time.Time `json:"invalidated_at"`
	DeviceInfo    string     `json:"device_info" gorm:"size:500"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (Credential) TableName() string {
	return "credentials"
}

func (c *Credential) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// IssuedCredential carries the plaintext secret back to the caller. The
// secret exists only here; the store keeps its hash.
type IssuedCredential struct {
	Secret     string
	Credential *Credential
}

// RotationResult is the outcome of a successful exchange.
type RotationResult struct {
	Secret     string
	Credential *Credential
	OldID      uint
}
