package models

import (
	"time"
)

// User represents an account record for an authenticated member
type User struct {
	ID           string `gorm:"primaryKey;size:36" json:"id"`
	Email        string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name         string `gorm:"size:255" json:"name"`
	PasswordHash string `gorm:"size:255" json:"-"`

	// Plan assignment; reference data lives in pkg/plans
	Plan     string `gorm:"size:32;default:member" json:"plan"`
	IsMember bool   `gorm:"default:false" json:"isMember"`

	// Payment provider linkage
	StripeCustomerID *string `gorm:"size:255" json:"-"`

	// Guest data migration flags. MigrationNeeded signals the client to
	// upload its local snapshot; MigrationCompleted is the idempotency
	// guard around the migration engine.
	MigrationNeeded    bool `gorm:"default:false" json:"migrationNeeded"`
	MigrationCompleted bool `gorm:"default:false" json:"-"`

	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `gorm:"index" json:"-"`
}

// Purchase is an append-only ledger entry for a completed checkout
type Purchase struct {
	ID               string    `gorm:"primaryKey;size:36" json:"id"`
	UserID           string    `gorm:"size:36;index;not null" json:"userId"`
	StripeSessionID  string    `gorm:"uniqueIndex;size:255;not null" json:"stripeSessionId"`
	StripeCustomerID string    `gorm:"size:255" json:"-"`
	AmountTotal      int64     `json:"amountTotal"`
	Currency         string    `gorm:"size:8" json:"currency"`
	Plan             string    `gorm:"size:32" json:"plan"`
	Status           string    `gorm:"size:32" json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
}
