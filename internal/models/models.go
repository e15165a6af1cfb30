package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts travel as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// User represents an account that owns categories and records.
type User struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:120;uniqueIndex;not null" json:"name"`
	PasswordHash string    `gorm:"not null" json:"-"`
	IsAdmin      bool      `gorm:"not null" json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// Category is a named expense bucket. A global category has no owner;
// a private one is owned by exactly one user.
type Category struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"size:120;not null" json:"name"`
	IsGlobal bool   `gorm:"not null" json:"is_global"`
	UserID   *int64 `gorm:"index" json:"user_id"`

	User *User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// OwnedBy reports whether the category is private to the given user.
func (c *Category) OwnedBy(userID int64) bool {
	return !c.IsGlobal && c.UserID != nil && *c.UserID == userID
}

// Record is a single expense entry.
type Record struct {
	ID         int64           `gorm:"primaryKey" json:"id"`
	UserID     int64           `gorm:"index;not null" json:"user_id"`
	CategoryID int64           `gorm:"index;not null" json:"category_id"`
	CreatedAt  time.Time       `gorm:"not null" json:"created_at"`
	Amount     decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`

	User     *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Category *Category `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// RecordFilter narrows a record listing. Nil fields are not applied.
type RecordFilter struct {
	UserID     *int64
	CategoryID *int64
}
