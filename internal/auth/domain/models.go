// Package domain holds the operator user model for token issuance.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is an account that can sign in and receive a session token. License
// rows are keyed by UserID; a user without a license cannot generate notes.
type User struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	UserID       string       `gorm:"type:text;not null;uniqueIndex"`
	Email        string       `gorm:"type:text;not null;uniqueIndex"`
	DisplayName  string       `gorm:"type:text"`
	PasswordHash *string      `gorm:"type:text"`
	IsOperator   bool         `gorm:"not null;default:false"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }
