package models

import (
	"time"
)

// Session status values. A session never returns to active once it leaves it.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// DefaultTitle is the placeholder title assigned at creation. Automatic title
// derivation only ever replaces this exact value.
const DefaultTitle = "New Chat"

// Session represents one chat conversation owned by a user
type Session struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	SessionID string    `json:"session_id" gorm:"uniqueIndex;not null"`
	UserID    string    `json:"user_id" gorm:"index;not null"`
	Status    string    `json:"status" gorm:"not null"`
	Title     string    `json:"title" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Active reports whether the session still accepts new turns
func (s *Session) Active() bool {
	return s.Status == StatusActive
}
