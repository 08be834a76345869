package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Part types. The set is open; these are the ones this service writes itself.
const (
	PartTypeText  = "text"
	PartTypeImage = "image"
	PartTypeAudio = "audio"
	PartTypeTool  = "tool"
)

// Message represents one chat turn half (user or assistant) in a session
type Message struct {
	ID        uint          `json:"-" gorm:"primaryKey"`
	SessionID string        `json:"session_id" gorm:"index;not null"`
	Role      string        `json:"role" gorm:"type:varchar(16);not null"`
	CreatedAt time.Time     `json:"created_at"`
	Parts     []MessagePart `json:"parts" gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE"`
}

// MessagePart is one ordered payload fragment of a message. Exactly one of
// Content/URL carries the payload depending on Type; the store does not
// enforce that, callers do.
type MessagePart struct {
	ID        uint     `json:"-" gorm:"primaryKey"`
	MessageID uint     `json:"-" gorm:"index;not null"`
	Type      string   `json:"type" gorm:"type:varchar(16);not null"`
	Content   string   `json:"content,omitempty"`
	URL       string   `json:"url,omitempty"`
	Metadata  Metadata `json:"metadata,omitempty" gorm:"type:jsonb"`
	SortOrder int      `json:"-" gorm:"not null"`
}

// TextPart builds a text part
func TextPart(content string) MessagePart {
	return MessagePart{Type: PartTypeText, Content: content}
}

// FirstText returns the content of the first text part, or ""
func (m *Message) FirstText() string {
	for _, p := range m.Parts {
		if p.Type == PartTypeText {
			return p.Content
		}
	}
	return ""
}

// Metadata is a free-form JSON object stored in a jsonb column
type Metadata map[string]any

// Value implements driver.Valuer
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *Metadata) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported metadata type %T", value)
	}
}
