package presence

import (
	"time"

	"github.com/google/uuid"
)

// Visibility controls who may see a user's online status or last-seen time.
type Visibility string

const (
	VisibleEveryone Visibility = "everyone"
	VisibleContacts Visibility = "contacts"
	VisibleNobody   Visibility = "nobody"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibleEveryone, VisibleContacts, VisibleNobody:
		return true
	}
	return false
}

// Record represents presence_records, one row per user.
// IsOnline mirrors ConnectionCount > 0 at all times.
type Record struct {
	UserID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"user_id"`
	IsOnline              bool       `gorm:"not null;index" json:"is_online"`
	ConnectionCount       int        `gorm:"not null" json:"connection_count"`
	LastSeenAt            *time.Time `json:"last_seen_at,omitempty"`
	LastActivityAt        time.Time  `gorm:"not null" json:"last_activity_at"`
	CurrentConversationID *uuid.UUID `gorm:"type:uuid" json:"current_conversation_id,omitempty"`
	ShowOnlineStatus      Visibility `gorm:"type:varchar(10);not null" json:"show_online_status"`
	ShowLastSeen          Visibility `gorm:"type:varchar(10);not null" json:"show_last_seen"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func (Record) TableName() string {
	return "presence_records"
}

func NewRecord(userID uuid.UUID, now time.Time) Record {
	return Record{
		UserID:           userID,
		LastActivityAt:   now,
		ShowOnlineStatus: VisibleEveryone,
		ShowLastSeen:     VisibleEveryone,
	}
}

// Connect registers one more open connection. It reports whether the user
// just came online.
func (r *Record) Connect(now time.Time) bool {
	wasOnline := r.ConnectionCount > 0
	r.ConnectionCount++
	r.IsOnline = true
	r.LastActivityAt = now
	return !wasOnline
}

// Disconnect drops one connection, floored at zero. It reports whether this
// call drained the count to zero; a record already at zero never reports it.
func (r *Record) Disconnect(now time.Time) bool {
	r.LastActivityAt = now
	if r.ConnectionCount <= 0 {
		r.ConnectionCount = 0
		r.IsOnline = false
		return false
	}
	r.ConnectionCount--
	if r.ConnectionCount == 0 {
		r.IsOnline = false
		r.LastSeenAt = &now
		return true
	}
	return false
}

// Touch refreshes activity and, when conversationID is non-nil, the current conversation.
func (r *Record) Touch(now time.Time, conversationID *uuid.UUID) {
	r.LastActivityAt = now
	if conversationID != nil {
		id := *conversationID
		r.CurrentConversationID = &id
	}
}

// View is what another user is allowed to see of a Record.
type View struct {
	UserID         uuid.UUID  `json:"user_id"`
	IsOnline       *bool      `json:"is_online,omitempty"`
	LastSeenAt     *time.Time `json:"last_seen_at,omitempty"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
}

// ViewFor projects the record for a viewer. self is true when viewer and subject
// are the same user, contact when they share an active conversation.
func (r Record) ViewFor(self, contact bool) View {
	v := View{UserID: r.UserID}
	if visible(r.ShowOnlineStatus, self, contact) {
		online := r.IsOnline
		activity := r.LastActivityAt
		v.IsOnline = &online
		v.LastActivityAt = &activity
	}
	if visible(r.ShowLastSeen, self, contact) {
		v.LastSeenAt = r.LastSeenAt
	}
	return v
}

func visible(v Visibility, self, contact bool) bool {
	if self {
		return true
	}
	switch v {
	case VisibleEveryone:
		return true
	case VisibleContacts:
		return contact
	}
	return false
}
