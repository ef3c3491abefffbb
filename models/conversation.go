package models

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
)

type ConversationType string

const (
	TypeChat    ConversationType = "Chat"
	TypeSupport ConversationType = "Support"
	TypeReport  ConversationType = "Report"
)

func (t ConversationType) Valid() bool {
	return t == TypeChat || t == TypeSupport || t == TypeReport
}

type Conversation struct {
	ID             string           `gorm:"primaryKey;type:varchar(36)"`
	Type           ConversationType `gorm:"type:varchar(10);uniqueIndex:idx_conversation_key"`
	ParticipantKey string           `gorm:"type:varchar(191);uniqueIndex:idx_conversation_key"`
	Closed         bool             `gorm:"default:false"`
	IsGuest        bool             `gorm:"default:false"`
	CreatedAt      time.Time        `gorm:"autoCreateTime"`

	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID"`
}

// BuildParticipantKey derives the conditional-upsert key for a conversation:
// the distinct creator participant ids, sorted and joined, so the same
// unordered set always maps to the same row.
func BuildParticipantKey(ids ...string) string {
	ids = lo.Uniq(lo.Compact(ids))
	sort.Strings(ids)
	return strings.Join(ids, ":")
}

func (c *Conversation) ParticipantIDs() []string {
	return lo.Map(c.Participants, func(p ConversationParticipant, _ int) string {
		return p.UserID
	})
}

func (c *Conversation) HasParticipant(userID string) bool {
	return lo.ContainsBy(c.Participants, func(p ConversationParticipant) bool {
		return p.UserID == userID
	})
}

// OtherParticipant returns the first participant that is not userID,
// or "" when the conversation has no counterpart yet.
func (c *Conversation) OtherParticipant(userID string) string {
	p, ok := lo.Find(c.Participants, func(p ConversationParticipant) bool {
		return p.UserID != userID
	})
	if !ok {
		return ""
	}
	return p.UserID
}

// CanAccess reports whether subject may read this conversation. Admins may
// access any Support or Report conversation; Chat conversations and all
// non-admin roles require membership.
func (c *Conversation) CanAccess(userID string, role Role) bool {
	if role == RoleAdmin && c.Type != TypeChat {
		return true
	}
	return c.HasParticipant(userID)
}

// CanPost reports whether sender may append messages. Admins may post into
// any conversation, which is how Support and Report tickets get answered.
func (c *Conversation) CanPost(userID string, role Role) bool {
	return role == RoleAdmin || c.HasParticipant(userID)
}

// Joinable conversations are Support or Report tickets still waiting for an
// admin. Chat conversations are fixed at creation.
func (c *Conversation) Joinable() bool {
	return c.Type == TypeSupport || c.Type == TypeReport
}

func (c Conversation) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID           string           `json:"id"`
		Type         ConversationType `json:"type"`
		Participants []string         `json:"participants"`
		Closed       bool             `json:"closed"`
		IsGuest      bool             `json:"isGuest"`
		CreatedAt    time.Time        `json:"createdAt"`
	}{
		ID:           c.ID,
		Type:         c.Type,
		Participants: c.ParticipantIDs(),
		Closed:       c.Closed,
		IsGuest:      c.IsGuest,
		CreatedAt:    c.CreatedAt,
	})
}
