package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is immutable once persisted except for the read flag.
type Message struct {
	ID                string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ConversationID    string    `gorm:"type:varchar(36);index" json:"conversationId,omitempty"`
	SenderID          string    `gorm:"type:varchar(36);not null" json:"sender"`
	ReceiverID        string    `gorm:"type:varchar(36);index" json:"receiver,omitempty"`
	Content           string    `json:"content"`
	Image             string    `json:"image,omitempty"`
	ForwardedFrom     string    `gorm:"type:varchar(36)" json:"forwardedFrom,omitempty"`
	ReplyTo           string    `gorm:"type:varchar(36)" json:"replyTo,omitempty"`
	IsRead            bool      `gorm:"column:is_read;default:false" json:"read"`
	ReferencedUser    string    `gorm:"type:varchar(36)" json:"referencedUser,omitempty"`
	ReferencedProduct string    `gorm:"type:varchar(36)" json:"referencedProduct,omitempty"`
	CreatedAt         time.Time `gorm:"index" json:"createdAt"`
}

// ForwardDraft derives a copy of m addressed to receiver. The copy keeps the
// source's conversation id, so a forward stays linked to the origin thread.
func (m *Message) ForwardDraft(senderID, receiverID string) Message {
	return Message{
		ID:                uuid.NewString(),
		ConversationID:    m.ConversationID,
		SenderID:          senderID,
		ReceiverID:        receiverID,
		Content:           m.Content,
		Image:             m.Image,
		ForwardedFrom:     m.ID,
		ReferencedUser:    m.ReferencedUser,
		ReferencedProduct: m.ReferencedProduct,
	}
}

// ReplyDraft derives a reply to m with caller-supplied content. Unlike
// ForwardDraft the reply does not attach to the source conversation; clients
// thread replies by the replyTo id. Unifying this with forward semantics
// needs a product decision, so both behaviors are kept as-is.
func (m *Message) ReplyDraft(senderID, receiverID, content, image string) Message {
	return Message{
		ID:                uuid.NewString(),
		SenderID:          senderID,
		ReceiverID:        receiverID,
		Content:           content,
		Image:             image,
		ReplyTo:           m.ID,
		ReferencedUser:    m.ReferencedUser,
		ReferencedProduct: m.ReferencedProduct,
	}
}
