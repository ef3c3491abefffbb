package models

import "time"

// ConversationParticipant links a user to a conversation. Chat conversations
// hold exactly two rows from creation; Support and Report start with one and
// gain a second when an admin joins.
type ConversationParticipant struct {
	ConversationID string    `gorm:"primaryKey;type:varchar(36)" json:"conversationId"`
	UserID         string    `gorm:"primaryKey;type:varchar(36)" json:"userId"`
	JoinedAt       time.Time `gorm:"autoCreateTime" json:"joinedAt"`
}
