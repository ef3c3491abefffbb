package models

import "chat-engine/config"

// Migrate creates or updates the schema for all chat tables.
func Migrate() error {
	return config.DB.AutoMigrate(
		&User{},
		&Conversation{},
		&ConversationParticipant{},
		&Message{},
	)
}
