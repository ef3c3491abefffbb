package main

import (
	"log"

	"chat-engine/config"
	"chat-engine/models"
	"chat-engine/routes"
	"chat-engine/services"
)

func main() {
	cfg := config.Load()
	if err := config.InitDB(cfg); err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := models.Migrate(); err != nil {
		log.Fatalf("migrate schema: %v", err)
	}

	presence := services.NewPresence()
	deliverer := services.NewDeliverer(presence)
	conversations := services.NewConversationService(config.DB)
	messages := services.NewMessageService(config.DB, conversations, deliverer)
	hub := services.NewHub(config.DB, presence, conversations, messages)

	r := routes.Register(cfg.JWTSecret, config.DB, hub, conversations, messages)
	log.Printf("listening on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server failed to start: %v", err)
	}
}
