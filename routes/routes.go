package routes

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"chat-engine/controllers"
	"chat-engine/middlewares"
	"chat-engine/models"
	"chat-engine/services"
)

// Register wires all HTTP and websocket routes.
func Register(jwtSecret string, db *gorm.DB, hub *services.Hub, conversations *services.ConversationService, messages *services.MessageService) *gin.Engine {
	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	ws := &controllers.WSController{Hub: hub}
	users := &controllers.UserController{DB: db, JWTSecret: jwtSecret}
	msgs := &controllers.MessageController{Messages: messages, Conversations: conversations}

	auth := middlewares.TokenAuthMiddleware(jwtSecret, db)
	adminOnly := middlewares.TokenAuthMiddleware(jwtSecret, db, models.RoleAdmin)

	r.GET("/ws", ws.Serve)

	api := r.Group("/api")
	api.POST("/users/register", users.Register)
	api.POST("/users/login", users.Login)
	api.GET("/users/me", auth, users.Me)

	m := api.Group("/messages")
	m.GET("/conversations/:type", auth, msgs.GetConversations)
	m.POST("/conversations/start", auth, msgs.StartConversation)
	m.POST("/conversations/:conversationId/close", auth, msgs.CloseConversation)
	m.POST("/send", auth, msgs.Send)
	m.POST("/forward", auth, msgs.Forward)
	m.POST("/reply", auth, msgs.Reply)
	m.POST("/join-conversation/:conversationId", adminOnly, msgs.Join)
	m.GET("/:conversationId", auth, msgs.GetMessages)

	return r
}
