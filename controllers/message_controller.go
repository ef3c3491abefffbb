package controllers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-engine/middlewares"
	"chat-engine/models"
	"chat-engine/services"
	"chat-engine/utils"
)

type MessageController struct {
	Messages      *services.MessageService
	Conversations *services.ConversationService
}

type sendRequest struct {
	Content           string                  `json:"content"`
	Image             string                  `json:"image"`
	ConversationID    string                  `json:"conversationId"`
	ParticipantID     string                  `json:"participantId"`
	Type              models.ConversationType `json:"type"`
	ReferencedUser    string                  `json:"referencedUser"`
	ReferencedProduct string                  `json:"referencedProduct"`
}

// Send creates or resolves the conversation and appends one message to it.
func (mc *MessageController) Send(c *gin.Context) {
	user, ok := middlewares.CurrentUser(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, "user not found")
		return
	}
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := mc.Messages.Send(c.Request.Context(), user.ID, user.Role, services.SendInput{
		Content:           req.Content,
		Image:             req.Image,
		ConversationID:    req.ConversationID,
		ParticipantID:     req.ParticipantID,
		Type:              req.Type,
		ReferencedUser:    req.ReferencedUser,
		ReferencedProduct: req.ReferencedProduct,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, http.StatusCreated, gin.H{"message": msg})
}

// GetMessages lists a conversation's messages, oldest first.
func (mc *MessageController) GetMessages(c *gin.Context) {
	user, ok := middlewares.CurrentUser(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, "user not found")
		return
	}
	msgs, err := mc.Messages.List(c.Request.Context(), c.Param("conversationId"), user.ID, user.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, http.StatusOK, gin.H{"messages": msgs})
}

// GetConversations lists the caller's conversations of one type, enriched
// with the last message, the counterpart and the unread count.
func (mc *MessageController) GetConversations(c *gin.Context) {
	user, ok := middlewares.CurrentUser(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, "user not found")
		return
	}
	ctype := models.ConversationType(c.Param("type"))
	summaries, err := mc.Conversations.ListByType(c.Request.Context(), user.ID, user.Role, ctype)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, http.StatusOK, gin.H{"conversations": summaries})
}

type forwardRequest struct {
	Receiver  string `json:"receiver" binding:"required"`
	MessageID string `json:"messageId" binding:"required"`
}

func (mc *MessageController) Forward(c *gin.Context) {
	user, ok := middlewares.CurrentUser(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, "user not found")
		return
	}
	var req forwardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "receiver and messageId are required")
		return
	}
	msg, err := mc.Messages.Forward(c.Request.Context(), user.ID, req.Receiver, req.MessageID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, http.StatusCreated, gin.H{"message": msg})
}

type replyRequest struct {
	Receiver string `json:"receiver" binding:"required"`
	ReplyTo  string `json:"replyTo" binding:"required"`
	Content  string `json:"content"`
	Image    string `json:"image"`
}

func (mc *MessageController) Reply(c *gin.Context) {
	user, ok := middlewares.CurrentUser(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, "user not found")
		return
	}
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "receiver and replyTo are required")
		return
	}
	msg, err := mc.Messages.Reply(c.Request.Context(), user.ID, req.Receiver, req.ReplyTo, req.Content, req.Image)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, http.StatusCreated, gin.H{"message": msg})
}

type startRequest struct {
	ParticipantID string                  `json:"participantId"`
	Type          models.ConversationType `json:"type"`
}

// StartConversation finds or creates a conversation without sending anything.
func (mc *MessageController) StartConversation(c *gin.Context) {
	user, ok := middlewares.CurrentUser(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, "user not found")
		return
	}
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	conv, err := mc.Conversations.StartConversation(c.Request.Context(), user.ID, req.ParticipantID, req.Type, user.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, http.StatusCreated, gin.H{"conversation": conv})
}

type joinRequest struct {
	AdminID string `json:"adminId"`
}

// Join assigns an admin to an unhandled Support or Report ticket. The route
// is admin-only; the body may name another admin, defaulting to the caller.
func (mc *MessageController) Join(c *gin.Context) {
	user, ok := middlewares.CurrentUser(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, "user not found")
		return
	}
	var req joinRequest
	// Body is optional; an empty or missing one assigns the caller.
	_ = c.ShouldBindJSON(&req)
	adminID := req.AdminID
	if adminID == "" {
		adminID = user.ID
	}
	conv, err := mc.Conversations.Join(c.Request.Context(), c.Param("conversationId"), adminID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, http.StatusOK, gin.H{
		"message":      "admin added to the conversation",
		"conversation": conv,
	})
}

// CloseConversation flips the closed flag on a conversation.
func (mc *MessageController) CloseConversation(c *gin.Context) {
	user, ok := middlewares.CurrentUser(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, "user not found")
		return
	}
	if err := mc.Conversations.Close(c.Request.Context(), c.Param("conversationId"), user.ID, user.Role); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, http.StatusOK, nil)
}

// respondServiceError maps the service error taxonomy onto status codes.
// Unknown errors are logged and reported generically.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		utils.RespondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrForbidden):
		utils.RespondError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrNotFound):
		utils.RespondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrConflict):
		utils.RespondError(c, http.StatusConflict, err.Error())
	default:
		log.Printf("internal error: %v", err)
		utils.RespondError(c, http.StatusInternalServerError, "internal server error")
	}
}
