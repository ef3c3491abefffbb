package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"chat-engine/models"
)

// A stalled store call must surface as an error rather than hang the send
// path indefinitely.
const sendTimeout = 5 * time.Second

// SendInput is the send request after the caller identity has been resolved.
type SendInput struct {
	Content           string
	Image             string
	ConversationID    string
	ParticipantID     string
	Type              models.ConversationType
	ReferencedUser    string
	ReferencedProduct string
}

// MessageService persists messages and orchestrates the transactional send
// path: resolve conversation, authorise, append, fan out, commit.
type MessageService struct {
	db            *gorm.DB
	conversations *ConversationService
	deliverer     *Deliverer
}

func NewMessageService(db *gorm.DB, conversations *ConversationService, deliverer *Deliverer) *MessageService {
	return &MessageService{db: db, conversations: conversations, deliverer: deliverer}
}

// Send runs the whole send path in one transaction. A conversation created
// on first send rolls back together with the message when anything before
// commit fails, so no half-created state is observable afterwards. Fan-out
// alone can never abort the unit.
func (s *MessageService) Send(ctx context.Context, senderID string, role models.Role, in SendInput) (*models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	var saved models.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv *models.Conversation
		var err error
		if in.ConversationID != "" {
			conv, err = getConversation(tx, in.ConversationID)
		} else {
			conv, err = s.conversations.resolveOrCreate(tx, senderID, in.ParticipantID, in.Type, role)
		}
		if err != nil {
			return err
		}
		if !conv.CanPost(senderID, role) {
			return fmt.Errorf("%w: not a conversation participant", ErrForbidden)
		}

		// A single clear counterpart exists only once the conversation has
		// more than one participant; fresh tickets carry no receiver.
		receiverID := ""
		if len(conv.Participants) > 1 {
			if receiverID = conv.OtherParticipant(senderID); receiverID == "" {
				return fmt.Errorf("%w: receiver not found in the conversation", ErrValidation)
			}
		}

		saved = models.Message{
			ID:                uuid.NewString(),
			ConversationID:    conv.ID,
			SenderID:          senderID,
			ReceiverID:        receiverID,
			Content:           in.Content,
			Image:             in.Image,
			ReferencedUser:    in.ReferencedUser,
			ReferencedProduct: in.ReferencedProduct,
		}
		if err := tx.Create(&saved).Error; err != nil {
			return fmt.Errorf("save message: %w", err)
		}

		s.deliverer.Deliver(&saved, conv)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// List returns the conversation's messages oldest first, after the access
// check: admins read any Support or Report thread, everyone else (and admins
// on Chat) must be a participant.
func (s *MessageService) List(ctx context.Context, conversationID, userID string, role models.Role) ([]models.Message, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.CanAccess(userID, role) {
		return nil, fmt.Errorf("%w: not a conversation participant", ErrForbidden)
	}

	var msgs []models.Message
	if err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// MarkRead flips every unread message addressed to userID in the
// conversation. Repeating the call is harmless.
func (s *MessageService) MarkRead(ctx context.Context, conversationID, userID string) error {
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND is_read = ?", conversationID, userID, false).
		Update("is_read", true).Error
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// Forward copies an existing message to a new receiver and pushes it to them
// when online. Forward and reply are single writes; only Send is
// transactional.
func (s *MessageService) Forward(ctx context.Context, senderID, receiverID, messageID string) (*models.Message, error) {
	if receiverID == "" || messageID == "" {
		return nil, fmt.Errorf("%w: receiver and messageId are required", ErrValidation)
	}
	if senderID == receiverID {
		return nil, fmt.Errorf("%w: cannot message yourself", ErrValidation)
	}
	db := s.db.WithContext(ctx)
	if err := s.checkReceiver(db, receiverID); err != nil {
		return nil, err
	}
	src, err := s.getMessage(db, messageID)
	if err != nil {
		return nil, err
	}

	draft := src.ForwardDraft(senderID, receiverID)
	if err := db.Create(&draft).Error; err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}
	s.deliverer.PushToUser(receiverID, &draft)
	return &draft, nil
}

// Reply creates a reply to an existing message with caller-supplied content
// and pushes it to the receiver when online.
func (s *MessageService) Reply(ctx context.Context, senderID, receiverID, replyTo, content, image string) (*models.Message, error) {
	if receiverID == "" || replyTo == "" {
		return nil, fmt.Errorf("%w: receiver and replyTo are required", ErrValidation)
	}
	if senderID == receiverID {
		return nil, fmt.Errorf("%w: cannot message yourself", ErrValidation)
	}
	db := s.db.WithContext(ctx)
	if err := s.checkReceiver(db, receiverID); err != nil {
		return nil, err
	}
	src, err := s.getMessage(db, replyTo)
	if err != nil {
		return nil, err
	}

	draft := src.ReplyDraft(senderID, receiverID, content, image)
	if err := db.Create(&draft).Error; err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}
	s.deliverer.PushToUser(receiverID, &draft)
	return &draft, nil
}

func (s *MessageService) checkReceiver(db *gorm.DB, receiverID string) error {
	var count int64
	if err := db.Model(&models.User{}).Where("id = ?", receiverID).Count(&count).Error; err != nil {
		return fmt.Errorf("look up receiver: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: invalid receiver", ErrValidation)
	}
	return nil
}

func (s *MessageService) getMessage(db *gorm.DB, id string) (*models.Message, error) {
	var msg models.Message
	err := db.First(&msg, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: message %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load message: %w", err)
	}
	return &msg, nil
}
