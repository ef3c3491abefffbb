package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chat-engine/models"
)

// ConversationService resolves, creates and mutates conversations.
type ConversationService struct {
	db *gorm.DB
}

func NewConversationService(db *gorm.DB) *ConversationService {
	return &ConversationService{db: db}
}

// GetByID fetches a conversation with its participants loaded.
func (s *ConversationService) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	return getConversation(s.db.WithContext(ctx), id)
}

func getConversation(tx *gorm.DB, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := tx.Preload("Participants").First(&conv, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: conversation %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	return &conv, nil
}

// resolveOrCreate finds the conversation for the given participant set and
// type, inserting it when absent. The unique (participant_key, type) index
// arbitrates concurrent first-sends: the loser of the insert race re-reads
// the winner's row, so both callers observe the same conversation. For
// Support and Report without a participant the key is the sender alone,
// which makes repeated sends reuse the sender's single ticket.
func (s *ConversationService) resolveOrCreate(tx *gorm.DB, senderID, participantID string, ctype models.ConversationType, role models.Role) (*models.Conversation, error) {
	if ctype == "" {
		return nil, fmt.Errorf("%w: type is required", ErrValidation)
	}
	if !ctype.Valid() {
		return nil, fmt.Errorf("%w: unknown conversation type %q", ErrValidation, ctype)
	}
	if ctype == models.TypeChat && participantID == "" {
		return nil, fmt.Errorf("%w: participantId is required", ErrValidation)
	}

	ids := []string{senderID}
	if participantID != "" {
		ids = append(ids, participantID)
	}
	key := models.BuildParticipantKey(ids...)

	conv := models.Conversation{
		ID:             uuid.NewString(),
		Type:           ctype,
		ParticipantKey: key,
		IsGuest:        role == models.RoleGuest,
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&conv)
	if res.Error != nil {
		return nil, fmt.Errorf("create conversation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Lost the race, or the conversation already existed.
		var existing models.Conversation
		if err := tx.Preload("Participants").
			First(&existing, "participant_key = ? AND type = ?", key, ctype).Error; err != nil {
			return nil, fmt.Errorf("load conversation: %w", err)
		}
		return &existing, nil
	}

	for _, id := range lo.Uniq(lo.Compact(ids)) {
		p := models.ConversationParticipant{ConversationID: conv.ID, UserID: id}
		if err := tx.Create(&p).Error; err != nil {
			return nil, fmt.Errorf("create participant: %w", err)
		}
		conv.Participants = append(conv.Participants, p)
	}
	return &conv, nil
}

// StartConversation is the explicit find-or-create operation. It shares the
// resolver with the send path, so concurrent starts settle on one row.
func (s *ConversationService) StartConversation(ctx context.Context, senderID, participantID string, ctype models.ConversationType, role models.Role) (*models.Conversation, error) {
	var conv *models.Conversation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		conv, err = s.resolveOrCreate(tx, senderID, participantID, ctype, role)
		return err
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// Join adds an admin to an unhandled Support or Report ticket. The row lock
// serialises concurrent joins: once a ticket holds two participants every
// further join fails, and re-joining by the same admin is a no-op.
func (s *ConversationService) Join(ctx context.Context, conversationID, adminID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&conv, "id = ?", conversationID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
		}
		if err != nil {
			return fmt.Errorf("load conversation: %w", err)
		}
		if !conv.Joinable() {
			return fmt.Errorf("%w: only Support or Report conversations can be joined", ErrValidation)
		}
		if err := tx.Where("conversation_id = ?", conv.ID).Find(&conv.Participants).Error; err != nil {
			return fmt.Errorf("load participants: %w", err)
		}
		if len(conv.Participants) > 1 {
			return fmt.Errorf("%w: ticket is already handled by another admin", ErrConflict)
		}
		if conv.HasParticipant(adminID) {
			return nil
		}
		p := models.ConversationParticipant{ConversationID: conv.ID, UserID: adminID}
		if err := tx.Create(&p).Error; err != nil {
			return fmt.Errorf("add participant: %w", err)
		}
		conv.Participants = append(conv.Participants, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// Close flips the closed flag. Participants and admins only. Closed
// conversations drop out of non-admin listings but keep their history.
func (s *ConversationService) Close(ctx context.Context, conversationID, userID string, role models.Role) error {
	conv, err := s.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.CanPost(userID, role) {
		return fmt.Errorf("%w: not a conversation participant", ErrForbidden)
	}
	if err := s.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", conversationID).Update("closed", true).Error; err != nil {
		return fmt.Errorf("close conversation: %w", err)
	}
	return nil
}

// OtherUser is the counterpart shown next to a conversation in listings.
type OtherUser struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Avatar   string `json:"avatar,omitempty"`
}

type ConversationSummary struct {
	Conversation *models.Conversation `json:"conversation"`
	LastMessage  *models.Message      `json:"lastMessage,omitempty"`
	OtherUser    *OtherUser           `json:"otherUser,omitempty"`
	UnreadCount  int64                `json:"unreadCount"`
}

// ListByType returns the caller's conversations of one type, newest first.
// Admins see every Support or Report conversation; everyone else sees only
// their own open ones. Each entry carries the last message, the counterpart
// and the caller's unread count.
func (s *ConversationService) ListByType(ctx context.Context, userID string, role models.Role, ctype models.ConversationType) ([]ConversationSummary, error) {
	if !ctype.Valid() {
		return nil, fmt.Errorf("%w: unknown conversation type %q", ErrValidation, ctype)
	}
	db := s.db.WithContext(ctx)

	var convs []models.Conversation
	q := db.Preload("Participants").Order("created_at DESC")
	if role == models.RoleAdmin && ctype != models.TypeChat {
		q = q.Where("type = ?", ctype)
	} else {
		member := db.Model(&models.ConversationParticipant{}).
			Select("conversation_id").Where("user_id = ?", userID)
		q = q.Where("type = ? AND closed = ? AND id IN (?)", ctype, false, member)
	}
	if err := q.Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	summaries := make([]ConversationSummary, 0, len(convs))
	for i := range convs {
		conv := &convs[i]
		sum := ConversationSummary{Conversation: conv}

		var last models.Message
		err := db.Where("conversation_id = ?", conv.ID).
			Order("created_at DESC").First(&last).Error
		switch {
		case err == nil:
			sum.LastMessage = &last
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, fmt.Errorf("load last message: %w", err)
		}

		if otherID := conv.OtherParticipant(userID); otherID != "" {
			var u models.User
			if err := db.Select("id", "full_name", "avatar_url").
				First(&u, "id = ?", otherID).Error; err == nil {
				sum.OtherUser = &OtherUser{ID: u.ID, FullName: u.FullName, Avatar: u.AvatarURL}
			}
		}

		if err := db.Model(&models.Message{}).
			Where("conversation_id = ? AND receiver_id = ? AND is_read = ?", conv.ID, userID, false).
			Count(&sum.UnreadCount).Error; err != nil {
			return nil, fmt.Errorf("count unread: %w", err)
		}

		summaries = append(summaries, sum)
	}
	return summaries, nil
}
