package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"chat-engine/models"
)

// Integration tests run against a real MySQL instance. Set CHAT_TEST_DSN to
// enable them, e.g.:
//
//	CHAT_TEST_DSN="root:secret@tcp(127.0.0.1:3306)/chat_test?charset=utf8mb4&parseTime=True&loc=Local"
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("CHAT_TEST_DSN")
	if dsn == "" {
		t.Skip("CHAT_TEST_DSN not set")
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.Message{},
	))
	t.Cleanup(func() {
		db.Exec("DELETE FROM messages")
		db.Exec("DELETE FROM conversation_participants")
		db.Exec("DELETE FROM conversations")
		db.Exec("DELETE FROM users")
	})
	return db
}

func testServices(t *testing.T) (*gorm.DB, *ConversationService, *MessageService) {
	t.Helper()
	db := testDB(t)
	conversations := NewConversationService(db)
	messages := NewMessageService(db, conversations, NewDeliverer(NewPresence()))
	return db, conversations, messages
}

func createUser(t *testing.T, db *gorm.DB, role models.Role) *models.User {
	t.Helper()
	u := models.User{
		ID:       uuid.NewString(),
		FullName: "Test User",
		Email:    fmt.Sprintf("%s@example.com", uuid.NewString()),
		Password: "x",
		Role:     role,
	}
	require.NoError(t, db.Create(&u).Error)
	return &u
}

func TestStartConversationIdempotent(t *testing.T) {
	db, conversations, _ := testServices(t)
	ctx := context.Background()
	u1 := createUser(t, db, models.RoleUser)
	u2 := createUser(t, db, models.RoleUser)

	first, err := conversations.StartConversation(ctx, u1.ID, u2.ID, models.TypeChat, u1.Role)
	require.NoError(t, err)
	require.Len(t, first.Participants, 2)

	// Same pair in reverse order resolves to the same row.
	second, err := conversations.StartConversation(ctx, u2.ID, u1.ID, models.TypeChat, u2.Role)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	// A different type is a different conversation.
	support, err := conversations.StartConversation(ctx, u1.ID, u2.ID, models.TypeSupport, u1.Role)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, support.ID)
}

func TestStartConversationConcurrent(t *testing.T) {
	db, conversations, _ := testServices(t)
	ctx := context.Background()
	u1 := createUser(t, db, models.RoleUser)
	u2 := createUser(t, db, models.RoleUser)

	const n = 8
	ids := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conv, err := conversations.StartConversation(ctx, u1.ID, u2.ID, models.TypeChat, u1.Role)
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = conv.ID
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, ids[0], ids[i])
	}
	var count int64
	require.NoError(t, db.Model(&models.Conversation{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestSendRoundTrip(t *testing.T) {
	db, _, messages := testServices(t)
	ctx := context.Background()
	u1 := createUser(t, db, models.RoleUser)
	u2 := createUser(t, db, models.RoleUser)

	sent, err := messages.Send(ctx, u1.ID, u1.Role, SendInput{
		Content:       "hello",
		ParticipantID: u2.ID,
		Type:          models.TypeChat,
	})
	require.NoError(t, err)
	require.NotEmpty(t, sent.ConversationID)
	require.Equal(t, u2.ID, sent.ReceiverID)
	require.False(t, sent.IsRead)

	_, err = messages.Send(ctx, u1.ID, u1.Role, SendInput{
		Content:        "again",
		ConversationID: sent.ConversationID,
	})
	require.NoError(t, err)

	got, err := messages.List(ctx, sent.ConversationID, u2.ID, u2.Role)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "hello", got[0].Content)
	require.Equal(t, "again", got[1].Content)

	// Outsiders cannot read the thread.
	u3 := createUser(t, db, models.RoleUser)
	_, err = messages.List(ctx, sent.ConversationID, u3.ID, u3.Role)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestSendRollsBackConversation(t *testing.T) {
	db, _, messages := testServices(t)
	ctx := context.Background()
	u1 := createUser(t, db, models.RoleUser)
	u2 := createUser(t, db, models.RoleUser)

	// Overflowing the referenced_user column fails the message insert after
	// the conversation row was created inside the same transaction.
	_, err := messages.Send(ctx, u1.ID, u1.Role, SendInput{
		Content:        "hello",
		ParticipantID:  u2.ID,
		Type:           models.TypeChat,
		ReferencedUser: strings.Repeat("x", 100),
	})
	require.Error(t, err)

	key := models.BuildParticipantKey(u1.ID, u2.ID)
	var count int64
	require.NoError(t, db.Model(&models.Conversation{}).
		Where("participant_key = ?", key).Count(&count).Error)
	require.EqualValues(t, 0, count, "conversation must roll back with the failed message")
}

func TestSendRequiresMembership(t *testing.T) {
	db, conversations, messages := testServices(t)
	ctx := context.Background()
	u1 := createUser(t, db, models.RoleUser)
	u2 := createUser(t, db, models.RoleUser)
	u3 := createUser(t, db, models.RoleUser)

	conv, err := conversations.StartConversation(ctx, u1.ID, u2.ID, models.TypeChat, u1.Role)
	require.NoError(t, err)

	_, err = messages.Send(ctx, u3.ID, u3.Role, SendInput{
		Content:        "intruder",
		ConversationID: conv.ID,
	})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestJoinExclusive(t *testing.T) {
	db, conversations, _ := testServices(t)
	ctx := context.Background()
	user := createUser(t, db, models.RoleUser)
	adminA := createUser(t, db, models.RoleAdmin)
	adminB := createUser(t, db, models.RoleAdmin)

	ticket, err := conversations.StartConversation(ctx, user.ID, "", models.TypeSupport, user.Role)
	require.NoError(t, err)
	require.Len(t, ticket.Participants, 1)

	joined, err := conversations.Join(ctx, ticket.ID, adminA.ID)
	require.NoError(t, err)
	require.Len(t, joined.Participants, 2)

	_, err = conversations.Join(ctx, ticket.ID, adminB.ID)
	require.ErrorIs(t, err, ErrConflict)

	// Re-joining by the handling admin is a no-op.
	again, err := conversations.Join(ctx, ticket.ID, adminA.ID)
	require.NoError(t, err)
	require.Len(t, again.Participants, 2)

	// Chats cannot be joined at all.
	other := createUser(t, db, models.RoleUser)
	chat, err := conversations.StartConversation(ctx, user.ID, other.ID, models.TypeChat, user.Role)
	require.NoError(t, err)
	_, err = conversations.Join(ctx, chat.ID, adminA.ID)
	require.ErrorIs(t, err, ErrValidation)
}

func TestMarkReadIdempotent(t *testing.T) {
	db, _, messages := testServices(t)
	ctx := context.Background()
	u1 := createUser(t, db, models.RoleUser)
	u2 := createUser(t, db, models.RoleUser)

	sent, err := messages.Send(ctx, u1.ID, u1.Role, SendInput{
		Content:       "hello",
		ParticipantID: u2.ID,
		Type:          models.TypeChat,
	})
	require.NoError(t, err)

	unread := func() int64 {
		var n int64
		require.NoError(t, db.Model(&models.Message{}).
			Where("conversation_id = ? AND receiver_id = ? AND is_read = ?", sent.ConversationID, u2.ID, false).
			Count(&n).Error)
		return n
	}

	require.EqualValues(t, 1, unread())
	require.NoError(t, messages.MarkRead(ctx, sent.ConversationID, u2.ID))
	require.EqualValues(t, 0, unread())
	require.NoError(t, messages.MarkRead(ctx, sent.ConversationID, u2.ID))
	require.EqualValues(t, 0, unread())
}

func TestListByType(t *testing.T) {
	db, conversations, messages := testServices(t)
	ctx := context.Background()
	u1 := createUser(t, db, models.RoleUser)
	u2 := createUser(t, db, models.RoleUser)
	admin := createUser(t, db, models.RoleAdmin)

	sent, err := messages.Send(ctx, u1.ID, u1.Role, SendInput{
		Content:       "hello",
		ParticipantID: u2.ID,
		Type:          models.TypeChat,
	})
	require.NoError(t, err)

	_, err = messages.Send(ctx, u1.ID, u1.Role, SendInput{
		Content: "need help",
		Type:    models.TypeSupport,
	})
	require.NoError(t, err)

	chats, err := conversations.ListByType(ctx, u2.ID, u2.Role, models.TypeChat)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	require.Equal(t, "hello", chats[0].LastMessage.Content)
	require.Equal(t, u1.ID, chats[0].OtherUser.ID)
	require.EqualValues(t, 1, chats[0].UnreadCount)

	// Admins see every open ticket, joined or not.
	tickets, err := conversations.ListByType(ctx, admin.ID, admin.Role, models.TypeSupport)
	require.NoError(t, err)
	require.Len(t, tickets, 1)

	// Closed conversations drop out of non-admin listings.
	require.NoError(t, conversations.Close(ctx, sent.ConversationID, u1.ID, u1.Role))
	chats, err = conversations.ListByType(ctx, u2.ID, u2.Role, models.TypeChat)
	require.NoError(t, err)
	require.Empty(t, chats)
}

func TestForwardAndReply(t *testing.T) {
	db, _, messages := testServices(t)
	ctx := context.Background()
	u1 := createUser(t, db, models.RoleUser)
	u2 := createUser(t, db, models.RoleUser)
	u3 := createUser(t, db, models.RoleUser)

	src, err := messages.Send(ctx, u1.ID, u1.Role, SendInput{
		Content:       "original",
		ParticipantID: u2.ID,
		Type:          models.TypeChat,
	})
	require.NoError(t, err)

	fwd, err := messages.Forward(ctx, u2.ID, u3.ID, src.ID)
	require.NoError(t, err)
	require.Equal(t, src.ID, fwd.ForwardedFrom)
	require.Equal(t, src.ConversationID, fwd.ConversationID)
	require.Equal(t, "original", fwd.Content)

	rep, err := messages.Reply(ctx, u2.ID, u1.ID, src.ID, "a reply", "")
	require.NoError(t, err)
	require.Equal(t, src.ID, rep.ReplyTo)
	require.Empty(t, rep.ConversationID)

	_, err = messages.Forward(ctx, u2.ID, u2.ID, src.ID)
	require.ErrorIs(t, err, ErrValidation)
	_, err = messages.Forward(ctx, u2.ID, "no-such-user", src.ID)
	require.ErrorIs(t, err, ErrValidation)
	_, err = messages.Reply(ctx, u2.ID, u1.ID, "no-such-message", "x", "")
	require.ErrorIs(t, err, ErrNotFound)
}
