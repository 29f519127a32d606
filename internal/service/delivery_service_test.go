package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"chat-realtime-service/internal/model"
	"chat-realtime-service/internal/realtime"
	"chat-realtime-service/internal/repository"
	"chat-realtime-service/internal/testdb"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendDirectMessage_ReceiverOffline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	alice := testdb.CreateUser(t, h.db, "Alice")
	bob := testdb.CreateUser(t, h.db, "Bob")
	testdb.AddPushToken(t, h.db, bob.ID, "bob-phone")
	h.connect(alice.ID, "a1", "a2")

	msg, err := h.delivery.SendDirectMessage(ctx, alice.ID, DirectMessageInput{
		ReceiverID: bob.ID,
		Content:    "hi",
	})
	require.NoError(t, err)

	stored, err := h.messageRepo.FindByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MessageStatusSent, stored.Status)

	for _, conn := range []string{"a1", "a2"} {
		got := h.emitter.received(conn, realtime.EventReceiveMessage)
		require.Len(t, got, 1, conn)
		view := got[0].(realtime.MessageView)
		assert.Equal(t, "hi", view.Content)
		assert.Equal(t, "Alice", view.Sender.FirstName)
	}

	pushes := h.pushed()
	require.Len(t, pushes, 1)
	assert.Equal(t, []string{"bob-phone"}, pushes[0].Tokens)
	assert.Equal(t, "hi", pushes[0].Body)
	assert.Equal(t, "Alice", pushes[0].Title)
	assert.Equal(t, "message", pushes[0].Data["type"])
	assert.Equal(t, alice.ID.String(), pushes[0].Data["senderId"])
}

func TestSendDirectMessage_ReceiverOnline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	alice := testdb.CreateUser(t, h.db, "Alice")
	bob := testdb.CreateUser(t, h.db, "Bob")
	testdb.AddPushToken(t, h.db, bob.ID, "bob-phone")
	h.connect(alice.ID, "a1", "a2")
	h.connect(bob.ID, "b1", "b2")

	msg, err := h.delivery.SendDirectMessage(ctx, alice.ID, DirectMessageInput{ReceiverID: bob.ID, Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, model.MessageStatusDelivered, msg.Status)

	stored, err := h.messageRepo.FindByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MessageStatusDelivered, stored.Status)

	for _, conn := range []string{"a1", "a2", "b1", "b2"} {
		got := h.emitter.received(conn, realtime.EventReceiveMessage)
		require.Len(t, got, 1, conn)
		assert.Equal(t, model.MessageStatusDelivered, got[0].(realtime.MessageView).Status)
	}
	assert.Empty(t, h.pushed())
}

func TestSendDirectMessage_FirstExchangeLinksContacts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	alice := testdb.CreateUser(t, h.db, "Alice")
	bob := testdb.CreateUser(t, h.db, "Bob")
	h.connect(alice.ID, "a1")
	h.connect(bob.ID, "b1")

	_, err := h.delivery.SendDirectMessage(ctx, alice.ID, DirectMessageInput{ReceiverID: bob.ID, Content: "hi"})
	require.NoError(t, err)

	toBob := h.emitter.received("b1", realtime.EventNewDMContact)
	require.Len(t, toBob, 1)
	assert.Equal(t, alice.ID, toBob[0].(realtime.UserSummary).ID)

	toAlice := h.emitter.received("a1", realtime.EventNewDMContact)
	require.Len(t, toAlice, 1)
	assert.Equal(t, bob.ID, toAlice[0].(realtime.UserSummary).ID)

	linked, err := h.userRepo.IsContact(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, linked)

	h.emitter.reset()
	_, err = h.delivery.SendDirectMessage(ctx, bob.ID, DirectMessageInput{ReceiverID: alice.ID, Content: "hey"})
	require.NoError(t, err)
	assert.Empty(t, h.emitter.received("a1", realtime.EventNewDMContact))
	assert.Empty(t, h.emitter.received("b1", realtime.EventNewDMContact))
}

func TestSendDirectMessage_ReplyReference(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	alice := testdb.CreateUser(t, h.db, "Alice")
	bob := testdb.CreateUser(t, h.db, "Bob")

	long := strings.Repeat("한", 150)
	original, err := h.delivery.SendDirectMessage(ctx, bob.ID, DirectMessageInput{ReceiverID: alice.ID, Content: long})
	require.NoError(t, err)

	reply, err := h.delivery.SendDirectMessage(ctx, alice.ID, DirectMessageInput{
		ReceiverID: bob.ID,
		Content:    "agreed",
		ReplyTo:    &original.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, reply.ReplyTo.ID)
	assert.Equal(t, original.ID, *reply.ReplyTo.ID)
	assert.Equal(t, bob.ID, *reply.ReplyTo.SenderID)
	assert.Equal(t, model.MessageTypeText, reply.ReplyTo.Type)
	assert.Equal(t, strings.Repeat("한", 100), reply.ReplyTo.Preview)

	fileURL := "https://cdn.example.com/uploads/2026/report.pdf?sig=abc"
	file, err := h.delivery.SendDirectMessage(ctx, bob.ID, DirectMessageInput{
		ReceiverID:  alice.ID,
		MessageType: model.MessageTypeFile,
		FileURL:     &fileURL,
	})
	require.NoError(t, err)

	reply, err = h.delivery.SendDirectMessage(ctx, alice.ID, DirectMessageInput{ReceiverID: bob.ID, Content: "thanks", ReplyTo: &file.ID})
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", reply.ReplyTo.Preview)
	assert.Equal(t, model.MessageTypeFile, reply.ReplyTo.Type)

	missing := uuid.New()
	reply, err = h.delivery.SendDirectMessage(ctx, alice.ID, DirectMessageInput{ReceiverID: bob.ID, Content: "?", ReplyTo: &missing})
	require.NoError(t, err)
	assert.Nil(t, reply.ReplyTo.ID)
}

func TestSendDirectMessage_FilePushBody(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	alice := testdb.CreateUser(t, h.db, "Alice")
	bob := testdb.CreateUser(t, h.db, "Bob")
	testdb.AddPushToken(t, h.db, bob.ID, "bob-phone")

	fileURL := "https://cdn.example.com/cat.png"
	_, err := h.delivery.SendDirectMessage(ctx, alice.ID, DirectMessageInput{
		ReceiverID:  bob.ID,
		MessageType: model.MessageTypeFile,
		FileURL:     &fileURL,
	})
	require.NoError(t, err)

	pushes := h.pushed()
	require.Len(t, pushes, 1)
	assert.Equal(t, "Sent a file", pushes[0].Body)
}

func TestSendDirectMessage_NoTokensNoPush(t *testing.T) {
	h := newHarness(t)
	alice := testdb.CreateUser(t, h.db, "Alice")
	bob := testdb.CreateUser(t, h.db, "Bob")

	_, err := h.delivery.SendDirectMessage(context.Background(), alice.ID, DirectMessageInput{ReceiverID: bob.ID, Content: "hi"})
	require.NoError(t, err)
	assert.Empty(t, h.pushed())
}

type failingCreateMessageRepo struct {
	repository.MessageRepository
}

func (failingCreateMessageRepo) Create(ctx context.Context, message *model.Message) error {
	return errors.New("connection reset")
}

func TestSendDirectMessage_PersistenceFailure(t *testing.T) {
	h := newHarness(t)
	alice := testdb.CreateUser(t, h.db, "Alice")
	bob := testdb.CreateUser(t, h.db, "Bob")
	h.connect(alice.ID, "a1")
	h.connect(bob.ID, "b1")

	delivery := NewDeliveryService(failingCreateMessageRepo{h.messageRepo}, h.channelRepo, h.userRepo, h.registry, h.emitter, h.dispatcher, nopLogger(), nil)
	_, err := delivery.SendDirectMessage(context.Background(), alice.ID, DirectMessageInput{ReceiverID: bob.ID, Content: "hi"})
	assert.Error(t, err)

	assert.Empty(t, h.emitter.all("a1"))
	assert.Empty(t, h.emitter.all("b1"))
	assert.Empty(t, h.pushed())
}

func TestSendDirectMessage_InvalidRecipient(t *testing.T) {
	h := newHarness(t)
	_, err := h.delivery.SendDirectMessage(context.Background(), uuid.New(), DirectMessageInput{Content: "hi"})
	assert.ErrorIs(t, err, ErrInvalidRecipient)
}

func TestSend_RejectsNonClientMessageTypes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	alice := testdb.CreateUser(t, h.db, "Alice")
	bob := testdb.CreateUser(t, h.db, "Bob")
	channel := testdb.CreateChannel(t, h.db, "general", alice.ID, bob.ID)
	h.connect(bob.ID, "b1")

	for _, messageType := range []model.MessageType{model.MessageTypeCall, "sticker"} {
		_, err := h.delivery.SendDirectMessage(ctx, alice.ID, DirectMessageInput{
			ReceiverID:  bob.ID,
			Content:     "Video call",
			MessageType: messageType,
		})
		assert.ErrorIs(t, err, ErrInvalidMessageType, messageType)

		_, err = h.delivery.SendChannelMessage(ctx, alice.ID, ChannelMessageInput{
			ChannelID:   channel.ID,
			Content:     "Video call",
			MessageType: messageType,
		})
		assert.ErrorIs(t, err, ErrInvalidMessageType, messageType)
	}

	var stored int64
	require.NoError(t, h.db.Model(&model.Message{}).Count(&stored).Error)
	assert.Zero(t, stored)
	assert.Empty(t, h.emitter.all("b1"))

	_, err := h.delivery.SendDirectMessage(ctx, alice.ID, DirectMessageInput{
		ReceiverID:  bob.ID,
		Content:     "https://files.example/a.png",
		MessageType: model.MessageTypeFile,
	})
	assert.NoError(t, err)
}

func TestSendChannelMessage_MixedPresence(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	alice := testdb.CreateUser(t, h.db, "Alice")
	bob := testdb.CreateUser(t, h.db, "Bob")
	dan := testdb.CreateUser(t, h.db, "Dan")
	testdb.AddPushToken(t, h.db, alice.ID, "alice-phone")
	testdb.AddPushToken(t, h.db, bob.ID, "bob-phone")
	testdb.AddPushToken(t, h.db, dan.ID, "dan-phone")
	channel := testdb.CreateChannel(t, h.db, "general", alice.ID, bob.ID, dan.ID)

	h.connect(bob.ID, "b1", "b2")

	msg, err := h.delivery.SendChannelMessage(ctx, alice.ID, ChannelMessageInput{ChannelID: channel.ID, Content: "standup"})
	require.NoError(t, err)
	require.NotNil(t, msg.ChannelID)
	assert.Nil(t, msg.ReceiverID)

	for _, conn := range []string{"b1", "b2"} {
		got := h.emitter.received(conn, realtime.EventReceiveChannelMessage)
		require.Len(t, got, 1, conn)
		assert.Equal(t, "standup", got[0].(realtime.MessageView).Content)
	}

	pushes := h.pushed()
	require.Len(t, pushes, 1)
	assert.Equal(t, []string{"dan-phone"}, pushes[0].Tokens)
	assert.Equal(t, "Alice in general", pushes[0].Title)
	assert.Equal(t, "standup", pushes[0].Body)
	assert.Equal(t, "channel", pushes[0].Data["type"])
	assert.Equal(t, channel.ID.String(), pushes[0].Data["channelId"])

	var indexed int64
	require.NoError(t, h.db.Model(&model.ChannelMessage{}).Where("message_id = ?", msg.ID).Count(&indexed).Error)
	assert.Equal(t, int64(1), indexed)
}

func TestSendChannelMessage_SenderEcho(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	alice := testdb.CreateUser(t, h.db, "Alice")
	bob := testdb.CreateUser(t, h.db, "Bob")
	channel := testdb.CreateChannel(t, h.db, "general", alice.ID, bob.ID)

	h.connect(alice.ID, "a1")
	h.connect(bob.ID, "b1")

	_, err := h.delivery.SendChannelMessage(ctx, bob.ID, ChannelMessageInput{ChannelID: channel.ID, Content: "hello"})
	require.NoError(t, err)

	assert.Len(t, h.emitter.received("a1", realtime.EventReceiveChannelMessage), 1)
	assert.Len(t, h.emitter.received("b1", realtime.EventReceiveChannelMessage), 1)
	assert.Empty(t, h.pushed())
}

func TestSendChannelMessage_ChannelNotFound(t *testing.T) {
	h := newHarness(t)
	alice := testdb.CreateUser(t, h.db, "Alice")
	h.connect(alice.ID, "a1")

	_, err := h.delivery.SendChannelMessage(context.Background(), alice.ID, ChannelMessageInput{ChannelID: uuid.New(), Content: "hello"})
	assert.ErrorIs(t, err, ErrChannelNotFound)
	assert.Empty(t, h.emitter.all("a1"))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 100))
	assert.Equal(t, "ab", truncateRunes("abc", 2))
	assert.Equal(t, "여보", truncateRunes("여보세요", 2))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "a.png", fileName("https://x.example/dir/a.png?token=1"))
	assert.Equal(t, "b.txt", fileName("uploads/b.txt"))
}
