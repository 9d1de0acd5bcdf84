package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Talha-Khalil/bet-you-can-t/internal/models"
	"github.com/Talha-Khalil/bet-you-can-t/internal/repository"
	"github.com/Talha-Khalil/bet-you-can-t/internal/service"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

func command(chatID int64, text string) tgbotapi.Update {
	end := len(text)
	for i, r := range text {
		if r == ' ' {
			end = i
			break
		}
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: chatID},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}},
	}}
}

func newBot(t *testing.T) (*BotHandler, *fakeSender, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sender := &fakeSender{}
	svc := service.NewService(repository.NewRepository(db), zap.NewNop())
	return NewBotHandler(sender, svc, zap.NewNop()), sender, mock
}

func TestBot_Feed(t *testing.T) {
	h, sender, mock := newBot(t)
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`LIMIT \$1`).WithArgs(service.FeedLimit).
		WillReturnRows(sqlmock.NewRows(feedCols).
			AddRow("ch-1", "Run 5k every day", "Red Cross", t0, "PENDING", "u1", "u2", t0, "Alice", "a@x.com", nil, "b@x.com"))

	h.HandleUpdate(context.Background(), command(42, "/feed"))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(42), sender.sent[0].ChatID)
	assert.Contains(t, sender.sent[0].Text, "⏳ Run 5k every day")
	assert.Contains(t, sender.sent[0].Text, "Alice challenged b@x.com")
	assert.Contains(t, sender.sent[0].Text, "Jan 1, 2025 | 💚 Red Cross")
}

func TestBot_FeedEmpty(t *testing.T) {
	h, sender, mock := newBot(t)
	mock.ExpectQuery(`LIMIT \$1`).WillReturnRows(sqlmock.NewRows(feedCols))

	h.HandleUpdate(context.Background(), command(42, "/feed"))

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Text, "No challenges yet")
}

func TestBot_FeedStoreFailure(t *testing.T) {
	h, sender, mock := newBot(t)
	mock.ExpectQuery(`SELECT`).WillReturnError(errors.New("connection refused"))

	h.HandleUpdate(context.Background(), command(42, "/feed"))

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Text, "❌")
}

func TestBot_IgnoresPlainText(t *testing.T) {
	h, sender, _ := newBot(t)

	h.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		Text: "hello",
		Chat: &tgbotapi.Chat{ID: 42},
	}})
	h.HandleUpdate(context.Background(), tgbotapi.Update{})

	assert.Empty(t, sender.sent)
}

func TestBot_StartAndHelp(t *testing.T) {
	h, sender, _ := newBot(t)

	h.HandleUpdate(context.Background(), command(1, "/start"))
	h.HandleUpdate(context.Background(), command(1, "/help"))

	require.Len(t, sender.sent, 2)
	assert.Contains(t, sender.sent[0].Text, "/feed")
	assert.Contains(t, sender.sent[1].Text, "/feed")
}

func TestBot_RunStopsOnCancel(t *testing.T) {
	h, _, _ := newBot(t)
	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan tgbotapi.Update)

	done := make(chan struct{})
	go func() {
		h.Run(ctx, updates)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestAnnouncer(t *testing.T) {
	sender := &fakeSender{}
	a := NewAnnouncer(sender, -100, zap.NewNop())
	alice, charity := "Alice", "Red Cross"

	a.ChallengeCreated(context.Background(), models.ChallengeCreated{
		Challenge: models.Challenge{
			ID:          "ch-1",
			Description: "Run 5k every day",
			Charity:     &charity,
			Deadline:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		Challenger: models.User{Email: "a@x.com", Name: &alice},
		Challenged: models.User{Email: "b@x.com"},
	})

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, int64(-100), msg.ChatID)
	assert.Contains(t, msg.Text, "Alice challenged b@x.com")
	assert.Contains(t, msg.Text, "Deadline: Jan 1, 2025")
	assert.Contains(t, msg.Text, "💚 Charity: Red Cross")
}

func TestAnnouncer_SendFailureIsSwallowed(t *testing.T) {
	sender := &fakeSender{err: errors.New("forbidden")}
	a := NewAnnouncer(sender, -100, zap.NewNop())

	assert.NotPanics(t, func() {
		a.ChallengeCreated(context.Background(), models.ChallengeCreated{})
	})
}
