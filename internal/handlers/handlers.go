package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Talha-Khalil/bet-you-can-t/internal/models"
	"github.com/Talha-Khalil/bet-you-can-t/internal/service"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Sender is the part of *tgbotapi.BotAPI the bot needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type BotHandler struct {
	bot     Sender
	service *service.Service
	log     *zap.Logger
}

func NewBotHandler(bot Sender, service *service.Service, log *zap.Logger) *BotHandler {
	return &BotHandler{
		bot:     bot,
		service: service,
		log:     log,
	}
}

// Run handles updates until ctx is done or the channel is closed.
func (h *BotHandler) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			h.HandleUpdate(ctx, update)
		}
	}
}

func (h *BotHandler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	message := update.Message
	if message == nil || !message.IsCommand() {
		return
	}

	switch message.Command() {
	case "start":
		h.handleStart(message)
	case "help":
		h.handleHelp(message)
	case "feed":
		h.handleFeed(ctx, message)
	}
}

func (h *BotHandler) handleStart(message *tgbotapi.Message) {
	text := `👋 Hi! I post what people are challenging each other to do for charity.

🎯 How it works:
1. Sign in on the website
2. Challenge a friend by email, pick a charity and a deadline
3. Your friend gets notified
4. Every new challenge is announced here

📋 Commands:
/feed - Latest challenges
/help - Help`

	h.send(message.Chat.ID, text)
}

func (h *BotHandler) handleHelp(message *tgbotapi.Message) {
	text := `📖 Help

📋 Commands:
/feed - The latest challenges across everyone
/start - What this bot does

💡 Challenges are created on the website, not in chat.`

	h.send(message.Chat.ID, text)
}

func (h *BotHandler) handleFeed(ctx context.Context, message *tgbotapi.Message) {
	entries, err := h.service.Feed(ctx)
	if err != nil {
		h.send(message.Chat.ID, "❌ Could not load challenges, try again later.")
		return
	}

	if len(entries) == 0 {
		h.send(message.Chat.ID, "No challenges yet. Be the first to create a challenge and make a difference!")
		return
	}

	h.send(message.Chat.ID, FormatFeed(entries))
}

func (h *BotHandler) send(chatID int64, text string) {
	if _, err := h.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		h.log.Warn("Telegram send failed", zap.Int64("chat", chatID), zap.Error(err))
	}
}

// FormatFeed renders feed entries as a chat message.
func FormatFeed(entries []models.FeedEntry) string {
	var b strings.Builder
	b.WriteString("🏆 Latest challenges:\n\n")
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. %s %s\n   👤 %s challenged %s\n   📅 %s",
			i+1,
			statusEmoji(e.Status),
			e.Description,
			partyName(e.Challenger),
			partyName(e.Challenged),
			e.Deadline.Format("Jan 2, 2006"),
		)
		if e.Charity != nil && *e.Charity != "" {
			fmt.Fprintf(&b, " | 💚 %s", *e.Charity)
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

func partyName(p models.Party) string {
	if p.Name != nil && *p.Name != "" {
		return *p.Name
	}
	return p.Email
}

func statusEmoji(s models.ChallengeStatus) string {
	switch s {
	case models.StatusPending:
		return "⏳"
	case models.StatusAccepted:
		return "✅"
	case models.StatusDeclined:
		return "❌"
	case models.StatusArchived:
		return "📦"
	default:
		return "🔄"
	}
}

// Announcer posts every committed challenge to one chat.
type Announcer struct {
	bot    Sender
	chatID int64
	log    *zap.Logger
}

func NewAnnouncer(bot Sender, chatID int64, log *zap.Logger) *Announcer {
	return &Announcer{bot: bot, chatID: chatID, log: log}
}

func (a *Announcer) ChallengeCreated(_ context.Context, ev models.ChallengeCreated) {
	text := fmt.Sprintf(`📢 New challenge!

👤 %s challenged %s
🎯 %s
📅 Deadline: %s`,
		ev.Challenger.DisplayName(),
		ev.Challenged.DisplayName(),
		ev.Challenge.Description,
		ev.Challenge.Deadline.Format("Jan 2, 2006"),
	)
	if ev.Challenge.Charity != nil && *ev.Challenge.Charity != "" {
		text += "\n💚 Charity: " + *ev.Challenge.Charity
	}

	if _, err := a.bot.Send(tgbotapi.NewMessage(a.chatID, text)); err != nil {
		a.log.Warn("Failed to announce challenge", zap.String("id", ev.Challenge.ID), zap.Error(err))
	}
}
