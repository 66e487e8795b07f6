package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

const (
	msgNotSubscribed = "👋 *Привет, %s!*\n\n🔐 Чтобы получить доступ к платформе, нужно быть подписан(а) на канал.\n\n👉 Подпишись: [перейти к каналу](%s)\n\nЗатем вернись сюда и напиши /start ещё раз."
	msgLoginLink     = "✅ *Отлично!*\nВот твоя персональная ссылка для входа:\n\n👉 [Войти на платформу](%s)\n\n🔥 Увидимся внутри!"
	msgIssueFailed   = "❌ Произошла ошибка при генерации ссылки."
)

// LoginIssuer выдает одноразовые токены входа
type LoginIssuer interface {
	IssueLoginToken(ctx context.Context, telegramID int64) (string, error)
}

// MembershipChecker возвращает статус пользователя в канале
type MembershipChecker interface {
	MemberStatus(channel string, userID int64) (string, error)
}

// Settings - параметры бота
type Settings struct {
	Token       string
	Channel     string
	AppURL      string
	PollTimeout time.Duration
}

// Bot - бот входа: проверяет подписку на канал и выдает ссылку входа
type Bot struct {
	bot      *tele.Bot
	issuer   LoginIssuer
	members  MembershipChecker
	channel  string
	appURL   string
	issueTTL time.Duration
}

// NewBot создает бота с long polling
func NewBot(s Settings, issuer LoginIssuer) (*Bot, error) {
	if s.Token == "" {
		return nil, errors.New("telegram bot token is required")
	}
	if issuer == nil {
		return nil, errors.New("login issuer is required")
	}
	if s.PollTimeout <= 0 {
		s.PollTimeout = 10 * time.Second
	}

	tb, err := tele.NewBot(tele.Settings{
		Token:  s.Token,
		Poller: &tele.LongPoller{Timeout: s.PollTimeout},
		OnError: func(err error, c tele.Context) {
			if c != nil && c.Sender() != nil {
				log.Printf("[TelegramBot] Ошибка обработки апдейта от %d: %v", c.Sender().ID, err)
				return
			}
			log.Printf("[TelegramBot] Ошибка: %v", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	b := newBot(issuer, &chatMembers{bot: tb}, s.Channel, s.AppURL)
	b.bot = tb
	tb.Use(recoverMiddleware)
	tb.Handle("/start", b.handleStart)
	return b, nil
}

func newBot(issuer LoginIssuer, members MembershipChecker, channel, appURL string) *Bot {
	return &Bot{
		issuer:   issuer,
		members:  members,
		channel:  channel,
		appURL:   strings.TrimRight(appURL, "/"),
		issueTTL: 5 * time.Second,
	}
}

// Start запускает опрос и блокируется до Stop
func (b *Bot) Start() {
	log.Printf("[TelegramBot] Бот @%s запущен", b.bot.Me.Username)
	b.bot.Start()
}

// Stop останавливает опрос
func (b *Bot) Stop() {
	b.bot.Stop()
	log.Println("[TelegramBot] Бот остановлен")
}

// handleStart обрабатывает /start
func (b *Bot) handleStart(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	if !b.isSubscribed(sender.ID) {
		name := sender.FirstName
		if name == "" {
			name = "друг"
		}
		return c.Send(fmt.Sprintf(msgNotSubscribed, escapeMarkdown(name), channelLink(b.channel)), tele.ModeMarkdown)
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.issueTTL)
	defer cancel()

	token, err := b.issuer.IssueLoginToken(ctx, sender.ID)
	if err != nil {
		log.Printf("[TelegramBot] Ошибка выдачи токена для %d: %v", sender.ID, err)
		return c.Send(msgIssueFailed)
	}

	log.Printf("[TelegramBot] Выдана ссылка входа пользователю %d", sender.ID)
	return c.Send(fmt.Sprintf(msgLoginLink, buildAuthLink(b.appURL, token)), tele.ModeMarkdown)
}

// isSubscribed проверяет подписку; ошибка проверки означает отказ
func (b *Bot) isSubscribed(userID int64) bool {
	status, err := b.members.MemberStatus(b.channel, userID)
	if err != nil {
		log.Printf("[TelegramBot] Ошибка проверки подписки %d на %s: %v", userID, b.channel, err)
		return false
	}
	return isActiveMember(status)
}

// isActiveMember сообщает, дает ли статус в канале доступ к платформе
func isActiveMember(status string) bool {
	switch tele.MemberStatus(status) {
	case tele.Member, tele.Administrator, tele.Creator:
		return true
	}
	return false
}

var markdownEscaper = strings.NewReplacer("\\", "\\\\", "_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// escapeMarkdown экранирует пользовательский текст для ModeMarkdown
func escapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}

// buildAuthLink собирает ссылку входа на фронтенд
func buildAuthLink(appURL, token string) string {
	return fmt.Sprintf("%s/auth?token=%s", strings.TrimRight(appURL, "/"), url.QueryEscape(token))
}

// channelLink превращает @username канала в ссылку t.me
func channelLink(channel string) string {
	return "https://t.me/" + strings.TrimPrefix(channel, "@")
}

// chatMembers проверяет членство через Bot API getChatMember
type chatMembers struct {
	bot *tele.Bot
}

func (m *chatMembers) MemberStatus(channel string, userID int64) (string, error) {
	chat, err := m.bot.ChatByUsername(channel)
	if err != nil {
		return "", fmt.Errorf("resolve channel %s: %w", channel, err)
	}
	member, err := m.bot.ChatMemberOf(chat, &tele.User{ID: userID})
	if err != nil {
		return "", fmt.Errorf("get chat member: %w", err)
	}
	return string(member.Role), nil
}

// recoverMiddleware не дает панике в обработчике остановить опрос
func recoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[TelegramBot] Паника в обработчике: %v", r)
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return next(c)
	}
}
