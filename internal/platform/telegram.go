package platform

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"postpilot/internal/post"
)

// TelegramConfig configures the Telegram channel publisher.
type TelegramConfig struct {
	Token  string
	ChatID int64 // target channel or group
}

// TelegramAdapter publishes text and photo posts to a Telegram chat.
type TelegramAdapter struct {
	cfg TelegramConfig
	bot *tele.Bot
}

func NewTelegram(cfg TelegramConfig) (*TelegramAdapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	return &TelegramAdapter{cfg: cfg, bot: b}, nil
}

func (a *TelegramAdapter) Name() post.Platform { return post.PlatformTelegram }

func (a *TelegramAdapter) Publish(ctx context.Context, p post.Post) (PublishResult, error) {
	_ = ctx // telebot manages its own request timeouts

	to := tele.ChatID(a.cfg.ChatID)

	var msg *tele.Message
	var err error
	switch p.ContentType {
	case post.TypeText:
		msg, err = a.bot.Send(to, p.Content.Text("text"))
	case post.TypePhoto:
		photo := &tele.Photo{
			File:    tele.FromDisk(p.Content.Text("image_path")),
			Caption: p.Content.Text("caption"),
		}
		msg, err = a.bot.Send(to, photo)
	default:
		return PublishResult{}, Errf(post.ClassMalformedPayload, "unsupported content type %s", p.ContentType)
	}
	if err != nil {
		return PublishResult{}, classifyTelegram(err)
	}

	return PublishResult{
		ExternalID:  strconv.Itoa(msg.ID),
		ExternalURL: messageURL(msg),
	}, nil
}

func classifyTelegram(err error) *PublishError {
	var flood *tele.FloodError
	if errors.As(err, &flood) {
		return &PublishError{
			Class: post.ClassRateLimit,
			Cause: fmt.Sprintf("flood limit, retry after %s", time.Duration(flood.RetryAfter)*time.Second),
			Err:   err,
		}
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		class := post.ClassMalformedPayload
		if apiErr.Code == 401 || apiErr.Code == 403 {
			class = post.ClassAuthentication
		}
		return &PublishError{Class: class, Cause: apiErr.Description, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return &PublishError{Class: post.ClassTransientNetwork, Cause: "telegram unreachable", Err: err}
	}
	return &PublishError{Class: post.ClassUnknown, Cause: "send failed", Err: err}
}

// messageURL builds a t.me link for public chats; private chats have no
// stable public URL.
func messageURL(m *tele.Message) string {
	if m == nil || m.Chat == nil || m.Chat.Username == "" {
		return ""
	}
	return fmt.Sprintf("https://t.me/%s/%d", m.Chat.Username, m.ID)
}
