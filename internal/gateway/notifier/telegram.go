package notifier

import (
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"trendpilot/internal/logger"
)

const sendAttempts = 3

// Telegram 把成交通知推送到指定会话。
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	// retryInterval 为首次重试间隔，之后指数增长。
	retryInterval time.Duration
}

// NewTelegram 连接 Bot API（会调用一次 getMe 校验 token）。
func NewTelegram(botToken string, chatID int64) (*Telegram, error) {
	return NewTelegramWithEndpoint(botToken, chatID, tgbotapi.APIEndpoint, &http.Client{Timeout: 15 * time.Second})
}

// NewTelegramWithEndpoint 允许替换 API 地址，endpoint 形如 https://host/bot%s/%s。
func NewTelegramWithEndpoint(botToken string, chatID int64, endpoint string, client *http.Client) (*Telegram, error) {
	if botToken == "" || chatID == 0 {
		return nil, fmt.Errorf("Telegram 配置不完整")
	}
	bot, err := tgbotapi.NewBotAPIWithClient(botToken, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	logger.Infof("Telegram 通知已启用: @%s -> %d", bot.Self.UserName, chatID)
	return &Telegram{bot: bot, chatID: chatID, retryInterval: time.Second}, nil
}

// SendText 发送 Markdown 文本，最多尝试 3 次。
func (t *Telegram) SendText(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = t.retryInterval
	op := func() error {
		_, err := t.bot.Send(msg)
		return err
	}
	return backoff.RetryNotify(op, backoff.WithMaxRetries(policy, sendAttempts-1), func(err error, wait time.Duration) {
		logger.Warnf("Telegram 发送失败，%s 后重试: %v", wait.Truncate(time.Millisecond), err)
	})
}
