package notifier

import (
	"context"
	"fmt"
	"html"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Telegram struct {
	bot     *tgbotapi.BotAPI
	chatIDs []int64
}

func NewTelegram(botToken string, chatIDs []int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("notifier: telegram login: %w", err)
	}
	return &Telegram{bot: bot, chatIDs: chatIDs}, nil
}

// NewTelegramWithClient talks to a custom Bot API endpoint, formatted as
// "https://host/bot%s/%s".
func NewTelegramWithClient(botToken, endpoint string, client tgbotapi.HTTPClient, chatIDs []int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(botToken, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("notifier: telegram login: %w", err)
	}
	return &Telegram{bot: bot, chatIDs: chatIDs}, nil
}

func (t *Telegram) Notify(ctx context.Context, n Notification) error {
	text := formatMessage(n)

	for _, chatID := range t.chatIDs {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		if _, err := t.bot.Send(msg); err != nil {
			return fmt.Errorf("notifier: telegram chat %d: %w", chatID, err)
		}
	}

	return nil
}

func formatMessage(n Notification) string {
	icon := "📢"
	switch n.Prediction.Label.String() {
	case "Anti":
		icon = "⚠️"
	case "News":
		icon = "📰"
	}

	confidence := "n/a"
	if n.Prediction.Confidence > 0 {
		confidence = fmt.Sprintf("%.0f%%", n.Prediction.Confidence*100)
	}

	return fmt.Sprintf(`%s <b>%s tweet detected</b>

<b>Author:</b> %s
<b>Model:</b> %s
<b>Confidence:</b> %s

<b>Tweet:</b>
%s`,
		icon,
		n.Prediction.Label,
		html.EscapeString(n.Tweet.Author),
		html.EscapeString(n.Prediction.Model),
		confidence,
		html.EscapeString(n.Tweet.Content),
	)
}
