package notifier

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"card_pricer/internal/domain/service/refresh"
)

type messageSender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// TelegramBot отправляет сводку обновления в чат.
type TelegramBot struct {
	bot    messageSender
	chatID int64
}

func NewTelegramBot(token string, chatID int64) (*TelegramBot, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	return &TelegramBot{
		bot:    bot,
		chatID: chatID,
	}, nil
}

func (b *TelegramBot) NotifyRefresh(ctx context.Context, s refresh.Summary) error {
	if s.Cards == 0 {
		return nil
	}

	msg := tu.Message(
		tu.ID(b.chatID),
		FormatSummary(s),
	).WithParseMode(telego.ModeHTML)

	if _, err := b.bot.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	logger(ctx).Debug("refresh summary sent", "chat", b.chatID)

	return nil
}

// SendText отправляет простое текстовое сообщение.
func (b *TelegramBot) SendText(ctx context.Context, text string) error {
	msg := tu.Message(tu.ID(b.chatID), text)

	_, err := b.bot.SendMessage(ctx, msg)
	return err
}

func FormatSummary(s refresh.Summary) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "<b>Card prices refreshed</b>\n\n")
	fmt.Fprintf(&sb, "Cards: %d\n", s.Cards)
	fmt.Fprintf(&sb, "Refreshed: %d (cached %d)\n", s.Refreshed+s.FromCache, s.FromCache)
	fmt.Fprintf(&sb, "No sales: %d\n", s.NotFound)
	if s.Failed > 0 {
		fmt.Fprintf(&sb, "Not refreshed: %d\n", s.Failed)
	}
	fmt.Fprintf(&sb, "Took: %s\n", s.Duration.Round(time.Second))

	if len(s.Movers) > 0 {
		sb.WriteString("\n<b>Biggest moves</b>\n")
		for _, m := range s.Movers {
			fmt.Fprintf(&sb, "%s: $%.2f → $%.2f (%+.1f%%, %s)\n",
				html.EscapeString(m.Name), m.Old, m.New, m.Percent(), m.Confidence)
		}
	}

	return sb.String()
}
