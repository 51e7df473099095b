package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/require"

	"card_pricer/internal/domain/entity"
	"card_pricer/internal/domain/service/refresh"
)

type fakeSender struct {
	sent []*telego.SendMessageParams
	err  error
}

func (f *fakeSender) SendMessage(_ context.Context, p *telego.SendMessageParams) (*telego.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, p)
	return &telego.Message{}, nil
}

func TestFormatSummary(t *testing.T) {
	rq := require.New(t)

	text := FormatSummary(refresh.Summary{
		Cards:     10,
		Refreshed: 7,
		FromCache: 1,
		NotFound:  2,
		Failed:    2,
		Duration:  95 * time.Second,
		Movers: []refresh.Mover{
			{Name: "Bedard <YG>", Old: 40, New: 50, Confidence: entity.ConfidenceHigh},
		},
	})

	rq.Contains(text, "Cards: 10\n")
	rq.Contains(text, "Refreshed: 8 (cached 1)\n")
	rq.Contains(text, "No sales: 2\n")
	rq.Contains(text, "Not refreshed: 2\n")
	rq.Contains(text, "Took: 1m35s\n")
	rq.Contains(text, "Bedard &lt;YG&gt;: $40.00 → $50.00 (+25.0%, high)")
}

func TestNotifyRefresh(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	sender := &fakeSender{}
	bot := &TelegramBot{bot: sender, chatID: 42}

	rq.NoError(bot.NotifyRefresh(ctx, refresh.Summary{}))
	rq.Empty(sender.sent)

	rq.NoError(bot.NotifyRefresh(ctx, refresh.Summary{Cards: 1, Refreshed: 1}))
	rq.Len(sender.sent, 1)
	rq.Equal(telego.ModeHTML, sender.sent[0].ParseMode)
	rq.Equal(int64(42), sender.sent[0].ChatID.ID)

	sender.err = errors.New("chat not found")
	rq.Error(bot.NotifyRefresh(ctx, refresh.Summary{Cards: 1}))
}
