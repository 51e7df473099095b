package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"card_pricer/internal/domain"
	"card_pricer/internal/transport/bot/view"
	"card_pricer/internal/transport/queue"
	"card_pricer/pkg/errcodes"
)

const historyDepth = 5

func (h *Handler) OnStart(ctx *th.Context, msg telego.Message) error {
	return h.sendHTML(ctx, msg.Chat.ID, view.StartMessage)
}

func (h *Handler) OnStatus(ctx *th.Context, msg telego.Message) error {
	return h.sendHTML(ctx, msg.Chat.ID, view.FormatStatus(h.status.IsRunning(), h.status.Progress()))
}

// OnPrice показывает последние оценки карточки.
// Использование: /price <uuid>
func (h *Handler) OnPrice(ctx *th.Context, msg telego.Message) error {
	ids, bad := view.ParseIDs(strings.Fields(msg.Text)[1:])
	if len(ids) != 1 || len(bad) > 0 {
		return h.sendHTML(ctx, msg.Chat.ID, view.PriceUsage)
	}

	card, err := h.cards.GetByID(ctx, ids[0])
	if err != nil {
		if domain.HasCode(err, errcodes.CardNotFound) {
			return h.sendHTML(ctx, msg.Chat.ID, view.CardNotFound)
		}
		return h.sendError(ctx, msg.Chat.ID, err)
	}

	history, err := h.valuations.History(ctx, card.ID, historyDepth)
	if err != nil {
		return h.sendError(ctx, msg.Chat.ID, err)
	}

	return h.sendHTML(ctx, msg.Chat.ID, view.FormatCard(*card, history))
}

// OnRefresh ставит обновление в очередь: без аргументов обновляются все
// устаревшие карточки.
// Использование: /refresh [uuid ...]
func (h *Handler) OnRefresh(ctx *th.Context, msg telego.Message) error {
	ids, bad := view.ParseIDs(strings.Fields(msg.Text)[1:])
	if len(bad) > 0 {
		return h.sendHTML(ctx, msg.Chat.ID, fmt.Sprintf(view.InvalidIDs, strings.Join(bad, ", ")))
	}

	taskID, err := h.enqueuer.EnqueueRefresh(ctx, ids)
	if err != nil {
		if errors.Is(err, queue.ErrAlreadyQueued) {
			return h.sendHTML(ctx, msg.Chat.ID, view.RefreshAlreadyQueued)
		}
		return h.sendError(ctx, msg.Chat.ID, err)
	}

	return h.sendHTML(ctx, msg.Chat.ID, fmt.Sprintf(view.RefreshQueued, taskID))
}

func (h *Handler) sendHTML(ctx *th.Context, chatID int64, text string) error {
	_, err := ctx.Bot().SendMessage(ctx, &telego.SendMessageParams{
		ChatID:    telego.ChatID{ID: chatID},
		Text:      text,
		ParseMode: telego.ModeHTML,
	})
	return err
}

func (h *Handler) sendError(ctx *th.Context, chatID int64, err error) error {
	if sendErr := h.sendHTML(ctx, chatID, view.InternalError); sendErr != nil {
		return errors.Join(err, sendErr)
	}
	return err
}
