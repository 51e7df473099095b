package view

import (
	"fmt"
	"html"
	"strings"

	"github.com/google/uuid"

	"card_pricer/internal/domain/entity"
	"card_pricer/internal/worker"
	"card_pricer/pkg/lox"
)

const (
	StartMessage = "<b>Card pricer</b>\n\n" +
		"/status — состояние планировщика\n" +
		"/price <code>ID</code> — последние оценки карточки\n" +
		"/refresh [<code>ID</code> ...] — обновить карточки (без аргументов — все устаревшие)"

	PriceUsage           = "❌ Использование: /price <code>ID</code>"
	InvalidIDs           = "❌ Неверный формат ID: %s"
	CardNotFound         = "⚠️ Карточка не найдена"
	RefreshQueued        = "✅ Обновление поставлено в очередь, задача <code>%s</code>"
	RefreshAlreadyQueued = "⚠️ Такое обновление уже в очереди"
	InternalError        = "❌ Внутренняя ошибка, подробности в логах"
)

func FormatStatus(running bool, p worker.Progress) string {
	state := "🔴 простаивает"
	if running {
		state = "🟢 работает"
	}

	return fmt.Sprintf(
		"📊 <b>Статус</b>\n\n"+
			"Планировщик: %s\n"+
			"Пакет: %d/%d\n"+
			"Найдено: %d, без продаж: %d, ошибок: %d",
		state, p.Done, p.Total, p.Found, p.NotFound, p.Errors,
	)
}

func FormatCard(card entity.Card, history []entity.Valuation) string {
	var sb strings.Builder

	name := card.Name
	if name == "" {
		name = card.Query.String()
	}
	fmt.Fprintf(&sb, "🃏 <b>%s</b>\n", html.EscapeString(name))

	if len(history) == 0 {
		sb.WriteString("\nОценок ещё нет")
		return sb.String()
	}

	last := history[0].Result
	fmt.Fprintf(&sb, "\n💰 <b>$%.2f</b> (%s, продаж: %d, тренд: %s)\n",
		last.EstimatedValue, last.Confidence, last.Stats.NumSales, trend(last.Stats.Trend))

	if last.Comp != nil {
		fmt.Fprintf(&sb, "Оценено по /%d: $%.2f × %.2f\n", last.Comp.SourceSerial, last.Comp.SourcePrice, last.Comp.Multiplier)
	}

	if last.SearchURL != "" {
		fmt.Fprintf(&sb, "<a href=\"%s\">Продажи</a>\n", html.EscapeString(last.SearchURL))
	}

	if len(history) > 1 {
		sb.WriteString("\n<b>История</b>\n")
		for _, v := range history {
			fmt.Fprintf(&sb, "%s  $%.2f  %s\n", v.CreatedAt.Format("2006-01-02"), v.Result.EstimatedValue, v.Result.Confidence)
		}
	}

	return sb.String()
}

// ParseIDs разбирает аргументы команды, возвращая нераспознанные отдельно.
func ParseIDs(args []string) ([]uuid.UUID, []string) {
	return lox.Partition(args, uuid.Parse)
}

func trend(t entity.Trend) string {
	switch t {
	case entity.TrendUp:
		return "📈"
	case entity.TrendDown:
		return "📉"
	default:
		return "➡️"
	}
}
