package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"card_pricer/internal/domain/entity"
	"card_pricer/internal/domain/value"
)

var lotRe = regexp.MustCompile(`(?i)\b(lot|lots|bundle|mixed grades?)\b`)

// Normalizer превращает сырые строки выдачи в продажи. Ошибки разбора
// локальны: строка отбрасывается и учитывается в Diagnostics.
type Normalizer struct {
	now func() time.Time
}

func New() *Normalizer {
	return &Normalizer{now: time.Now}
}

func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	n.now = now
	return n
}

// Normalize фильтрует и разбирает объявления для карточки на заданной
// стадии. На стадиях 1–3 объявление другого тиража отбрасывается; на стадии
// сравнения тиражей, наоборот, нужен другой тираж той же карточки.
func (n *Normalizer) Normalize(
	card entity.CardQuery,
	stage entity.Stage,
	listings []entity.Listing,
) ([]entity.Sale, entity.Diagnostics) {
	now := n.now()
	diag := entity.Diagnostics{Listings: len(listings)}
	sales := make([]entity.Sale, 0, len(listings))

	for _, l := range listings {
		title := strings.Join(strings.Fields(l.Title), " ")
		if title == "" {
			diag.Malformed++
			continue
		}

		if lotRe.MatchString(title) {
			diag.Lots++
			continue
		}

		if !mentionsPlayer(title, card) {
			diag.OtherCard++
			continue
		}

		if !GradeMatches(card.Grade, title) {
			diag.GradeMismatch++
			continue
		}

		serial := ExtractSerial(title)
		if stage == entity.StageCompProbe {
			if !MentionsNumber(title, card.CardNumber) {
				diag.OtherCard++
				continue
			}
		} else if serial != card.Serial && (serial != 0 || !card.IsNumbered()) {
			diag.SerialMismatch++
			continue
		}

		itemPrice, err := ParsePrice(l.Price)
		if err != nil {
			diag.BadPrice++
			continue
		}

		soldDate, err := ParseSoldDate(l.SoldDate, now)
		if err != nil {
			diag.BadDate++
			continue
		}

		shipping := ParseShipping(l.Shipping)
		total := decimal.NewFromFloat(itemPrice).Add(decimal.NewFromFloat(shipping)).Round(2)

		sales = append(sales, entity.Sale{
			Title:      title,
			Price:      total.InexactFloat64(),
			ItemPrice:  itemPrice,
			Shipping:   shipping,
			SoldDate:   soldDate,
			DaysAgo:    DaysAgo(soldDate, now),
			ListingURL: CleanURL(l.ListingURL),
			ImageURL:   strings.TrimSpace(l.ImageURL),
			Grade:      gradeOf(title),
			Serial:     serial,
		})
		diag.Accepted++
	}

	return sales, diag
}

// GradeMatches: грейженая карточка требует точной оценки в заголовке и
// отсутствия любых других оценок; сырая карточка не должна упоминать
// грейдинг вовсе.
func GradeMatches(target value.Grade, title string) bool {
	if target.IsZero() {
		return !value.MentionsGrading(title)
	}

	found := false
	for _, g := range value.FindGrades(title) {
		if g != target {
			return false
		}
		found = true
	}

	return found
}

// MentionsNumber проверяет номер карточки в заголовке, не путая его с
// тиражом ("/201").
func MentionsNumber(title, number string) bool {
	number = strings.TrimLeft(strings.TrimPrefix(strings.TrimSpace(number), "#"), "0")
	if number == "" {
		return true
	}

	re := regexp.MustCompile(`(?i)(?:^|[^\w/])(?:#|no\.?\s?)?0*` + regexp.QuoteMeta(number) + `(?:$|[^\w/])`)
	return re.MatchString(title)
}

func mentionsPlayer(title string, card entity.CardQuery) bool {
	last := card.LastName()
	if last == "" {
		return true
	}
	return strings.Contains(strings.ToLower(title), strings.ToLower(last))
}

func gradeOf(title string) value.Grade {
	grades := value.FindGrades(title)
	if len(grades) == 0 {
		return value.Grade{}
	}
	return grades[0]
}
