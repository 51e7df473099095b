package normalize

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var (
	ErrNoPrice = errors.New("no price")
	ErrNoDate  = errors.New("no date")
)

var (
	amountRe = regexp.MustCompile(`(\d{1,3}(?:,\d{3})+|\d+)(?:\.(\d{1,2}))?`)

	relativeRe = regexp.MustCompile(`(?i)^(\d+)\s*(m|min|mins|minutes?|h|hr|hrs|hours?|d|days?|w|wk|wks|weeks?)\s+ago$`)
	soldRe     = regexp.MustCompile(`(?i)^(?:sold\s+)?(?:on\s+)?`)

	serialRe = regexp.MustCompile(`(?:^|[\s(\[#])(\d{1,4}|#)?\s?/\s?(\d{1,4})\b`)

	// Query params that make the marketplace redirect to a catalog page.
	strippedParams = []string{"epid", "itmprp", "_skw"}
)

var absoluteLayouts = []string{
	"Jan 2, 2006",
	"Jan 2 2006",
	"January 2, 2006",
	"2006-01-02",
	"01/02/2006",
	"2 Jan 2006",
}

var yearlessLayouts = []string{
	"Jan 2",
	"January 2",
	"2 Jan",
}

// ParsePrice извлекает цену: символы валют отбрасываются, у диапазона
// берётся нижняя граница. Нулевая или отрицательная цена, ошибка.
func ParsePrice(s string) (float64, error) {
	s = strings.ReplaceAll(s, "Opens in a new window", "")

	matches := amountRe.FindAllString(s, -1)
	if len(matches) == 0 {
		return 0, ErrNoPrice
	}

	amounts := make([]decimal.Decimal, 0, len(matches))
	for _, m := range matches {
		d, err := decimal.NewFromString(strings.ReplaceAll(m, ",", ""))
		if err != nil {
			continue
		}
		amounts = append(amounts, d)
	}
	if len(amounts) == 0 {
		return 0, ErrNoPrice
	}

	lower := lo.MinBy(amounts, func(a, b decimal.Decimal) bool { return a.LessThan(b) })
	if !lower.IsPositive() {
		return 0, fmt.Errorf("non-positive price %s: %w", lower, ErrNoPrice)
	}

	return lower.Round(2).InexactFloat64(), nil
}

// ParseShipping возвращает стоимость доставки; бесплатная, отсутствующая или
// нераспознанная доставка считается нулевой.
func ParseShipping(s string) float64 {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || strings.Contains(s, "free") {
		return 0
	}

	m := amountRe.FindString(s)
	if m == "" {
		return 0
	}

	d, err := decimal.NewFromString(strings.ReplaceAll(m, ",", ""))
	if err != nil || d.IsNegative() {
		return 0
	}

	return d.Round(2).InexactFloat64()
}

// ParseSoldDate разбирает подпись вида "Sold Oct 3, 2025", "Oct 3",
// "2 days ago" или "yesterday" относительно now. Дата без года относится к
// текущему году, а если она в будущем, к предыдущему.
func ParseSoldDate(s string, now time.Time) (time.Time, error) {
	s = strings.Join(strings.Fields(soldRe.ReplaceAllString(strings.TrimSpace(s), "")), " ")
	if s == "" {
		return time.Time{}, ErrNoDate
	}

	today := truncateDay(now)

	switch strings.ToLower(s) {
	case "today", "just now":
		return today, nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	}

	if m := relativeRe.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, fmt.Errorf("strconv.Atoi: %w", err)
		}

		switch unit := strings.ToLower(m[2]); {
		case strings.HasPrefix(unit, "m"), strings.HasPrefix(unit, "h"):
			return truncateDay(now.Add(-relativeUnit(unit) * time.Duration(n))), nil
		case strings.HasPrefix(unit, "d"):
			return today.AddDate(0, 0, -n), nil
		default:
			return today.AddDate(0, 0, -7*n), nil
		}
	}

	s = strings.TrimSuffix(s, ".")
	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t, nil
		}
	}

	for _, layout := range yearlessLayouts {
		t, err := time.ParseInLocation(layout, s, now.Location())
		if err != nil {
			continue
		}

		t = time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location())
		if t.After(today) {
			t = t.AddDate(-1, 0, 0)
		}
		return t, nil
	}

	return time.Time{}, fmt.Errorf("unrecognized date %q: %w", s, ErrNoDate)
}

// DaysAgo: возраст продажи в полных днях, не меньше нуля.
func DaysAgo(sold, now time.Time) int {
	days := int(truncateDay(now).Sub(truncateDay(sold)).Hours() / 24)
	return max(days, 0)
}

// CleanURL убирает параметры, которые ведут на страницу каталога вместо
// объявления. Нераспознанный URL возвращается как есть.
func CleanURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	q := u.Query()
	for _, p := range strippedParams {
		q.Del(p)
	}
	u.RawQuery = q.Encode()

	return u.String()
}

// ExtractSerial возвращает знаменатель тиража из заголовка ("12/99",
// "/99", "#/25"), либо 0. Пары вроде "2023/24" тиражом не считаются.
func ExtractSerial(title string) int {
	for _, m := range serialRe.FindAllStringSubmatch(title, -1) {
		run, err := strconv.Atoi(m[2])
		if err != nil || run == 0 {
			continue
		}

		if m[1] != "" && m[1] != "#" {
			copyNo, err := strconv.Atoi(m[1])
			if err != nil || copyNo > run || copyNo == 0 {
				continue
			}
		}

		return run
	}

	return 0
}

func relativeUnit(unit string) time.Duration {
	if strings.HasPrefix(unit, "h") {
		return time.Hour
	}
	return time.Minute
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
