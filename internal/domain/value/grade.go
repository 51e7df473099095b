package value

import (
	"fmt"
	"regexp"
	"strings"

	"card_pricer/internal/domain"
	"card_pricer/pkg/errcodes"
)

type Company string

const (
	CompanyPSA Company = "PSA"
	CompanyBGS Company = "BGS"
	CompanySGC Company = "SGC"
	CompanyCGC Company = "CGC"
)

var (
	gradeRe   = regexp.MustCompile(`(?i)\b(PSA|BGS|SGC|CGC)\s*-?\s*(10|[1-9](?:\.5)?)\b`)
	gradingRe = regexp.MustCompile(`(?i)\b(PSA|BGS|SGC|CGC|graded)\b`)
)

// ladders перечисляют оценки компании от высшей к низшей.
var ladders = map[Company][]string{
	CompanyPSA: {"10", "9", "8", "7", "6", "5", "4", "3", "2", "1"},
	CompanyBGS: {"10", "9.5", "9", "8.5", "8", "7.5", "7"},
	CompanySGC: {"10", "9.5", "9", "8.5", "8", "7"},
	CompanyCGC: {"10", "9.5", "9", "8.5", "8", "7"},
}

// Grade: оценка слаба грейдинговой компании, например PSA 10.
// Нулевое значение означает «сырую» карточку без слаба.
type Grade struct {
	Company Company
	Score   string
}

// ParseGrade разбирает строку вида "PSA 10" или "bgs 9.5". Пустая строка
// даёт нулевую оценку.
func ParseGrade(s string) (Grade, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Grade{}, nil
	}

	m := gradeRe.FindStringSubmatch(s)
	if m == nil || len(strings.TrimSpace(gradeRe.ReplaceAllString(s, ""))) > 0 {
		return Grade{}, domain.NewError(errcodes.InvalidGrade, fmt.Sprintf("unrecognized grade %q", s))
	}

	return Grade{Company: Company(strings.ToUpper(m[1])), Score: m[2]}, nil
}

// FindGrades возвращает все оценки, упомянутые в заголовке объявления.
func FindGrades(title string) []Grade {
	matches := gradeRe.FindAllStringSubmatch(title, -1)
	if len(matches) == 0 {
		return nil
	}

	grades := make([]Grade, 0, len(matches))
	for _, m := range matches {
		grades = append(grades, Grade{Company: Company(strings.ToUpper(m[1])), Score: m[2]})
	}

	return grades
}

// MentionsGrading сообщает, упоминает ли заголовок грейдинг вообще.
func MentionsGrading(title string) bool {
	return gradingRe.MatchString(title)
}

func (g Grade) IsZero() bool {
	return g.Company == ""
}

func (g Grade) String() string {
	if g.IsZero() {
		return ""
	}
	return string(g.Company) + " " + g.Score
}

// Others возвращает остальные оценки той же компании.
func (g Grade) Others() []Grade {
	others := make([]Grade, 0, len(ladders[g.Company]))
	for _, score := range ladders[g.Company] {
		if score != g.Score {
			others = append(others, Grade{Company: g.Company, Score: score})
		}
	}
	return others
}

func (c Company) Known() bool {
	_, ok := ladders[c]
	return ok
}

// ProbeLadder: верхние ступени шкалы компании, которые стоит проверять
// при оценке карточки сразу в нескольких грейдах.
func ProbeLadder(company Company) []Grade {
	scores := ladders[company]
	if len(scores) > 3 {
		scores = scores[:3]
	}

	grades := make([]Grade, 0, len(scores))
	for _, score := range scores {
		grades = append(grades, Grade{Company: company, Score: score})
	}
	return grades
}

func (g Grade) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

func (g *Grade) UnmarshalText(text []byte) error {
	parsed, err := ParseGrade(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
