package value

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // skip

//go:embed data/terms.json
var defaultTermsJSON []byte

type TermKind string

const (
	TermUnknown   TermKind = ""
	TermParallel  TermKind = "parallel"
	TermSubset    TermKind = "subset"
	TermMarketing TermKind = "marketing"
)

// Terms: таблица известных вариантов карточек: параллели, сабсеты,
// маркетинговые пометки и сокращения брендов для поисковой строки.
type Terms struct {
	Parallels    []string          `json:"parallels"`
	Subsets      []string          `json:"subsets"`
	Marketing    []string          `json:"marketing"`
	BrandAliases map[string]string `json:"brand_aliases"`

	kinds     map[string]TermKind
	marketing []*regexp.Regexp
	brands    []string
}

// DefaultTerms возвращает встроенную таблицу.
func DefaultTerms() Terms {
	terms, err := ParseTerms(defaultTermsJSON)
	if err != nil {
		panic(fmt.Sprintf("embedded terms: %v", err))
	}
	return terms
}

// LoadTerms читает таблицу из файла; пустой путь означает встроенную.
func LoadTerms(path string) (Terms, error) {
	if path == "" {
		return DefaultTerms(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Terms{}, fmt.Errorf("os.ReadFile: %w", err)
	}

	return ParseTerms(data)
}

func ParseTerms(data []byte) (Terms, error) {
	var t Terms
	if err := json.Unmarshal(data, &t); err != nil {
		return Terms{}, fmt.Errorf("json.Unmarshal: %w", err)
	}

	t.kinds = make(map[string]TermKind, len(t.Parallels)+len(t.Subsets)+len(t.Marketing))
	for _, s := range t.Parallels {
		t.kinds[normalizeTerm(s)] = TermParallel
	}
	for _, s := range t.Subsets {
		t.kinds[normalizeTerm(s)] = TermSubset
	}

	// Longest first so "Marquee Rookies" wins over "Rookies".
	marketing := append([]string(nil), t.Marketing...)
	sort.Slice(marketing, func(i, j int) bool { return len(marketing[i]) > len(marketing[j]) })
	for _, s := range marketing {
		t.kinds[normalizeTerm(s)] = TermMarketing
		t.marketing = append(t.marketing, regexp.MustCompile(`(?i)(^|\s)`+regexp.QuoteMeta(s)+`($|\s)`))
	}

	for brand := range t.BrandAliases {
		t.brands = append(t.brands, brand)
	}
	sort.Slice(t.brands, func(i, j int) bool { return len(t.brands[i]) > len(t.brands[j]) })

	return t, nil
}

// Kind классифицирует значение поля целиком.
func (t Terms) Kind(s string) TermKind {
	return t.kinds[normalizeTerm(s)]
}

// Strip вырезает маркетинговые пометки из текста.
func (t Terms) Strip(s string) string {
	for _, re := range t.marketing {
		for re.MatchString(s) {
			s = re.ReplaceAllString(s, " ")
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

// Brand заменяет название бренда его поисковым сокращением.
func (t Terms) Brand(s string) string {
	for _, brand := range t.brands {
		if idx := strings.Index(strings.ToLower(s), strings.ToLower(brand)); idx >= 0 {
			return strings.Join(strings.Fields(s[:idx]+t.BrandAliases[brand]+s[idx+len(brand):]), " ")
		}
	}
	return s
}

func normalizeTerm(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
