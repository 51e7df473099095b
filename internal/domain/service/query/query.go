package query

import (
	"strconv"
	"strings"

	"card_pricer/internal/domain/entity"
	"card_pricer/internal/domain/value"
)

// rawExclusions отсекает слабы в выдаче по «сырой» карточке.
var rawExclusions = []string{"-PSA", "-BGS", "-SGC", "-graded"}

type Builder struct {
	terms value.Terms
}

func NewBuilder(terms value.Terms) *Builder {
	return &Builder{terms: terms}
}

// Build возвращает ровно четыре запроса от самого точного к самому широкому.
func (b *Builder) Build(card entity.CardQuery) []entity.StagedQuery {
	return []entity.StagedQuery{
		b.Stage(card, entity.StageExact),
		b.Stage(card, entity.StageSet),
		b.Stage(card, entity.StageBroad),
		b.Stage(card, entity.StageCompProbe),
	}
}

func (b *Builder) Stage(card entity.CardQuery, stage entity.Stage) entity.StagedQuery {
	f := b.fields(card)

	var parts []string
	switch stage {
	case entity.StageExact:
		parts = []string{f.player, f.number, f.parallel, f.subset, f.serial, f.year, f.brand}
	case entity.StageSet:
		parts = []string{f.player, f.number, f.subset, f.year, f.brand}
	case entity.StageBroad:
		parts = []string{f.player, f.number, f.serial, f.year}
	case entity.StageCompProbe:
		parts = []string{f.player, f.number, f.subset, f.year, f.brand}
	}

	parts = append(parts, gradeClause(card.Grade)...)

	return entity.StagedQuery{
		Stage:      stage,
		Text:       join(parts),
		Confidence: stage.Confidence(),
	}
}

type fields struct {
	player, number, parallel, subset, serial, year, brand string
}

func (b *Builder) fields(card entity.CardQuery) fields {
	subset := b.terms.Strip(card.Subset)
	parallel := b.terms.Strip(card.Parallel)

	// Parallel names often land in the subset column and vice versa.
	if parallel == "" && b.terms.Kind(subset) == value.TermParallel {
		subset, parallel = "", subset
	}
	if subset == "" && b.terms.Kind(parallel) == value.TermSubset {
		subset, parallel = parallel, ""
	}

	f := fields{
		player:   strings.TrimSpace(card.Player),
		parallel: parallel,
		subset:   subset,
		year:     strings.TrimSpace(card.Year),
		brand:    b.terms.Strip(b.terms.Brand(card.Brand)),
	}

	if n := strings.TrimPrefix(strings.TrimSpace(card.CardNumber), "#"); n != "" {
		f.number = "#" + n
	}
	if card.IsNumbered() {
		f.serial = "/" + strconv.Itoa(card.Serial)
	}

	return f
}

// gradeClause требует точную оценку и исключает остальные оценки той же
// компании; для сырой карточки исключает любые слабы.
func gradeClause(g value.Grade) []string {
	if g.IsZero() {
		return rawExclusions
	}

	clause := []string{`"` + g.String() + `"`}
	for _, other := range g.Others() {
		clause = append(clause, `-"`+other.String()+`"`)
	}
	return clause
}

func join(parts []string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
