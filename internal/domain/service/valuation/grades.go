package valuation

import (
	"context"
	"fmt"

	"card_pricer/internal/domain/entity"
	"card_pricer/internal/domain/value"
)

type GradeResult struct {
	Grade  value.Grade
	Result entity.FairValueResult
}

// ProbeGrades оценивает карточку по верхним ступеням шкалы каждой компании
// (PSA 10 → 9 → 8, BGS 10 → 9.5 → 9). Если у высшей оценки компании нет
// продаж, остальные её ступени пропускаются.
func (e *Estimator) ProbeGrades(
	ctx context.Context,
	f Fetcher,
	card entity.CardQuery,
	companies ...value.Company,
) ([]GradeResult, error) {
	results := make([]GradeResult, 0, 3*len(companies))

	for _, company := range companies {
		for i, grade := range value.ProbeLadder(company) {
			res, err := e.Estimate(ctx, f, card.WithGrade(grade))
			if err != nil {
				return results, fmt.Errorf("%s: %w", grade, err)
			}

			results = append(results, GradeResult{Grade: grade, Result: res})

			if i == 0 && res.Confidence == entity.ConfidenceNone {
				break
			}
		}
	}

	return results, nil
}
