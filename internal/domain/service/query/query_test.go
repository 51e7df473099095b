package query_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"card_pricer/internal/domain/entity"
	"card_pricer/internal/domain/service/query"
	"card_pricer/internal/domain/value"
)

func TestBuilderBuild(t *testing.T) {
	rq := require.New(t)

	builder := query.NewBuilder(value.DefaultTerms())

	testCases := []struct {
		name  string
		card  entity.CardQuery
		texts []string
	}{
		{
			name: "Numbered parallel raw card",
			card: entity.CardQuery{
				Player:     "Connor Bedard",
				Year:       "2023-24",
				Brand:      "O-Pee-Chee Platinum",
				Subset:     "Marquee Rookies",
				Parallel:   "Red Prism",
				CardNumber: "201",
				Serial:     199,
			},
			texts: []string{
				"Connor Bedard #201 Red Prism /199 2023-24 OPC Platinum -PSA -BGS -SGC -graded",
				"Connor Bedard #201 2023-24 OPC Platinum -PSA -BGS -SGC -graded",
				"Connor Bedard #201 /199 2023-24 -PSA -BGS -SGC -graded",
				"Connor Bedard #201 2023-24 OPC Platinum -PSA -BGS -SGC -graded",
			},
		},
		{
			name: "Parallel in subset column",
			card: entity.CardQuery{
				Player:     "Macklin Celebrini",
				Year:       "2024-25",
				Brand:      "Upper Deck",
				Subset:     "Seismic Gold",
				CardNumber: "#7",
			},
			texts: []string{
				"Macklin Celebrini #7 Seismic Gold 2024-25 Upper Deck -PSA -BGS -SGC -graded",
				"Macklin Celebrini #7 2024-25 Upper Deck -PSA -BGS -SGC -graded",
				"Macklin Celebrini #7 2024-25 -PSA -BGS -SGC -graded",
				"Macklin Celebrini #7 2024-25 Upper Deck -PSA -BGS -SGC -graded",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(*testing.T) {
			staged := builder.Build(tc.card)
			rq.Len(staged, 4)

			for i, sq := range staged {
				rq.Equal(entity.Stage(i+1), sq.Stage)
				rq.Equal(sq.Stage.Confidence(), sq.Confidence)
				rq.Equal(tc.texts[i], sq.Text, "stage %d", sq.Stage)
			}
		})
	}
}

func TestBuilderGradeClause(t *testing.T) {
	rq := require.New(t)

	builder := query.NewBuilder(value.DefaultTerms())

	card := entity.CardQuery{
		Player:     "Connor McDavid",
		Year:       "2015-16",
		Brand:      "Upper Deck",
		Subset:     "Young Guns",
		CardNumber: "201",
		Grade:      value.Grade{Company: value.CompanyBGS, Score: "9.5"},
	}

	sq := builder.Stage(card, entity.StageExact)
	rq.Equal(
		`Connor McDavid #201 Young Guns 2015-16 Upper Deck "BGS 9.5" -"BGS 10" -"BGS 9" -"BGS 8.5" -"BGS 8" -"BGS 7.5" -"BGS 7"`,
		sq.Text,
	)
	rq.NotContains(sq.Text, "-graded")
}

func TestBuilderIsPure(t *testing.T) {
	rq := require.New(t)

	builder := query.NewBuilder(value.DefaultTerms())
	card := entity.CardQuery{Player: "Wayne Gretzky", Year: "1979", Brand: "O-Pee-Chee", CardNumber: "18"}

	rq.Equal(builder.Build(card), builder.Build(card))
	rq.Equal("O-Pee-Chee", card.Brand)
}
