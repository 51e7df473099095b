package normalize_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"card_pricer/internal/domain/entity"
	"card_pricer/internal/domain/service/normalize"
	"card_pricer/internal/domain/value"
)

var fixedNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func newNormalizer() *normalize.Normalizer {
	return normalize.New().WithClock(func() time.Time { return fixedNow })
}

func TestNormalizeGradedCard(t *testing.T) {
	rq := require.New(t)

	card := entity.CardQuery{
		Player:     "Connor McDavid",
		Year:       "2015-16",
		Brand:      "Upper Deck",
		Subset:     "Young Guns",
		CardNumber: "201",
		Grade:      value.Grade{Company: value.CompanyPSA, Score: "10"},
	}

	listings := []entity.Listing{
		{Title: "2015 Upper Deck Young Guns Connor McDavid #201 PSA 10 GEM MINT", Price: "$2,100.00", SoldDate: "Sold Mar 2, 2025", Shipping: "Free delivery"},
		{Title: "2015 Upper Deck Young Guns Connor McDavid #201 PSA 9 MINT", Price: "$2,050.00", SoldDate: "Sold Mar 3, 2025"},
		{Title: "McDavid Young Guns lot of 3 mixed grades", Price: "$2,000.00", SoldDate: "Sold Mar 4, 2025"},
		{Title: "McDavid Young Guns PSA 10 and PSA 9 pair", Price: "$3,900.00", SoldDate: "Sold Mar 4, 2025"},
		{Title: "McDavid Young Guns #201 raw", Price: "$700.00", SoldDate: "Sold Mar 4, 2025"},
	}

	sales, diag := newNormalizer().Normalize(card, entity.StageExact, listings)

	rq.Len(sales, 1)
	rq.Equal("PSA 10", sales[0].Grade.String())
	rq.InDelta(2100, sales[0].Price, 1e-9)
	rq.Equal(8, sales[0].DaysAgo)

	rq.Equal(5, diag.Listings)
	rq.Equal(1, diag.Accepted)
	rq.Equal(1, diag.Lots)
	rq.Equal(3, diag.GradeMismatch)
}

func TestNormalizeRawNumberedCard(t *testing.T) {
	rq := require.New(t)

	card := entity.CardQuery{
		Player:     "Connor Bedard",
		Year:       "2023-24",
		Brand:      "O-Pee-Chee Platinum",
		Parallel:   "Red Prism",
		CardNumber: "201",
		Serial:     199,
	}

	listings := []entity.Listing{
		{
			Title:      "2023-24 OPC Platinum Connor Bedard Red Prism 45/199 #201",
			Price:      "$120.00",
			Shipping:   "+$5.25 delivery",
			SoldDate:   "Sold Mar 8, 2025",
			ListingURL: "https://www.ebay.com/itm/1?epid=9&hash=x",
			ImageURL:   " https://i.ebayimg.com/1.jpg ",
		},
		{Title: "2023-24 OPC Platinum Connor Bedard Seismic Gold /10 #201", Price: "$900.00", SoldDate: "Sold Mar 8, 2025"},
		{Title: "2023-24 OPC Platinum Connor Bedard Red Prism #201 PSA 10", Price: "$400.00", SoldDate: "Sold Mar 8, 2025"},
		{Title: "2023-24 OPC Platinum Adam Fantilli Red Prism /199", Price: "$20.00", SoldDate: "Sold Mar 8, 2025"},
		{Title: "2023-24 OPC Platinum Connor Bedard Red Prism #201", Price: "", SoldDate: "Sold Mar 8, 2025"},
		{Title: "2023-24 OPC Platinum Connor Bedard Red Prism #201", Price: "$95.00", SoldDate: ""},
		{Title: "   ", Price: "$95.00", SoldDate: "Sold Mar 8, 2025"},
		{Title: "Bedard Red Prism OPC Platinum", Price: "$110.00", SoldDate: "2 days ago"},
	}

	sales, diag := newNormalizer().Normalize(card, entity.StageExact, listings)

	rq.Len(sales, 2)
	rq.InDelta(125.25, sales[0].Price, 1e-9)
	rq.InDelta(120, sales[0].ItemPrice, 1e-9)
	rq.InDelta(5.25, sales[0].Shipping, 1e-9)
	rq.Equal(199, sales[0].Serial)
	rq.Equal("https://www.ebay.com/itm/1?hash=x", sales[0].ListingURL)
	rq.Equal("https://i.ebayimg.com/1.jpg", sales[0].ImageURL)
	rq.True(sales[0].Grade.IsZero())
	rq.Equal(0, sales[1].Serial, "titles without a serial are accepted")

	rq.Equal(entity.Diagnostics{
		Listings:       8,
		Accepted:       2,
		Malformed:      1,
		BadPrice:       1,
		BadDate:        1,
		GradeMismatch:  1,
		SerialMismatch: 1,
		OtherCard:      1,
	}, diag)
}

func TestNormalizeCompProbe(t *testing.T) {
	rq := require.New(t)

	card := entity.CardQuery{Player: "Connor Bedard", CardNumber: "201", Serial: 10}

	listings := []entity.Listing{
		{Title: "Connor Bedard Red Prism /199 #201", Price: "$100", SoldDate: "Sold Mar 8, 2025"},
		{Title: "Connor Bedard Gold /99 #201", Price: "$30", SoldDate: "Sold Mar 8, 2025"},
		{Title: "Connor Bedard Gold /99 #15", Price: "$60", SoldDate: "Sold Mar 8, 2025"},
	}

	sales, diag := newNormalizer().Normalize(card, entity.StageCompProbe, listings)

	rq.Len(sales, 2)
	rq.Equal(199, sales[0].Serial)
	rq.Equal(99, sales[1].Serial)
	rq.Equal(1, diag.OtherCard)
}

func TestUnnumberedCardRejectsSerialTitles(t *testing.T) {
	rq := require.New(t)

	card := entity.CardQuery{Player: "Connor McDavid", CardNumber: "201"}
	listings := []entity.Listing{
		{Title: "Connor McDavid Young Guns #201 Exclusives /100", Price: "$900", SoldDate: "Sold Mar 8, 2025"},
		{Title: "Connor McDavid Young Guns #201", Price: "$700", SoldDate: "Sold Mar 8, 2025"},
	}

	sales, diag := newNormalizer().Normalize(card, entity.StageSet, listings)

	rq.Len(sales, 1)
	rq.Equal(1, diag.SerialMismatch)
}

func TestGradeMatches(t *testing.T) {
	rq := require.New(t)

	psa10 := value.Grade{Company: value.CompanyPSA, Score: "10"}

	rq.True(normalize.GradeMatches(psa10, "McDavid YG PSA 10"))
	rq.False(normalize.GradeMatches(psa10, "McDavid YG PSA 9"))
	rq.False(normalize.GradeMatches(psa10, "McDavid YG PSA 10 BGS 9.5"))
	rq.False(normalize.GradeMatches(psa10, "McDavid YG raw"))
	rq.True(normalize.GradeMatches(value.Grade{}, "McDavid YG raw"))
	rq.False(normalize.GradeMatches(value.Grade{}, "McDavid YG graded 9"))
}

func TestMentionsNumber(t *testing.T) {
	rq := require.New(t)

	rq.True(normalize.MentionsNumber("Bedard Young Guns #201", "201"))
	rq.True(normalize.MentionsNumber("Bedard Young Guns 201 RC", "#201"))
	rq.True(normalize.MentionsNumber("Bedard Young Guns #007", "7"))
	rq.False(normalize.MentionsNumber("Bedard Red Prism /201", "201"))
	rq.False(normalize.MentionsNumber("Bedard Young Guns #2011", "201"))
	rq.True(normalize.MentionsNumber("anything", ""))
}
