package normalize_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"card_pricer/internal/domain/service/normalize"
)

func TestParsePrice(t *testing.T) {
	rq := require.New(t)

	testCases := []struct {
		name  string
		input string
		price float64
		err   bool
	}{
		{name: "Dollar", input: "$42.50", price: 42.5},
		{name: "Thousands", input: "$1,250.00", price: 1250},
		{name: "Currency prefix", input: "US $19.99", price: 19.99},
		{name: "Range lower bound", input: "$10.00 to $15.00", price: 10},
		{name: "Screen reader suffix", input: "$7.25Opens in a new window", price: 7.25},
		{name: "No fraction", input: "C $30", price: 30},
		{name: "Zero", input: "$0.00", err: true},
		{name: "Empty", input: "", err: true},
		{name: "Text", input: "See price", err: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(*testing.T) {
			price, err := normalize.ParsePrice(tc.input)
			if tc.err {
				rq.ErrorIs(err, normalize.ErrNoPrice)
				return
			}

			rq.NoError(err)
			rq.InDelta(tc.price, price, 1e-9)
		})
	}
}

func TestParseShipping(t *testing.T) {
	rq := require.New(t)

	rq.InDelta(0, normalize.ParseShipping("Free delivery"), 1e-9)
	rq.InDelta(0, normalize.ParseShipping(""), 1e-9)
	rq.InDelta(4.5, normalize.ParseShipping("+$4.50 delivery"), 1e-9)
	rq.InDelta(0, normalize.ParseShipping("Shipping not specified"), 1e-9)
}

func TestParseSoldDate(t *testing.T) {
	rq := require.New(t)

	now := time.Date(2025, time.March, 10, 15, 30, 0, 0, time.UTC)
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

	testCases := []struct {
		name  string
		input string
		date  time.Time
		err   bool
	}{
		{name: "Caption with year", input: "Sold  Feb 27, 2025", date: day(2025, time.February, 27)},
		{name: "Caption without year", input: "Sold Mar 1", date: day(2025, time.March, 1)},
		{name: "Yearless date in future rolls back", input: "Sold Dec 24", date: day(2024, time.December, 24)},
		{name: "ISO", input: "2024-11-05", date: day(2024, time.November, 5)},
		{name: "Days ago", input: "3 days ago", date: day(2025, time.March, 7)},
		{name: "Short days ago", input: "2d ago", date: day(2025, time.March, 8)},
		{name: "Hours ago", input: "5h ago", date: day(2025, time.March, 10)},
		{name: "Weeks ago", input: "1 week ago", date: day(2025, time.March, 3)},
		{name: "Yesterday", input: "Yesterday", date: day(2025, time.March, 9)},
		{name: "Empty", input: "", err: true},
		{name: "Garbage", input: "Sold recently", err: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(*testing.T) {
			date, err := normalize.ParseSoldDate(tc.input, now)
			if tc.err {
				rq.ErrorIs(err, normalize.ErrNoDate)
				return
			}

			rq.NoError(err)
			rq.Equal(tc.date, date)
		})
	}

	rq.Equal(3, normalize.DaysAgo(day(2025, time.March, 7), now))
	rq.Equal(0, normalize.DaysAgo(day(2025, time.March, 11), now))
}

func TestCleanURL(t *testing.T) {
	rq := require.New(t)

	rq.Equal(
		"https://www.ebay.com/itm/1234567890?hash=item1",
		normalize.CleanURL("https://www.ebay.com/itm/1234567890?epid=555&hash=item1&itmprp=abc&_skw=mcdavid"),
	)
	rq.Equal("https://www.ebay.com/itm/1", normalize.CleanURL("https://www.ebay.com/itm/1?epid=2"))
	rq.Empty(normalize.CleanURL("  "))
}

func TestExtractSerial(t *testing.T) {
	rq := require.New(t)

	testCases := []struct {
		title  string
		serial int
	}{
		{title: "McDavid Red Prism 12/99 Young Guns", serial: 99},
		{title: "McDavid Gold /10 SSP", serial: 10},
		{title: "McDavid #/25 Exclusives", serial: 25},
		{title: "McDavid 1/1 Printing Plate", serial: 1},
		{title: "2023/24 Upper Deck Bedard Young Guns", serial: 0},
		{title: "2015-16 Upper Deck McDavid #201", serial: 0},
		{title: "Bedard (5/199) Seismic Gold", serial: 199},
	}

	for _, tc := range testCases {
		t.Run(tc.title, func(*testing.T) {
			rq.Equal(tc.serial, normalize.ExtractSerial(tc.title))
		})
	}
}
