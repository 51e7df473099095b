package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"card_pricer/internal/domain/entity"
	"card_pricer/internal/domain/service/valuation"
)

func newTable(header table.Row, rightAligned ...int) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(header)

	configs := make([]table.ColumnConfig, 0, len(rightAligned))
	for _, n := range rightAligned {
		configs = append(configs, table.ColumnConfig{Number: n, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw
}

func renderOutcomes(outcomes []entity.Outcome) string {
	tw := newTable(table.Row{"#", "Card", "Value", "Confidence", "Stage", "Sales", "Trend", "Status"}, 1, 3, 6)

	for _, o := range outcomes {
		status := "ok"
		if o.Err != nil {
			status = o.Err.Error()
		}

		r := o.Result
		tw.AppendRow(table.Row{
			o.Index + 1,
			o.Card.String(),
			money(r.EstimatedValue, o.OK()),
			string(r.Confidence),
			stage(r),
			strconv.Itoa(r.Stats.NumSales),
			string(r.Stats.Trend),
			status,
		})
	}

	return tw.Render()
}

func renderGrades(results []valuation.GradeResult) string {
	tw := newTable(table.Row{"Grade", "Value", "Confidence", "Sales", "Range"}, 2, 4)

	for _, g := range results {
		r := g.Result
		rng := ""
		if r.Stats.NumSales > 0 {
			rng = fmt.Sprintf("$%.2f - $%.2f", r.Stats.Min, r.Stats.Max)
		}

		tw.AppendRow(table.Row{
			g.Grade.String(),
			money(r.EstimatedValue, true),
			string(r.Confidence),
			strconv.Itoa(r.Stats.NumSales),
			rng,
		})
	}

	return tw.Render()
}

func money(v float64, ok bool) string {
	if !ok {
		return "-"
	}
	return fmt.Sprintf("$%.2f", v)
}

func stage(r entity.FairValueResult) string {
	if r.Stage == 0 {
		return "-"
	}
	return r.Stage.String()
}
