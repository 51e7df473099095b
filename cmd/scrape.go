package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"card_pricer/internal/application"
	"card_pricer/internal/domain/entity"
	"card_pricer/internal/domain/value"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // skip

type scrapeOptions struct {
	file   string
	card   entity.CardQuery
	grade  string
	grades []string
	asJSON bool
	save   bool
	serve  bool
}

func newScrapeCommand(cc *commandContext) *cobra.Command {
	var opts scrapeOptions

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Estimate fair values for one card or a JSON batch of cards",
		Example: `  card-pricer scrape --player "Connor Bedard" --year 2023-24 --brand "Upper Deck" --subset "Young Guns" --number 451
  card-pricer scrape --file cards.json --save
  card-pricer scrape --player "Connor Bedard" --year 2023-24 --brand "Upper Deck" --grades PSA,BGS`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cards, err := opts.cards()
			if err != nil {
				return err
			}

			return cc.withApp(cmd.Context(), func(ctx context.Context, app *application.App) error {
				run := func(ctx context.Context) error {
					if len(opts.grades) > 0 {
						return probeGrades(ctx, cmd, app, cards[0], opts)
					}
					return scrape(ctx, cmd, app, cards, opts)
				}

				if opts.serve {
					return app.ServeMetrics(ctx, run)
				}
				return run(ctx)
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.file, "file", "f", "", "JSON file with an array of cards")
	f.StringVar(&opts.card.Player, "player", "", "Player name")
	f.StringVar(&opts.card.Year, "year", "", "Season, e.g. 2023-24")
	f.StringVar(&opts.card.Brand, "brand", "", "Manufacturer")
	f.StringVar(&opts.card.Subset, "subset", "", "Insert or set name")
	f.StringVar(&opts.card.Parallel, "parallel", "", "Parallel or variant")
	f.StringVar(&opts.card.CardNumber, "number", "", "Card number")
	f.IntVar(&opts.card.Serial, "serial", 0, "Print run for numbered cards, e.g. 99 for /99")
	f.StringVar(&opts.grade, "grade", "", `Grade, e.g. "PSA 10"`)
	f.StringSliceVar(&opts.grades, "grades", nil, "Probe the grade ladder of these companies (PSA, BGS, SGC, CGC)")
	f.BoolVar(&opts.asJSON, "json", false, "Print results as JSON")
	f.BoolVar(&opts.save, "save", false, "Store cards and valuations in Postgres")
	f.BoolVar(&opts.serve, "serve", false, "Serve metrics and probes while the batch runs")

	cmd.MarkFlagsMutuallyExclusive("file", "player")
	cmd.MarkFlagsMutuallyExclusive("file", "grades")
	cmd.MarkFlagsMutuallyExclusive("grades", "save")

	return cmd
}

func (o scrapeOptions) cards() ([]entity.CardQuery, error) {
	if o.file != "" {
		return readCards(o.file)
	}

	if o.card.Player == "" {
		return nil, errors.New("either --file or --player is required")
	}

	card := o.card
	if o.grade != "" {
		grade, err := value.ParseGrade(o.grade)
		if err != nil {
			return nil, fmt.Errorf("--grade: %w", err)
		}
		card.Grade = grade
	}

	return []entity.CardQuery{card}, nil
}

func readCards(path string) ([]entity.CardQuery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cards: %w", err)
	}

	var cards []entity.CardQuery
	if err := json.Unmarshal(data, &cards); err != nil {
		return nil, fmt.Errorf("parse cards %s: %w", path, err)
	}
	if len(cards) == 0 {
		return nil, fmt.Errorf("no cards in %s", path)
	}

	return cards, nil
}

func scrape(ctx context.Context, cmd *cobra.Command, app *application.App, cards []entity.CardQuery, opts scrapeOptions) error {
	outcomes, err := app.Scrape(ctx, cards)
	if err != nil {
		return err
	}

	if opts.save {
		saved, err := app.SaveResults(ctx, outcomes)
		if err != nil {
			return err
		}
		logger(ctx).Info("valuations saved", "saved", saved, "total", len(outcomes))
	}

	if opts.asJSON {
		return writeJSON(cmd, outcomes)
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderOutcomes(outcomes))

	failed := lo.CountBy(outcomes, func(o entity.Outcome) bool { return !o.OK() })
	if failed > 0 {
		return fmt.Errorf("%d of %d cards failed", failed, len(outcomes))
	}
	return nil
}

func probeGrades(ctx context.Context, cmd *cobra.Command, app *application.App, card entity.CardQuery, opts scrapeOptions) error {
	companies := lo.Map(opts.grades, func(s string, _ int) value.Company {
		return value.Company(strings.ToUpper(strings.TrimSpace(s)))
	})
	if unknown, ok := lo.Find(companies, func(c value.Company) bool { return !c.Known() }); ok {
		return fmt.Errorf("unknown grading company %q", unknown)
	}

	results, err := app.ProbeGrades(ctx, card, companies...)
	if opts.asJSON {
		if jerr := writeJSON(cmd, results); jerr != nil {
			return jerr
		}
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), renderGrades(results))
	}

	return err
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
