package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"max.com/optpricer/pkg/option"
	"max.com/optpricer/pkg/risk"
)

var bookFlags struct {
	input     string
	tree      string
	depth     int
	hedgeMult float64
}

var bookCmd = &cobra.Command{
	Use:   "book",
	Short: "Aggregate value and greeks over a CSV book of option and underlying positions",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, bookFlags.tree, bookFlags.depth)
		if err != nil {
			return err
		}
		var r io.Reader = os.Stdin
		if bookFlags.input != "" && bookFlags.input != "-" {
			f, err := os.Open(bookFlags.input)
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}
		rows, err := readPositions(r)
		if err != nil {
			return err
		}

		out, err := a.computeBook(rows, bookFlags.hedgeMult)
		if err != nil {
			return err
		}
		renderBook(cmd.OutOrStdout(), out)
		for _, w := range out.Warnings {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
		}
		return nil
	},
}

func init() {
	bookCmd.Flags().StringVar(&bookFlags.input, "input", "-", "CSV file of positions; '-' reads stdin")
	bookCmd.Flags().StringVar(&bookFlags.tree, "tree", "", "binomial or trinomial (default from config)")
	bookCmd.Flags().IntVar(&bookFlags.depth, "depth", 0, "lattice depth (default from config)")
	bookCmd.Flags().Float64Var(&bookFlags.hedgeMult, "hedge-multiplier", 1, "contract multiplier of the hedge instrument")
}

// computeBook 行 → BookInput；同一 symbol 的市场状态以第一次出现为准
func (a *app) computeBook(rows []PositionRow, hedgeMult float64) (risk.BookOutput, error) {
	in := risk.BookInput{
		Markets:         make(map[string]option.Market),
		Depth:           a.cfg.Pricer.Depth,
		Eps:             a.cfg.Pricer.Tolerance,
		HedgeMultiplier: hedgeMult,
	}
	for i, row := range rows {
		if _, ok := in.Markets[row.Symbol]; !ok {
			m, err := row.Market()
			if err != nil {
				return risk.BookOutput{}, fmt.Errorf("row %d: %w", i+1, err)
			}
			in.Markets[row.Symbol] = m
		}

		p := risk.Position{
			Instrument: risk.InstrumentType(strings.ToLower(strings.TrimSpace(row.Instrument))),
			Symbol:     row.Symbol,
			Qty:        row.Qty,
			Multiplier: row.Multiplier,
			EntryPrice: row.EntryPrice,
		}
		if p.Instrument == "" {
			p.Instrument = risk.InstrumentOption
		}
		if p.Instrument == risk.InstrumentOption {
			c, err := row.Contract()
			if err != nil {
				return risk.BookOutput{}, fmt.Errorf("row %d: %w", i+1, err)
			}
			p.Contract = c
		}
		in.Positions = append(in.Positions, p)
	}
	return risk.NewEngine(a.pricer).ComputeBook(in)
}
