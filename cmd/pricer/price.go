package main

import (
	"context"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"max.com/optpricer/pkg/lattice"
	"max.com/optpricer/pkg/quote"
)

// contractFlags 单合约的命令行参数，与 ContractRow 一一对应
type contractFlags struct {
	row     ContractRow
	tree    string
	depth   int
	eps     float64
	input   string
	output  string
	publish bool
}

func (f *contractFlags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.row.Symbol, "symbol", "", "underlying symbol")
	fs.StringVar(&f.row.Right, "right", "call", "call or put")
	fs.StringVar(&f.row.Style, "style", "european", "european, american or bermuda")
	fs.Float64Var(&f.row.Strike, "strike", 0, "strike price")
	fs.Float64Var(&f.row.Maturity, "maturity", 0, "time to maturity in years")
	fs.StringVar(&f.row.ExerciseTimes, "exercise", "", "bermuda exercise times in years, separated by ';'")
	fs.StringVar(&f.row.StartDate, "start", "", "start date (YYYY-MM-DD), enables calendar-aware exercise window and theta")
	fs.Float64Var(&f.row.Spot, "spot", 0, "underlying spot price")
	fs.Float64Var(&f.row.Rate, "rate", 0, "risk-free rate (continuous)")
	fs.Float64Var(&f.row.Yield, "yield", 0, "continuous dividend yield")
	fs.StringVar(&f.row.Dividends, "dividends", "", "discrete dividends amount@time;... (overrides --yield)")
	fs.Float64Var(&f.row.Vol, "vol", 0, "annualised volatility")
	fs.StringVar(&f.tree, "tree", "", "binomial or trinomial (default from config)")
	fs.IntVar(&f.depth, "depth", 0, "lattice depth (default from config)")
	fs.Float64Var(&f.eps, "eps", 0, "exercise scheduling tolerance (default from config)")
	fs.StringVar(&f.input, "input", "", "CSV file of contracts; '-' reads stdin")
	fs.StringVar(&f.output, "output", "", "write results as CSV instead of a table; '-' writes stdout")
	fs.BoolVar(&f.publish, "publish", false, "publish quotes to the configured sink")
}

// rows 来自 --input 或单合约参数
func (f *contractFlags) rows() ([]ContractRow, error) {
	if f.input == "" {
		return []ContractRow{f.row}, nil
	}
	var r io.Reader = os.Stdin
	if f.input != "-" {
		file, err := os.Open(f.input)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		r = file
	}
	return readContracts(r)
}

func (f *contractFlags) tolerance(a *app) float64 {
	if f.eps > 0 {
		return f.eps
	}
	return a.cfg.Pricer.Tolerance
}

var priceFlags, greeksFlags contractFlags

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Price options on a binomial or trinomial lattice",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPricing(cmd.Context(), cmd.OutOrStdout(), &priceFlags, false)
	},
}

var greeksCmd = &cobra.Command{
	Use:   "greeks",
	Short: "Price options and estimate delta, gamma, theta, vega and rho",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPricing(cmd.Context(), cmd.OutOrStdout(), &greeksFlags, true)
	},
}

func init() {
	priceFlags.bind(priceCmd)
	greeksFlags.bind(greeksCmd)
}

func runPricing(ctx context.Context, stdout io.Writer, f *contractFlags, withGreeks bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(cfg, f.tree, f.depth)
	if err != nil {
		return err
	}
	rows, err := f.rows()
	if err != nil {
		return err
	}

	results, quotes := a.priceRows(rows, f.tolerance(a), withGreeks)

	if f.publish {
		if err := a.publish(ctx, quotes); err != nil {
			return err
		}
	}
	return emit(stdout, f.output, results, withGreeks, false)
}

// priceRows 逐行定价；单行失败记录在 Error 列，不中断整批
func (a *app) priceRows(rows []ContractRow, eps float64, withGreeks bool) ([]ResultRow, []quote.Quote) {
	depth := a.cfg.Pricer.Depth
	results := make([]ResultRow, 0, len(rows))
	quotes := make([]quote.Quote, 0, len(rows))

	for _, row := range rows {
		res := ResultRow{Symbol: row.Symbol, Right: row.Right, Style: row.Style, Strike: row.Strike, Tree: a.tree.Name(), Depth: depth}

		c, err := row.Contract()
		if err != nil {
			res.Error = err.Error()
			results = append(results, res)
			continue
		}
		m, err := row.Market()
		if err != nil {
			res.Error = err.Error()
			results = append(results, res)
			continue
		}
		res.Right, res.Style = c.Right.String(), c.Style.String()

		var (
			price  float64
			greeks lattice.GreekSet
		)
		if withGreeks {
			price, greeks, err = a.pricer.PriceAndGreeks(c, m, depth, eps)
		} else {
			price, err = a.pricer.Price(c, m, depth, eps)
		}
		if err != nil {
			log.WithFields(log.Fields{"symbol": row.Symbol, "contract": c.String()}).WithError(err).Warn("[Pricer] pricing failed")
			res.Error = err.Error()
			results = append(results, res)
			continue
		}

		res.Price = price
		res.Delta, res.Gamma, res.Theta, res.Vega, res.Rho =
			greeks[lattice.Delta], greeks[lattice.Gamma], greeks[lattice.Theta], greeks[lattice.Vega], greeks[lattice.Rho]
		results = append(results, res)
		quotes = append(quotes, quote.NewQuote(row.Symbol, c, m, a.tree.Name(), depth, price, greeks))
	}
	return results, quotes
}

func (a *app) publish(ctx context.Context, quotes []quote.Quote) error {
	sink, err := a.sink()
	if err != nil {
		return err
	}
	defer sink.Close()

	if err := quote.PublishAll(ctx, sink, quotes); err != nil {
		return fmt.Errorf("publish quotes: %w", err)
	}
	log.WithFields(log.Fields{"sink": a.cfg.Sink.Kind, "count": len(quotes)}).Info("[Pricer] quotes published")
	return nil
}

// emit output 为空时打印表格，否则写 CSV
func emit(stdout io.Writer, output string, rows []ResultRow, withGreeks, withVol bool) error {
	switch output {
	case "":
		renderResults(stdout, rows, withGreeks, withVol)
		return nil
	case "-":
		return writeResults(stdout, rows)
	default:
		file, err := os.Create(output)
		if err != nil {
			return err
		}
		defer file.Close()
		return writeResults(file, rows)
	}
}
