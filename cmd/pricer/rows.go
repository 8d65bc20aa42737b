package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"max.com/optpricer/pkg/dividend"
	"max.com/optpricer/pkg/option"
)

// ContractRow 批量输入的一行
//
// exercise_times 用分号分隔；dividends 形如 "1.5@0.25;1.5@0.75" (金额@年)，
// 给出 dividends 时覆盖 yield。
type ContractRow struct {
	Symbol        string  `csv:"symbol"`
	Right         string  `csv:"right"`
	Style         string  `csv:"style"`
	Strike        float64 `csv:"strike"`
	Maturity      float64 `csv:"maturity"`
	ExerciseTimes string  `csv:"exercise_times"`
	StartDate     string  `csv:"start_date"`
	Spot          float64 `csv:"spot"`
	Rate          float64 `csv:"rate"`
	Yield         float64 `csv:"yield"`
	Dividends     string  `csv:"dividends"`
	Vol           float64 `csv:"vol"`
	Target        float64 `csv:"target"`
}

// ResultRow 批量输出的一行
type ResultRow struct {
	Symbol string  `csv:"symbol"`
	Right  string  `csv:"right"`
	Style  string  `csv:"style"`
	Strike float64 `csv:"strike"`
	Tree   string  `csv:"tree"`
	Depth  int     `csv:"depth"`
	Price  float64 `csv:"price"`
	Delta  float64 `csv:"delta"`
	Gamma  float64 `csv:"gamma"`
	Theta  float64 `csv:"theta"`
	Vega   float64 `csv:"vega"`
	Rho    float64 `csv:"rho"`
	Vol    float64 `csv:"vol"`
	Error  string  `csv:"error"`
}

// PositionRow 组合输入：ContractRow 加数量和类型
type PositionRow struct {
	ContractRow
	Instrument string  `csv:"instrument"`
	Qty        float64 `csv:"qty"`
	Multiplier float64 `csv:"multiplier"`
	EntryPrice float64 `csv:"entry_price"`
}

func readContracts(r io.Reader) ([]ContractRow, error) {
	var rows []ContractRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("read contracts: %w", err)
	}
	return rows, nil
}

func readPositions(r io.Reader) ([]PositionRow, error) {
	var rows []PositionRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}
	return rows, nil
}

func writeResults(w io.Writer, rows []ResultRow) error {
	return gocsv.Marshal(&rows, w)
}

// Contract 转成合约条款
func (r ContractRow) Contract() (option.Contract, error) {
	right, err := option.ParseRight(r.Right)
	if err != nil {
		return option.Contract{}, err
	}
	style := option.European
	if strings.TrimSpace(r.Style) != "" {
		if style, err = option.ParseStyle(r.Style); err != nil {
			return option.Contract{}, err
		}
	}
	times, err := parseFloats(r.ExerciseTimes)
	if err != nil {
		return option.Contract{}, fmt.Errorf("exercise_times: %w", err)
	}
	c := option.Contract{
		Strike:        r.Strike,
		Maturity:      r.Maturity,
		Right:         right,
		Style:         style,
		ExerciseTimes: times,
	}
	if s := strings.TrimSpace(r.StartDate); s != "" {
		if c.StartDate, err = time.Parse(time.DateOnly, s); err != nil {
			return option.Contract{}, fmt.Errorf("start_date: %w", err)
		}
	}
	return c, nil
}

// Market 转成市场状态；离散派息折算成连续分红率
func (r ContractRow) Market() (option.Market, error) {
	m := option.Market{Spot: r.Spot, Rate: r.Rate, Yield: r.Yield, Vol: r.Vol}
	if strings.TrimSpace(r.Dividends) == "" {
		return m, nil
	}
	payments, err := parsePayments(r.Dividends)
	if err != nil {
		return option.Market{}, fmt.Errorf("dividends: %w", err)
	}
	div, err := dividend.Discrete(payments)
	if err != nil {
		return option.Market{}, err
	}
	return m.WithYield(div, r.Maturity)
}

func parseFloats(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ";")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parsePayments(s string) ([]dividend.Payment, error) {
	var out []dividend.Payment
	for _, p := range strings.Split(s, ";") {
		amount, at, ok := strings.Cut(strings.TrimSpace(p), "@")
		if !ok {
			return nil, fmt.Errorf("payment %q: want amount@time", p)
		}
		a, err := strconv.ParseFloat(strings.TrimSpace(amount), 64)
		if err != nil {
			return nil, err
		}
		t, err := strconv.ParseFloat(strings.TrimSpace(at), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, dividend.Payment{Amount: a, Time: t})
	}
	return out, nil
}
