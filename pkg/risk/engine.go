package risk

import (
	"errors"
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"

	"max.com/optpricer/pkg/lattice"
	"max.com/optpricer/pkg/option"
	"max.com/optpricer/pkg/risk/linear"
	"max.com/optpricer/pkg/risk/options"
)

// Engine 组合风险引擎
// 输入 BookInput → 输出 BookOutput，本身不持有可变状态
type Engine struct {
	pricer *lattice.Pricer
	logger log.FieldLogger
}

// EngineOption 构造选项
type EngineOption func(*Engine)

// WithLogger 替换日志
func WithLogger(l log.FieldLogger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine pricer 为 nil 时使用默认二叉树定价器
func NewEngine(pricer *lattice.Pricer, opts ...EngineOption) *Engine {
	e := &Engine{pricer: pricer, logger: log.StandardLogger()}
	for _, opt := range opts {
		opt(e)
	}
	if e.pricer == nil {
		e.pricer = lattice.NewPricer(lattice.Binomial, lattice.WithLogger(e.logger))
	}
	return e
}

// ComputeBook 逐条定价并汇总
func (e *Engine) ComputeBook(in BookInput) (BookOutput, error) {
	// 1. 基础校验
	if err := validateInput(in); err != nil {
		return BookOutput{}, err
	}
	depth, eps := in.Depth, in.Eps
	if depth == 0 {
		depth = lattice.DefaultDepth
	}
	if eps == 0 {
		eps = lattice.DefaultTolerance
	}

	out := BookOutput{
		Greeks: make(lattice.GreekSet, len(lattice.AllGreeks)),
		Lines:  make([]PositionRisk, 0, len(in.Positions)),
	}
	for _, g := range lattice.AllGreeks {
		out.Greeks[g] = 0
	}
	var warnings []string

	// 2. 遍历仓位
	for _, p := range in.Positions {
		m, ok := in.Markets[p.Symbol]
		if !ok {
			return BookOutput{}, errors.New("missing market for: " + p.Symbol)
		}

		var (
			line PositionRisk
			err  error
		)
		switch p.Instrument {
		case InstrumentOption:
			var warn string
			line, warn, err = e.priceOption(p, m, depth, eps)
			if warn != "" {
				warnings = append(warnings, warn)
			}
		case InstrumentUnderlying:
			line = underlyingLine(p, m)
		default:
			err = fmt.Errorf("unknown instrument %q for: %s", p.Instrument, p.Symbol)
		}
		if err != nil {
			return BookOutput{}, err
		}

		// 3. 聚合
		out.Value += line.Value
		out.PnL += line.PnL
		out.Notional += line.Notional
		for g, v := range line.Greeks {
			out.Greeks[g] += v
		}
		out.Lines = append(out.Lines, line)
	}

	out.HedgeQty = linear.HedgeQty(out.Greeks[lattice.Delta], in.HedgeMultiplier)
	out.Warnings = dedup(warnings)
	return out, nil
}

// priceOption 格点定价；欧式期权在深度不足时退回闭式解
func (e *Engine) priceOption(p Position, m option.Market, depth int, eps float64) (PositionRisk, string, error) {
	scale := p.Qty * multiplier(p)
	line := PositionRisk{Symbol: p.Symbol, Source: SourceLattice, Notional: math.Abs(scale) * m.Spot}

	unit, greeks, err := e.pricer.PriceAndGreeks(p.Contract, m, depth, eps)

	var warn string
	if err != nil {
		if !errors.Is(err, lattice.ErrConfiguration) || p.Contract.Style != option.European {
			return PositionRisk{}, "", fmt.Errorf("price %s: %w", p.Symbol, err)
		}
		e.logger.WithFields(log.Fields{
			"symbol": p.Symbol,
			"depth":  depth,
			"err":    err.Error(),
		}).Warn("[Risk] lattice unavailable, using closed form")

		if unit, greeks, err = e.closedForm(p.Contract, m); err != nil {
			return PositionRisk{}, "", fmt.Errorf("price %s: %w", p.Symbol, err)
		}
		line.Source = SourceClosedForm
		warn = "closed-form fallback for " + p.Symbol
	}

	line.Unit = unit
	line.Value = unit * scale
	line.Greeks = make(lattice.GreekSet, len(greeks))
	for g, v := range greeks {
		line.Greeks[g] = v * scale
	}
	return line, warn, nil
}

// closedForm 闭式解价格和 Greeks，Theta 与格点使用同样的归一方式
func (e *Engine) closedForm(c option.Contract, m option.Market) (float64, lattice.GreekSet, error) {
	g, err := options.All(c.Right, m.Spot, c.Strike, m.Rate, m.Yield, m.Vol, c.Maturity)
	if err != nil {
		return 0, nil, err
	}
	theta, err := e.pricer.NormalizeTheta(c, g.Theta)
	if err != nil {
		return 0, nil, err
	}
	return g.Price, lattice.GreekSet{
		lattice.Delta: g.Delta,
		lattice.Gamma: g.Gamma,
		lattice.Theta: theta,
		lattice.Vega:  g.Vega,
		lattice.Rho:   g.Rho,
	}, nil
}

func underlyingLine(p Position, m option.Market) PositionRisk {
	metrics := linear.Calculate(linear.Position{
		Qty:        p.Qty,
		EntryPrice: p.EntryPrice,
		MarkPrice:  m.Spot,
		Multiplier: p.Multiplier,
	})
	return PositionRisk{
		Symbol:   p.Symbol,
		Unit:     m.Spot,
		Value:    metrics.Value,
		PnL:      metrics.UnrealizedPnL,
		Greeks:   lattice.GreekSet{lattice.Delta: metrics.Delta},
		Source:   SourceLinear,
		Notional: metrics.Notional,
	}
}

func multiplier(p Position) float64 {
	if p.Multiplier == 0 {
		return 1
	}
	return p.Multiplier
}

func validateInput(in BookInput) error {
	if len(in.Positions) == 0 {
		return errors.New("positions cannot be empty")
	}
	if in.Markets == nil {
		return errors.New("markets cannot be nil")
	}
	if in.Depth < 0 {
		return fmt.Errorf("depth cannot be negative: %d", in.Depth)
	}
	if in.HedgeMultiplier < 0 {
		return fmt.Errorf("hedge multiplier cannot be negative: %v", in.HedgeMultiplier)
	}
	return nil
}

// dedup 去重，保持首次出现的顺序
func dedup(ss []string) []string {
	if len(ss) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, s := range ss {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
