// 文件: pkg/lattice/pricer.go
// 定价门面：树参数 → 建树 → 反向归纳 → (可选) Greeks
//
// 每次调用独立分配自己的缓冲区，不持有跨调用的可变状态，
// 同一个 Pricer 可以被多个 goroutine 同时使用。

package lattice

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"
	log "github.com/sirupsen/logrus"

	"max.com/optpricer/pkg/option"
	"max.com/optpricer/pkg/risk/options"
)

// TradingCalendar 交易日历 (外部协作者)
type TradingCalendar interface {
	TradingDaysInRange(start time.Time, years float64) (int, error)
	FractionOfYearPerDay(start time.Time, years float64) (float64, error)
}

// 默认参数
const (
	DefaultDepth       = 500
	DefaultTolerance   = 1e-4
	DefaultVolBump     = 1e-4
	DefaultRateBump    = 1e-4
	TradingDaysPerYear = 252
	DefaultIVTolerance = 1e-6
	maxIVIterations    = 100
)

// Pricer 格点定价门面
type Pricer struct {
	tree        Tree
	calendar    TradingCalendar
	volBump     float64
	rateBump    float64
	forward     float64
	perDay      bool
	smoothing   bool
	ivTolerance float64
	logger      log.FieldLogger
}

// Option 构造选项
type Option func(*Pricer)

// WithCalendar 注入交易日历；合约带 StartDate 时用于行权窗口和 Theta 归一化
func WithCalendar(cal TradingCalendar) Option {
	return func(p *Pricer) { p.calendar = cal }
}

// WithBumps 设置 Vega / Rho 的重估步长
func WithBumps(vol, rate float64) Option {
	return func(p *Pricer) {
		p.volBump = vol
		p.rateBump = rate
	}
}

// WithForward 设置单次行权窗口 (年)
func WithForward(fwd float64) Option {
	return func(p *Pricer) { p.forward = fwd }
}

// WithThetaPerDay true: Theta 归一化到每交易日; false: 保留年化值
func WithThetaPerDay(perDay bool) Option {
	return func(p *Pricer) { p.perDay = perDay }
}

// WithSmoothing 取深度 N 与 N+1 两次价格的均值，抑制奇偶振荡
func WithSmoothing(on bool) Option {
	return func(p *Pricer) { p.smoothing = on }
}

// WithIVTolerance 隐含波动率求解的价格容差
func WithIVTolerance(tol float64) Option {
	return func(p *Pricer) { p.ivTolerance = tol }
}

// WithLogger 替换日志
func WithLogger(l log.FieldLogger) Option {
	return func(p *Pricer) { p.logger = l }
}

// NewPricer 创建定价器，tree 为 nil 时使用 Binomial
func NewPricer(tree Tree, opts ...Option) *Pricer {
	if tree == nil {
		tree = Binomial
	}
	p := &Pricer{
		tree:        tree,
		volBump:     DefaultVolBump,
		rateBump:    DefaultRateBump,
		forward:     DefaultForward,
		perDay:      true,
		ivTolerance: DefaultIVTolerance,
		logger:      log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Tree 当前使用的树形
func (p *Pricer) Tree() Tree { return p.tree }

// =============================================================================
// 价格
// =============================================================================

// Price 期权价格
func (p *Pricer) Price(c option.Contract, m option.Market, depth int, eps float64) (float64, error) {
	if !p.smoothing {
		ind, err := p.run(c, m, depth, eps, false)
		if err != nil {
			return 0, err
		}
		return ind.Price, nil
	}

	prices := make([]float64, 0, 2)
	for _, n := range [...]int{depth, depth + 1} {
		ind, err := p.run(c, m, n, eps, false)
		if err != nil {
			return 0, err
		}
		prices = append(prices, ind.Price)
	}
	mean, err := stats.Mean(prices)
	if err != nil {
		return 0, fmt.Errorf("smooth prices: %w", err)
	}
	return mean, nil
}

// run 单次完整流水线
func (p *Pricer) run(c option.Contract, m option.Market, depth int, eps float64, retain bool) (Induction, error) {
	// 1. 输入校验
	if err := validateContract(c); err != nil {
		return Induction{}, err
	}
	if !(m.Spot > 0) || math.IsInf(m.Spot, 0) {
		return Induction{}, domainErr("spot", m.Spot, "must be positive")
	}

	// 2. 树参数 (深度校验在建树之前完成)
	params, err := p.tree.Params(m.Vol, m.Rate, m.Yield, c.Maturity, depth)
	if err != nil {
		return Induction{}, err
	}

	// 3. Bermuda 行权层
	var window ExerciseWindow
	if c.Style == option.Bermuda {
		fwd, err := p.forwardWindow(c)
		if err != nil {
			return Induction{}, err
		}
		window = ScheduleExercise(c.ExerciseTimes, params.DT, depth, fwd, eps)
	}

	// 4. 建树 + 归纳
	l, err := Build(p.tree, params, m.Spot, c)
	if err != nil {
		return Induction{}, err
	}
	ind, err := Induct(l, window, retain)
	if err != nil {
		return Induction{}, err
	}

	p.logger.WithFields(log.Fields{
		"tree":     p.tree.Name(),
		"depth":    depth,
		"style":    c.Style.String(),
		"right":    c.Right.String(),
		"exercise": window.Len(),
		"price":    ind.Price,
	}).Debug("[Lattice] priced")
	return ind, nil
}

// forwardWindow 单次行权机会覆盖的时长：有日历和起始日时按实际交易日，否则 1/252
func (p *Pricer) forwardWindow(c option.Contract) (float64, error) {
	if p.calendar == nil || !c.HasStartDate() {
		return p.forward, nil
	}
	fwd, err := p.calendar.FractionOfYearPerDay(c.StartDate, c.Maturity)
	if err != nil {
		return 0, fmt.Errorf("exercise window: %w", err)
	}
	return fwd, nil
}

func validateContract(c option.Contract) error {
	if !(c.Strike > 0) || math.IsInf(c.Strike, 0) {
		return domainErr("strike", c.Strike, "must be positive")
	}
	if !(c.Maturity > 0) || math.IsInf(c.Maturity, 0) {
		return domainErr("maturity", c.Maturity, "must be positive")
	}
	if c.Right != option.Call && c.Right != option.Put {
		return domainErr("right", c.Right, "must be call or put")
	}
	switch c.Style {
	case option.European, option.American:
	case option.Bermuda:
		return validateExerciseTimes(c.ExerciseTimes, c.Maturity)
	default:
		return domainErr("style", c.Style, "must be european, american or bermuda")
	}
	return nil
}

// =============================================================================
// Greeks
// =============================================================================

// Greek 单个 Greek
func (p *Pricer) Greek(c option.Contract, m option.Market, depth int, eps float64, g Greek) (float64, error) {
	set, err := p.Greeks(c, m, depth, eps, g)
	if err != nil {
		return 0, err
	}
	return set[g], nil
}

// Greeks 计算 which 指定的 Greeks (为空时全部计算)
//
// Delta/Gamma/Theta 共用一次带保留层的归纳；Vega/Rho 各自再跑两次完整流水线。
// 不修改 c 和 m。
func (p *Pricer) Greeks(c option.Contract, m option.Market, depth int, eps float64, which ...Greek) (GreekSet, error) {
	_, set, err := p.greeks(c, m, depth, eps, false, which)
	return set, err
}

// PriceAndGreeks 价格和 Greeks 一起返回，价格直接取 Greeks 那次归纳的根节点
// 开启深度平滑时价格另按 Price 的口径计算
func (p *Pricer) PriceAndGreeks(c option.Contract, m option.Market, depth int, eps float64, which ...Greek) (float64, GreekSet, error) {
	price, set, err := p.greeks(c, m, depth, eps, !p.smoothing, which)
	if err != nil {
		return 0, nil, err
	}
	if p.smoothing {
		if price, err = p.Price(c, m, depth, eps); err != nil {
			return 0, nil, err
		}
	}
	return price, set, nil
}

// greeks withPrice=true 时即使只要 Vega/Rho 也跑一次基准归纳，返回其根节点价格
func (p *Pricer) greeks(c option.Contract, m option.Market, depth int, eps float64, withPrice bool, which []Greek) (float64, GreekSet, error) {
	if len(which) == 0 {
		which = AllGreeks
	}

	out := make(GreekSet, len(which))

	var ind Induction
	needLevels := false
	for _, g := range which {
		if g.fromInduction() {
			needLevels = true
		}
	}
	if needLevels && depth < retainedLevels-1 {
		return 0, nil, domainErr("depth", depth, "lattice greeks need depth >= 2")
	}
	if needLevels || withPrice {
		var err error
		if ind, err = p.run(c, m, depth, eps, needLevels); err != nil {
			return 0, nil, err
		}
	}

	reprice := func(mk option.Market) (float64, error) {
		return p.Price(c, mk, depth, eps)
	}

	for _, g := range which {
		var (
			v   float64
			err error
		)
		switch g {
		case Delta:
			v, err = EstimateDelta(ind)
		case Gamma:
			v, err = EstimateGamma(ind)
		case Theta:
			if v, err = EstimateTheta(ind); err == nil {
				v, err = p.NormalizeTheta(c, v)
			}
		case Vega:
			v, err = EstimateVega(reprice, m, p.volBump)
		case Rho:
			v, err = EstimateRho(reprice, m, p.rateBump)
		default:
			err = fmt.Errorf("unsupported greek %d", g)
		}
		if err != nil {
			return 0, nil, fmt.Errorf("%s: %w", g, err)
		}
		out[g] = v
	}
	return ind.Price, out, nil
}

// NormalizeTheta 年化 Theta → 每交易日 (WithThetaPerDay(false) 时原样返回)
// 有日历和起始日时按区间内实际交易日数摊分，否则按每年 252 天
func (p *Pricer) NormalizeTheta(c option.Contract, theta float64) (float64, error) {
	if !p.perDay {
		return theta, nil
	}
	if p.calendar == nil || !c.HasStartDate() {
		return theta / TradingDaysPerYear, nil
	}
	days, err := p.calendar.TradingDaysInRange(c.StartDate, c.Maturity)
	if err != nil {
		return 0, fmt.Errorf("normalize theta: %w", err)
	}
	if days <= 0 {
		return 0, &NumericalError{Quantity: "trading days", Value: float64(days)}
	}
	return theta * c.Maturity / float64(days), nil
}

// =============================================================================
// 隐含波动率
// =============================================================================

// ImpliedVol 反推使格点价格等于 target 的波动率
//
// 以闭式解的隐含波动率为初值，在 [lo, hi] 区间内做带保护的牛顿迭代：
// 牛顿步越界或 Vega 非正时退回二分。
func (p *Pricer) ImpliedVol(c option.Contract, m option.Market, target float64, depth int, eps float64) (float64, error) {
	if !(target > 0) {
		return 0, domainErr("target", target, "must be positive")
	}
	lo, hi := 1e-4, 5.0

	vol, err := options.ImpliedVolatility(c.Right, m.Spot, c.Strike, m.Rate, m.Yield, c.Maturity, target)
	if err != nil || !(vol > lo && vol < hi) {
		vol = 0.2
	}

	for i := 0; i < maxIVIterations; i++ {
		price, err := p.Price(c, m.WithVol(vol), depth, eps)
		if errors.Is(err, ErrConfiguration) {
			// 波动率过低导致深度不足，抬高下界
			lo = vol
			vol = (lo + hi) / 2
			continue
		}
		if err != nil {
			return 0, err
		}

		diff := price - target
		if math.Abs(diff) <= p.ivTolerance {
			return vol, nil
		}
		if diff > 0 {
			hi = vol
		} else {
			lo = vol
		}

		next := (lo + hi) / 2
		vega, err := EstimateVega(func(mk option.Market) (float64, error) {
			return p.Price(c, mk, depth, eps)
		}, m.WithVol(vol), p.volBump)
		if err == nil && vega > 0 {
			if n := vol - diff/vega; n > lo && n < hi {
				next = n
			}
		}
		vol = next
		if hi-lo < 1e-12 {
			break
		}
	}
	return 0, &NumericalError{Quantity: "implied vol convergence", Value: vol}
}
