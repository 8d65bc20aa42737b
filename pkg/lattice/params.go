package lattice

import (
	"fmt"
	"math"
	"strings"
)

// Params 单次定价的树参数，每次调用推导一次
type Params struct {
	Depth    int     // N
	DT       float64 // T/N
	Up       float64 // 单步上涨乘数 u
	Down     float64 // 单步下跌乘数 d = 1/u
	PUp      float64
	PMid     float64 // 二叉树恒为 0
	PDown    float64
	Disc     float64 // exp(-r·dT)
	Branches int     // 2: 二叉; 3: 三叉
}

// Tree 树形策略：给出上下乘数与风险中性概率，以及节点编号到价格指数的映射
//
// 二叉树和三叉树共用 builder / inductor，区别只在这里。
type Tree interface {
	Name() string
	// MinDepth 保证概率落在 [0,1] 的最小深度
	MinDepth(vol, rate, yield, maturity float64) int
	// Params 推导树参数；深度不足时返回 *ConfigurationError
	Params(vol, rate, yield, maturity float64, depth int) (Params, error)
	// Width 第 level 层的节点数
	Width(level int) int
	// Exponent 第 level 层第 j 个节点相对现价的 u 指数
	Exponent(level, j int) int
}

// MinDepth 便捷函数
func MinDepth(t Tree, vol, rate, yield, maturity float64) int {
	return t.MinDepth(vol, rate, yield, maturity)
}

// ParseTree 按名字取树形 (binomial / trinomial)
func ParseTree(name string) (Tree, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "binomial", "crr":
		return Binomial, nil
	case "trinomial":
		return Trinomial, nil
	default:
		return nil, fmt.Errorf("unknown tree %q", name)
	}
}

// =============================================================================
// Binomial (Cox-Ross-Rubinstein)
// =============================================================================

type binomial struct{}

// Binomial CRR 二叉树: u=exp(vol·sqrt(dT)), d=1/u
var Binomial Tree = binomial{}

func (binomial) Name() string { return "binomial" }

func (binomial) MinDepth(vol, rate, yield, maturity float64) int {
	return clampDepth(depthBound(maturity, rate-yield, vol))
}

func (t binomial) Params(vol, rate, yield, maturity float64, depth int) (Params, error) {
	if err := validateTreeInputs(vol, rate, yield, maturity, depth); err != nil {
		return Params{}, err
	}
	if min := depthBound(maturity, rate-yield, vol); float64(depth) < min {
		return Params{}, &ConfigurationError{Tree: t.Name(), Depth: depth, MinDepth: clampDepth(min)}
	}

	dT := maturity / float64(depth)
	up := math.Exp(vol * math.Sqrt(dT))
	down := 1 / up
	if up-down == 0 {
		return Params{}, &NumericalError{Quantity: "u-d", Value: 0}
	}
	pUp := (math.Exp((rate-yield)*dT) - down) / (up - down)

	p := Params{
		Depth:    depth,
		DT:       dT,
		Up:       up,
		Down:     down,
		PUp:      pUp,
		PDown:    1 - pUp,
		Disc:     math.Exp(-rate * dT),
		Branches: 2,
	}
	return p, checkProbabilities(p)
}

func (binomial) Width(level int) int { return level + 1 }

func (binomial) Exponent(level, j int) int { return 2*j - level }

// =============================================================================
// Trinomial
// =============================================================================

type trinomial struct{}

// Trinomial 三叉树: u=exp(vol·sqrt(2dT))，中间节点乘数为 1
var Trinomial Tree = trinomial{}

func (trinomial) Name() string { return "trinomial" }

func (trinomial) MinDepth(vol, rate, yield, maturity float64) int {
	return clampDepth(depthBound(maturity/2, rate-yield, vol))
}

func (t trinomial) Params(vol, rate, yield, maturity float64, depth int) (Params, error) {
	if err := validateTreeInputs(vol, rate, yield, maturity, depth); err != nil {
		return Params{}, err
	}
	if min := depthBound(maturity/2, rate-yield, vol); float64(depth) < min {
		return Params{}, &ConfigurationError{Tree: t.Name(), Depth: depth, MinDepth: clampDepth(min)}
	}

	dT := maturity / float64(depth)
	up := math.Exp(vol * math.Sqrt(2*dT))

	// 半步匹配：a 为半步漂移，e/1/e 为半步上下乘数
	a := math.Exp((rate - yield) * dT / 2)
	e := math.Exp(vol * math.Sqrt(dT/2))
	spread := e - 1/e
	if spread == 0 {
		return Params{}, &NumericalError{Quantity: "half-step spread", Value: spread}
	}
	pUp := math.Pow((a-1/e)/spread, 2)
	pDown := math.Pow((e-a)/spread, 2)

	p := Params{
		Depth:    depth,
		DT:       dT,
		Up:       up,
		Down:     1 / up,
		PUp:      pUp,
		PMid:     1 - pUp - pDown,
		PDown:    pDown,
		Disc:     math.Exp(-rate * dT),
		Branches: 3,
	}
	return p, checkProbabilities(p)
}

func (trinomial) Width(level int) int { return 2*level + 1 }

func (trinomial) Exponent(level, j int) int { return j - level }

// =============================================================================
// 校验
// =============================================================================

// depthBound ceil(T·b²/vol²)，按浮点计算；vol 极小时为 +Inf，不会溢出成负数
func depthBound(maturity, drift, vol float64) float64 {
	if drift == 0 {
		return 0
	}
	x := drift / vol
	return math.Ceil(maturity * x * x)
}

// clampDepth 超出 int 范围的下界报告为 math.MaxInt
func clampDepth(bound float64) int {
	if bound >= float64(math.MaxInt) {
		return math.MaxInt
	}
	return int(bound)
}

func validateTreeInputs(vol, rate, yield, maturity float64, depth int) error {
	if depth <= 0 {
		return domainErr("depth", depth, "must be positive")
	}
	if !(vol > 0) || math.IsInf(vol, 0) {
		return domainErr("vol", vol, "must be positive")
	}
	if !(maturity > 0) || math.IsInf(maturity, 0) {
		return domainErr("maturity", maturity, "must be positive")
	}
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return domainErr("rate", rate, "must be finite")
	}
	if math.IsNaN(yield) || math.IsInf(yield, 0) {
		return domainErr("yield", yield, "must be finite")
	}
	return nil
}

// probSlack 浮点误差容忍，深度恰好等于下界时概率可能偏出 1e-16 量级
const probSlack = 1e-12

func checkProbabilities(p Params) error {
	for _, v := range [...]struct {
		name string
		val  float64
	}{{"p_u", p.PUp}, {"p_s", p.PMid}, {"p_d", p.PDown}} {
		if math.IsNaN(v.val) || v.val < -probSlack || v.val > 1+probSlack {
			return &NumericalError{Quantity: v.name, Value: v.val}
		}
	}
	return nil
}
