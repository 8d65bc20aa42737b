package lattice

import (
	"fmt"
	"math"
	"strings"

	"max.com/optpricer/pkg/option"
)

// Greek 敏感度种类
type Greek uint8

const (
	Delta Greek = iota + 1
	Gamma
	Theta
	Vega
	Rho
)

// AllGreeks 全部 Greeks，顺序固定
var AllGreeks = []Greek{Delta, Gamma, Theta, Vega, Rho}

func (g Greek) String() string {
	switch g {
	case Delta:
		return "delta"
	case Gamma:
		return "gamma"
	case Theta:
		return "theta"
	case Vega:
		return "vega"
	case Rho:
		return "rho"
	default:
		return "unknown"
	}
}

// ParseGreek 按名字解析
func ParseGreek(s string) (Greek, error) {
	for _, g := range AllGreeks {
		if strings.EqualFold(strings.TrimSpace(s), g.String()) {
			return g, nil
		}
	}
	return 0, fmt.Errorf("unknown greek %q", s)
}

// MarshalText JSON 中 GreekSet 的 key 输出为 "delta" 等名字
func (g Greek) MarshalText() ([]byte, error) {
	switch g {
	case Delta, Gamma, Theta, Vega, Rho:
		return []byte(g.String()), nil
	default:
		return nil, fmt.Errorf("unknown greek %d", g)
	}
}

func (g *Greek) UnmarshalText(b []byte) error {
	v, err := ParseGreek(string(b))
	if err != nil {
		return err
	}
	*g = v
	return nil
}

// fromInduction 只需一次归纳即可得到的 Greeks
func (g Greek) fromInduction() bool { return g == Delta || g == Gamma || g == Theta }

// GreekSet Greek → 数值
type GreekSet map[Greek]float64

// Get 取值，不存在时 ok=false
func (s GreekSet) Get(g Greek) (float64, bool) {
	v, ok := s[g]
	return v, ok
}

// =============================================================================
// 基于保留层的 Greeks (一次归纳)
// =============================================================================

// EstimateDelta 第 1 层最外侧两个节点的中心差分
// 树的间距是乘性的，分母必须用实际节点价格
func EstimateDelta(ind Induction) (float64, error) {
	lv := ind.Retained[1]
	if len(lv.Values) < 2 {
		return 0, domainErr("depth", ind.Params.Depth, "level 1 not retained")
	}
	last := len(lv.Values) - 1
	dS := lv.Prices[last] - lv.Prices[0]
	if dS == 0 || math.IsNaN(dS) {
		return 0, &NumericalError{Quantity: "delta spacing", Value: dS}
	}
	return (lv.Values[last] - lv.Values[0]) / dS, nil
}

// EstimateGamma 第 2 层 (下下、中、上上) 三个节点的非均匀二阶差分
func EstimateGamma(ind Induction) (float64, error) {
	lv := ind.Retained[2]
	if len(lv.Values) < 3 {
		return 0, domainErr("depth", ind.Params.Depth, "level 2 not retained")
	}
	last, mid := len(lv.Values)-1, (len(lv.Values)-1)/2

	vDD, vM, vUU := lv.Values[0], lv.Values[mid], lv.Values[last]
	sDD, sM, sUU := lv.Prices[0], lv.Prices[mid], lv.Prices[last]

	a := vUU - vM
	b := vM - vDD
	x := sUU - sM
	y := sM - sDD
	z := sUU - sDD

	denom := x * y * z
	if denom == 0 || math.IsNaN(denom) {
		return 0, &NumericalError{Quantity: "gamma spacing", Value: denom}
	}
	return 2 * (a*y - b*x) / denom, nil
}

// EstimateTheta 第 2 层中间节点 (价格回到现价) 与根节点之差除以 2·dT，年化
func EstimateTheta(ind Induction) (float64, error) {
	lv := ind.Retained[2]
	root := ind.Retained[0]
	if len(lv.Values) < 3 || len(root.Values) == 0 {
		return 0, domainErr("depth", ind.Params.Depth, "levels 0 and 2 not retained")
	}
	span := 2 * ind.Params.DT
	if span == 0 {
		return 0, &NumericalError{Quantity: "theta span", Value: span}
	}
	mid := (len(lv.Values) - 1) / 2
	return (lv.Values[mid] - root.Values[0]) / span, nil
}

// =============================================================================
// 重估类 Greeks (两次完整定价)
// =============================================================================

// RepriceFunc 对一个新的市场状态完整走一遍定价流水线
type RepriceFunc func(option.Market) (float64, error)

// symmetricBump (price(hi) - price(lo)) / h，两次定价互不依赖
func symmetricBump(price RepriceFunc, lo, hi option.Market, h float64) (float64, error) {
	if h == 0 {
		return 0, &NumericalError{Quantity: "bump size", Value: h}
	}
	pLo, err := price(lo)
	if err != nil {
		return 0, err
	}
	pHi, err := price(hi)
	if err != nil {
		return 0, err
	}
	return (pHi - pLo) / h, nil
}

// EstimateVega 波动率 ∓h/2 重估
func EstimateVega(price RepriceFunc, m option.Market, h float64) (float64, error) {
	return symmetricBump(price, m.WithVol(m.Vol-h/2), m.WithVol(m.Vol+h/2), h)
}

// EstimateRho 利率 ∓h/2 重估
func EstimateRho(price RepriceFunc, m option.Market, h float64) (float64, error) {
	return symmetricBump(price, m.WithRate(m.Rate-h/2), m.WithRate(m.Rate+h/2), h)
}
