package lattice

import (
	"math"

	"max.com/optpricer/pkg/option"
)

// Lattice 一次定价调用独占的树
//
// values 按最大层宽 (终端层) 一次性分配，归纳时逐层原地覆盖，不再重新分配。
type Lattice struct {
	tree     Tree
	params   Params
	spot     float64
	contract option.Contract
	values   []float64
}

// Build 构造终端层：节点价格 spot·u^e(N,k)，收益为看涨/看跌的内在价值
func Build(tree Tree, p Params, spot float64, c option.Contract) (*Lattice, error) {
	if p.Depth < 0 {
		return nil, domainErr("depth", p.Depth, "must be non-negative")
	}
	if !(spot > 0) || math.IsInf(spot, 0) {
		return nil, domainErr("spot", spot, "must be positive")
	}
	if !(c.Strike > 0) || math.IsInf(c.Strike, 0) {
		return nil, domainErr("strike", c.Strike, "must be positive")
	}
	if c.Right != option.Call && c.Right != option.Put {
		return nil, domainErr("right", c.Right, "must be call or put")
	}

	l := &Lattice{
		tree:     tree,
		params:   p,
		spot:     spot,
		contract: c,
		values:   make([]float64, tree.Width(p.Depth)),
	}
	l.fillPrices(p.Depth, l.values)
	for k, s := range l.values {
		l.values[k] = c.Intrinsic(s)
	}
	return l, nil
}

// Params 返回构造时使用的树参数
func (l *Lattice) Params() Params { return l.params }

// Terminal 终端层收益（只读视图，归纳开始后会被覆盖）
func (l *Lattice) Terminal() []float64 { return l.values }

// NodePrice 第 level 层第 j 个节点的标的价格
func (l *Lattice) NodePrice(level, j int) float64 {
	return l.spot * math.Pow(l.params.Up, float64(l.tree.Exponent(level, j)))
}

// fillPrices 把第 level 层全部节点的标的价格写入 dst
// 层内相邻节点的比值固定，用连乘代替逐点 Pow
func (l *Lattice) fillPrices(level int, dst []float64) {
	width := l.tree.Width(level)
	if width == 0 {
		return
	}
	dst[0] = l.NodePrice(level, 0)
	if width == 1 {
		return
	}
	ratio := math.Pow(l.params.Up, float64(l.tree.Exponent(level, 1)-l.tree.Exponent(level, 0)))
	for j := 1; j < width; j++ {
		dst[j] = dst[j-1] * ratio
	}
}
