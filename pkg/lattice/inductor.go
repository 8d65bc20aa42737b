package lattice

import (
	"math"

	"max.com/optpricer/pkg/option"
)

// retainedLevels Greeks 需要保留的近根层数 (0,1,2)
const retainedLevels = 3

// Level 被保留的一层：期权价值与对应的标的价格，均为拷贝
type Level struct {
	Values []float64
	Prices []float64
}

// Induction 一次反向归纳的结果
type Induction struct {
	Price    float64
	Retained [retainedLevels]Level // 仅 retain=true 时填充
	Params   Params
}

// Induct 从终端层开始逐层反向归纳到根节点
//
// 状态机：i = N-1 … 0；每层先算贴现期望，再按行权规则决定是否取内在价值。
//   - European: 只取期望，负值截断为 0 (浮点噪声)
//   - American: 每层取 max(期望, 内在价值)
//   - Bermuda:  仅 window 内的层取 max，其余同 European
//
// retain=true 时在覆盖前拷贝第 0、1、2 层，供 Greeks 使用。
func Induct(l *Lattice, window ExerciseWindow, retain bool) (Induction, error) {
	p := l.params
	n := p.Depth
	res := Induction{Params: p}

	exercise := exerciseMask(l.contract.Style, window, n)

	if retain && n < retainedLevels {
		res.Retained[n] = l.snapshot(n, l.values)
	}

	// 节点价格只在允许行权的层才需要，共用一块缓冲
	var prices []float64
	if exercise != nil {
		prices = make([]float64, len(l.values))
	}

	values := l.values
	offset := p.Branches - 1 // 上一层中 "上" 分支相对 j 的偏移
	for i := n - 1; i >= 0; i-- {
		width := l.tree.Width(i)
		canExercise := exercise != nil && exercise[i]
		if canExercise {
			l.fillPrices(i, prices)
		}

		for j := 0; j < width; j++ {
			var cont float64
			if p.Branches == 3 {
				cont = p.Disc * (p.PUp*values[j+2] + p.PMid*values[j+1] + p.PDown*values[j])
			} else {
				cont = p.Disc * (p.PUp*values[j+offset] + p.PDown*values[j])
			}

			if canExercise {
				values[j] = math.Max(cont, l.contract.Intrinsic(prices[j]))
			} else if cont < 0 {
				values[j] = 0
			} else {
				values[j] = cont
			}
		}

		if retain && i < retainedLevels {
			res.Retained[i] = l.snapshot(i, values)
		}
	}

	res.Price = values[0]
	if math.IsNaN(res.Price) || math.IsInf(res.Price, 0) {
		return Induction{}, &NumericalError{Quantity: "root value", Value: res.Price}
	}
	return res, nil
}

// snapshot 拷贝第 level 层，不与缓冲区共享内存
func (l *Lattice) snapshot(level int, values []float64) Level {
	width := l.tree.Width(level)
	lv := Level{
		Values: make([]float64, width),
		Prices: make([]float64, width),
	}
	copy(lv.Values, values[:width])
	l.fillPrices(level, lv.Prices)
	return lv
}

// exerciseMask nil 表示整棵树都不允许提前行权
func exerciseMask(style option.Style, window ExerciseWindow, n int) []bool {
	switch style {
	case option.American:
		m := make([]bool, n)
		for i := range m {
			m[i] = true
		}
		return m
	case option.Bermuda:
		if window.Empty() {
			return nil
		}
		return window.mask(n)
	default:
		return nil
	}
}
