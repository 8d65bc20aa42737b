// 文件: pkg/dividend/dividend.go
// 分红：连续分红率，或离散的 (金额, 时间) 派息序列
//
// 格点只接受连续分红率，离散派息通过 Yield 折算成等效的连续分红率。

package dividend

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalid 分红参数非法
var ErrInvalid = errors.New("invalid dividend")

// Payment 一次离散派息
type Payment struct {
	Amount float64 // 每股金额
	Time   float64 // 距今年数
}

// Dividend 分红模型，零值表示无分红
type Dividend struct {
	rate     float64
	payments []Payment
	discrete bool
}

// Continuous 连续分红率 q
func Continuous(q float64) (Dividend, error) {
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return Dividend{}, fmt.Errorf("%w: rate %v", ErrInvalid, q)
	}
	return Dividend{rate: q}, nil
}

// Discrete 离散派息，按时间排序后保存副本
func Discrete(payments []Payment) (Dividend, error) {
	if len(payments) == 0 {
		return Dividend{}, fmt.Errorf("%w: no payments", ErrInvalid)
	}
	ps := make([]Payment, len(payments))
	copy(ps, payments)
	for _, p := range ps {
		if !(p.Amount >= 0) || math.IsInf(p.Amount, 0) {
			return Dividend{}, fmt.Errorf("%w: amount %v", ErrInvalid, p.Amount)
		}
		if !(p.Time >= 0) || math.IsInf(p.Time, 0) {
			return Dividend{}, fmt.Errorf("%w: time %v", ErrInvalid, p.Time)
		}
	}
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].Time < ps[j].Time })
	return Dividend{payments: ps, discrete: true}, nil
}

// IsDiscrete 是否离散派息
func (d Dividend) IsDiscrete() bool { return d.discrete }

// Payments 派息副本；连续分红返回 nil
func (d Dividend) Payments() []Payment {
	if !d.discrete {
		return nil
	}
	out := make([]Payment, len(d.payments))
	copy(out, d.payments)
	return out
}

// Discount 折现因子
//   - 连续: exp(-q·T)
//   - 离散: T 之前全部派息按利率 r 折现后的合计
func (d Dividend) Discount(r, T float64) float64 {
	if !d.discrete {
		return math.Exp(-d.rate * T)
	}
	return d.PresentValue(r, T)
}

// PresentValue 到期 T 之前派息的现值；连续分红返回 0
func (d Dividend) PresentValue(r, T float64) float64 {
	var pv float64
	for _, p := range d.payments {
		if p.Time > T {
			break
		}
		pv += p.Amount * math.Exp(-r*p.Time)
	}
	return pv
}

// Rate 名义分红率：连续时为 q，离散时为派息总额除以覆盖的年数
func (d Dividend) Rate() float64 {
	if !d.discrete {
		return d.rate
	}
	span := d.payments[len(d.payments)-1].Time - d.payments[0].Time
	if span == 0 {
		span = d.payments[0].Time
	}
	if span == 0 {
		return 0
	}
	var sum float64
	for _, p := range d.payments {
		sum += p.Amount
	}
	return sum / span
}

// Yield 等效连续分红率，满足 spot·exp(-q·T) = spot - PV
func (d Dividend) Yield(spot, rate, maturity float64) (float64, error) {
	if !d.discrete {
		return d.rate, nil
	}
	if !(spot > 0) {
		return 0, fmt.Errorf("%w: spot %v", ErrInvalid, spot)
	}
	if !(maturity > 0) {
		return 0, fmt.Errorf("%w: maturity %v", ErrInvalid, maturity)
	}
	pv := d.PresentValue(rate, maturity)
	if pv >= spot {
		return 0, fmt.Errorf("%w: dividend present value %.6f exceeds spot %.6f", ErrInvalid, pv, spot)
	}
	return -math.Log(1-pv/spot) / maturity, nil
}

func (d Dividend) String() string {
	if d.discrete {
		return fmt.Sprintf("discrete(%d payments)", len(d.payments))
	}
	return fmt.Sprintf("continuous(%g)", d.rate)
}
