// 文件: pkg/option/model.go
// 期权定价的输入模型
//
// Contract 和 Market 由调用方构造，定价过程中只读，不会被修改。

package option

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Right 期权方向
type Right uint8

const (
	Call Right = iota + 1 // 看涨
	Put                   // 看跌
)

func (r Right) String() string {
	switch r {
	case Call:
		return "call"
	case Put:
		return "put"
	default:
		return "unknown"
	}
}

// Style 行权方式
type Style uint8

const (
	European Style = iota + 1 // 只能到期行权
	American                  // 任意时刻行权
	Bermuda                   // 只在约定日期行权
)

func (s Style) String() string {
	switch s {
	case European:
		return "european"
	case American:
		return "american"
	case Bermuda:
		return "bermuda"
	default:
		return "unknown"
	}
}

// ParseRight 解析 "call" / "put" (大小写不敏感)
func ParseRight(s string) (Right, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c":
		return Call, nil
	case "put", "p":
		return Put, nil
	}
	return 0, fmt.Errorf("unknown option right %q", s)
}

// ParseStyle 解析 "european" / "american" / "bermuda"
func ParseStyle(s string) (Style, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "european", "eu":
		return European, nil
	case "american", "am":
		return American, nil
	case "bermuda", "bermudan", "be":
		return Bermuda, nil
	}
	return 0, fmt.Errorf("unknown exercise style %q", s)
}

// Contract 期权合约
//
// ExerciseTimes 只对 Bermuda 有意义：单调不减，且落在 [0, Maturity] 内（单位：年）。
// StartDate 可选；设置后定价器会用交易日历换算行权窗口和每日 Theta。
type Contract struct {
	Strike        float64
	Maturity      float64 // T，年
	Right         Right
	Style         Style
	ExerciseTimes []float64
	StartDate     time.Time
}

// Intrinsic 内在价值
func (c Contract) Intrinsic(underlying float64) float64 {
	if c.Right == Call {
		return math.Max(underlying-c.Strike, 0)
	}
	return math.Max(c.Strike-underlying, 0)
}

// IsCall 是否看涨
func (c Contract) IsCall() bool { return c.Right == Call }

// HasStartDate 是否带起始日期
func (c Contract) HasStartDate() bool { return !c.StartDate.IsZero() }

func (c Contract) String() string {
	return fmt.Sprintf("%s %s K=%g T=%g", c.Style, c.Right, c.Strike, c.Maturity)
}

// Market 市场状态快照
type Market struct {
	Spot  float64 // 标的现价
	Rate  float64 // 无风险利率 (连续复利)
	Yield float64 // 连续分红率 q
	Vol   float64 // 年化波动率
}

// YieldSource 分红抽象：给出等效连续分红率
type YieldSource interface {
	Yield(spot, rate, maturity float64) (float64, error)
}

// WithYield 返回用 src 计算出分红率的新 Market，原值不变
func (m Market) WithYield(src YieldSource, maturity float64) (Market, error) {
	q, err := src.Yield(m.Spot, m.Rate, maturity)
	if err != nil {
		return m, err
	}
	m.Yield = q
	return m, nil
}

// WithVol 返回替换波动率后的副本
func (m Market) WithVol(vol float64) Market {
	m.Vol = vol
	return m
}

// WithRate 返回替换利率后的副本
func (m Market) WithRate(rate float64) Market {
	m.Rate = rate
	return m
}

// WithSpot 返回替换现价后的副本
func (m Market) WithSpot(spot float64) Market {
	m.Spot = spot
	return m
}
