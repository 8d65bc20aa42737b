package risk

import (
	"max.com/optpricer/pkg/lattice"
	"max.com/optpricer/pkg/option"
)

// InstrumentType 仓位类型
//   - option     期权，走格点定价
//   - underlying 标的现货/期货对冲腿，线性
type InstrumentType string

const (
	InstrumentOption     InstrumentType = "option"
	InstrumentUnderlying InstrumentType = "underlying"
)

// 定价来源
const (
	SourceLattice    = "lattice"
	SourceClosedForm = "closed_form"
	SourceLinear     = "linear"
)

// Position 一条仓位
type Position struct {
	Instrument InstrumentType `json:"instrument"`

	// Symbol 标的代码，用来在 BookInput.Markets 中查找市场状态
	Symbol string `json:"symbol"`

	// Qty 数量 (正负表示方向)
	Qty float64 `json:"qty"`

	// Multiplier 合约乘数，0 按 1 处理
	Multiplier float64 `json:"multiplier,omitempty"`

	// EntryPrice 开仓均价 (标的仓位用于计算浮动盈亏)
	EntryPrice float64 `json:"entry_price,omitempty"`

	// Contract 期权条款，仅 option 仓位使用
	Contract option.Contract `json:"-"`
}

// BookInput 组合风险的统一输入
type BookInput struct {
	Positions []Position `json:"positions"`

	// Markets symbol → 市场状态
	Markets map[string]option.Market `json:"markets"`

	// Depth / Eps 为 0 时使用 lattice 的默认值
	Depth int     `json:"depth"`
	Eps   float64 `json:"eps"`

	// HedgeMultiplier 对冲用标的合约的乘数，0 按 1 处理
	HedgeMultiplier float64 `json:"hedge_multiplier,omitempty"`
}

// PositionRisk 单条仓位的定价结果 (已乘数量和乘数)
type PositionRisk struct {
	Symbol string           `json:"symbol"`
	Unit   float64          `json:"unit"` // 单位价格
	Value  float64          `json:"value"`
	PnL    float64          `json:"pnl"`
	Greeks lattice.GreekSet `json:"greeks"`
	Source string           `json:"source"`

	// Notional |Qty|·Multiplier·Spot，期权按标的名义计
	Notional float64 `json:"notional"`
}

// BookOutput 组合风险的统一输出
type BookOutput struct {
	// Value 组合市值
	Value float64 `json:"value"`

	// PnL 标的腿的浮动盈亏合计
	PnL float64 `json:"pnl"`

	// Greeks 各 Greek 合计
	Greeks lattice.GreekSet `json:"greeks"`

	// Notional 名义价值合计
	Notional float64 `json:"notional"`

	// HedgeQty 把组合 Delta 对冲到 0 还需的标的数量
	HedgeQty float64 `json:"hedge_qty"`

	Lines []PositionRisk `json:"lines"`

	// Warnings 提示信息 (比如某些仓位退回闭式解)
	Warnings []string `json:"warnings,omitempty"`
}
