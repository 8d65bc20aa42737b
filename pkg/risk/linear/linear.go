package linear

// Position 线性头寸 (标的现货 / 期货对冲腿)
// 字段按 8 字节对齐，值传递
type Position struct {
	Qty        float64 // 数量 (+多, -空)
	EntryPrice float64 // 开仓均价，0 表示不计盈亏
	MarkPrice  float64 // 标记价格
	Multiplier float64 // 合约乘数，0 按 1 处理
}

// Metrics 线性头寸的风险指标
type Metrics struct {
	Notional      float64 // |Qty|·Mark·Multiplier
	Value         float64 // Qty·Mark·Multiplier (带方向)
	UnrealizedPnL float64 // Qty·(Mark-Entry)·Multiplier
	Delta         float64 // 对标的价格的一阶敏感度
}

// Calculate 线性头寸只有 Delta，其余 Greeks 恒为 0
func Calculate(pos Position) Metrics {
	mult := pos.Multiplier
	if mult == 0 {
		mult = 1
	}

	absQty := pos.Qty
	if absQty < 0 {
		absQty = -absQty
	}

	// Qty 为负时，(Mark < Entry) 结果为正
	var pnl float64
	if pos.EntryPrice > 0 {
		pnl = pos.Qty * (pos.MarkPrice - pos.EntryPrice) * mult
	}

	return Metrics{
		Notional:      absQty * pos.MarkPrice * mult,
		Value:         pos.Qty * pos.MarkPrice * mult,
		UnrealizedPnL: pnl,
		Delta:         pos.Qty * mult,
	}
}

// HedgeQty 把组合 Delta 对冲到 0 所需的标的数量
func HedgeQty(bookDelta, multiplier float64) float64 {
	if multiplier == 0 {
		multiplier = 1
	}
	return -bookDelta / multiplier
}
