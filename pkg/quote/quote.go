// 文件: pkg/quote/quote.go
// 对外发布的报价：定价结果转成定点小数，带唯一 ID

package quote

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"max.com/optpricer/pkg/lattice"
	"max.com/optpricer/pkg/option"
)

const (
	// PriceScale 价格、行权价保留的小数位
	PriceScale = 6
	// GreekScale Greeks 保留的小数位
	GreekScale = 8

	DefaultSubject = "options.quotes"
	DefaultTopic   = "option_quotes"
)

// Quote 一条期权报价
type Quote struct {
	ID       int64                      `json:"id"`
	Symbol   string                     `json:"symbol"`
	Right    string                     `json:"right"`
	Style    string                     `json:"style"`
	Strike   decimal.Decimal            `json:"strike"`
	Maturity float64                    `json:"maturity"`
	Spot     decimal.Decimal            `json:"spot"`
	Vol      decimal.Decimal            `json:"vol"`
	Tree     string                     `json:"tree"`
	Depth    int                        `json:"depth"`
	Price    decimal.Decimal            `json:"price"`
	Greeks   map[string]decimal.Decimal `json:"greeks,omitempty"`
	PricedAt time.Time                  `json:"priced_at"`
}

// NewQuote 由一次定价结果生成报价，greeks 可为 nil
func NewQuote(symbol string, c option.Contract, m option.Market, tree string, depth int, price float64, greeks lattice.GreekSet) Quote {
	q := Quote{
		ID:       NextID(),
		Symbol:   symbol,
		Right:    c.Right.String(),
		Style:    c.Style.String(),
		Strike:   decimal.NewFromFloat(c.Strike).Round(PriceScale),
		Maturity: c.Maturity,
		Spot:     decimal.NewFromFloat(m.Spot).Round(PriceScale),
		Vol:      decimal.NewFromFloat(m.Vol).Round(GreekScale),
		Tree:     tree,
		Depth:    depth,
		Price:    decimal.NewFromFloat(price).Round(PriceScale),
		PricedAt: time.Now().UTC(),
	}
	if len(greeks) > 0 {
		q.Greeks = make(map[string]decimal.Decimal, len(greeks))
		for g, v := range greeks {
			q.Greeks[g.String()] = decimal.NewFromFloat(v).Round(GreekScale)
		}
	}
	return q
}

// Key 分区 key：同一标的的报价落在同一分区，保证顺序
func (q Quote) Key() string {
	if q.Symbol != "" {
		return q.Symbol
	}
	return strconv.FormatInt(q.ID, 10)
}

// Encode JSON 编码
func (q Quote) Encode() ([]byte, error) {
	return json.Marshal(q)
}

// Decode JSON 解码
func Decode(data []byte) (Quote, error) {
	var q Quote
	err := json.Unmarshal(data, &q)
	return q, err
}
