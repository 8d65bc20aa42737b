package risk

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"max.com/optpricer/pkg/lattice"
	"max.com/optpricer/pkg/option"
	"max.com/optpricer/pkg/risk/options"
)

func quietEngine() *Engine {
	l := log.New()
	l.SetOutput(io.Discard)
	return NewEngine(lattice.NewPricer(lattice.Binomial, lattice.WithLogger(l)), WithLogger(l))
}

var atmCall = option.Contract{Strike: 100, Maturity: 1, Right: option.Call, Style: option.European}

func TestComputeBook_SingleEuropean(t *testing.T) {
	e := quietEngine()

	in := BookInput{
		Positions: []Position{{Instrument: InstrumentOption, Symbol: "SPX", Qty: 10, Contract: atmCall}},
		Markets:   map[string]option.Market{"SPX": {Spot: 100, Rate: 0.05, Vol: 0.2}},
		Depth:     400,
	}
	out, err := e.ComputeBook(in)
	require.NoError(t, err)
	require.Len(t, out.Lines, 1)
	require.Equal(t, SourceLattice, out.Lines[0].Source)
	require.Empty(t, out.Warnings)

	// 闭式解 10.4506
	require.InDelta(t, 10.450583572185565, out.Lines[0].Unit, 0.02)
	require.InDelta(t, 10*out.Lines[0].Unit, out.Value, 1e-9)
	require.InDelta(t, 10*0.6368306511756191, out.Greeks[lattice.Delta], 0.01)

	for _, g := range lattice.AllGreeks {
		_, ok := out.Greeks.Get(g)
		require.True(t, ok, g.String())
	}
}

func TestComputeBook_DeltaHedge(t *testing.T) {
	e := quietEngine()
	markets := map[string]option.Market{"SPX": {Spot: 100, Rate: 0.05, Vol: 0.2}}

	first, err := e.ComputeBook(BookInput{
		Positions: []Position{{Instrument: InstrumentOption, Symbol: "SPX", Qty: 10, Contract: atmCall}},
		Markets:   markets,
		Depth:     200,
	})
	require.NoError(t, err)
	delta := first.Greeks[lattice.Delta]

	out, err := e.ComputeBook(BookInput{
		Positions: []Position{
			{Instrument: InstrumentOption, Symbol: "SPX", Qty: 10, Contract: atmCall},
			{Instrument: InstrumentUnderlying, Symbol: "SPX", Qty: -delta, EntryPrice: 98},
		},
		Markets: markets,
		Depth:   200,
	})
	require.NoError(t, err)
	require.Len(t, out.Lines, 2)
	require.Equal(t, SourceLinear, out.Lines[1].Source)
	require.InDelta(t, 0, out.Greeks[lattice.Delta], 1e-9)
	require.InDelta(t, -delta*2, out.PnL, 1e-9)
	// 标的腿不贡献 Gamma/Vega
	require.InDelta(t, first.Greeks[lattice.Gamma], out.Greeks[lattice.Gamma], 1e-12)
	require.InDelta(t, first.Greeks[lattice.Vega], out.Greeks[lattice.Vega], 1e-12)
}

func TestComputeBook_HedgeQtyAndNotional(t *testing.T) {
	e := quietEngine()
	markets := map[string]option.Market{"SPX": {Spot: 100, Rate: 0.05, Vol: 0.2}}
	opt := Position{Instrument: InstrumentOption, Symbol: "SPX", Qty: 10, Multiplier: 100, Contract: atmCall}

	out, err := e.ComputeBook(BookInput{Positions: []Position{opt}, Markets: markets, Depth: 200, HedgeMultiplier: 50})
	require.NoError(t, err)
	require.InDelta(t, 10*100*100, out.Notional, 1e-9)
	require.InDelta(t, -out.Greeks[lattice.Delta]/50, out.HedgeQty, 1e-12)

	// 按 HedgeQty 下单后 Delta 归零
	hedged, err := e.ComputeBook(BookInput{
		Positions:       []Position{opt, {Instrument: InstrumentUnderlying, Symbol: "SPX", Qty: out.HedgeQty, Multiplier: 50}},
		Markets:         markets,
		Depth:           200,
		HedgeMultiplier: 50,
	})
	require.NoError(t, err)
	require.InDelta(t, 0, hedged.Greeks[lattice.Delta], 1e-9)
	require.InDelta(t, 0, hedged.HedgeQty, 1e-9)
	require.InDelta(t, out.Notional+math.Abs(out.HedgeQty)*50*100, hedged.Notional, 1e-9)

	b, err := json.Marshal(hedged)
	require.NoError(t, err)
	require.Contains(t, string(b), `"delta":`)
	require.Contains(t, string(b), `"hedge_qty":`)

	_, err = e.ComputeBook(BookInput{Positions: []Position{opt}, Markets: markets, HedgeMultiplier: -1})
	require.Error(t, err)
}

func TestComputeBook_LongShortNets(t *testing.T) {
	e := quietEngine()
	out, err := e.ComputeBook(BookInput{
		Positions: []Position{
			{Instrument: InstrumentOption, Symbol: "SPX", Qty: 5, Multiplier: 100, Contract: atmCall},
			{Instrument: InstrumentOption, Symbol: "SPX", Qty: -500, Contract: atmCall},
		},
		Markets: map[string]option.Market{"SPX": {Spot: 100, Rate: 0.05, Vol: 0.2}},
		Depth:   100,
	})
	require.NoError(t, err)
	require.InDelta(t, 0, out.Value, 1e-9)
	for _, g := range lattice.AllGreeks {
		require.InDelta(t, 0, out.Greeks[g], 1e-9, g.String())
	}
}

func TestComputeBook_ClosedFormFallback(t *testing.T) {
	e := quietEngine()

	// vol=1%, r=10% 时二叉树最小深度约 100，深度 50 不够
	c := option.Contract{Strike: 100, Maturity: 1, Right: option.Put, Style: option.European}
	m := option.Market{Spot: 100, Rate: 0.1, Vol: 0.01}

	out, err := e.ComputeBook(BookInput{
		Positions: []Position{
			{Instrument: InstrumentOption, Symbol: "LOWVOL", Qty: 1, Contract: c},
			{Instrument: InstrumentOption, Symbol: "LOWVOL", Qty: 2, Contract: c},
		},
		Markets: map[string]option.Market{"LOWVOL": m},
		Depth:   50,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"closed-form fallback for LOWVOL"}, out.Warnings)
	require.Equal(t, SourceClosedForm, out.Lines[0].Source)

	cf, err := options.All(c.Right, m.Spot, c.Strike, m.Rate, m.Yield, m.Vol, c.Maturity)
	require.NoError(t, err)
	require.InDelta(t, 3*cf.Price, out.Value, 1e-12)
	require.InDelta(t, 3*cf.Delta, out.Greeks[lattice.Delta], 1e-12)
	require.InDelta(t, 3*cf.Theta/lattice.TradingDaysPerYear, out.Greeks[lattice.Theta], 1e-12)
}

func TestComputeBook_AmericanDoesNotFallBack(t *testing.T) {
	e := quietEngine()
	c := option.Contract{Strike: 100, Maturity: 1, Right: option.Put, Style: option.American}

	_, err := e.ComputeBook(BookInput{
		Positions: []Position{{Instrument: InstrumentOption, Symbol: "LOWVOL", Qty: 1, Contract: c}},
		Markets:   map[string]option.Market{"LOWVOL": {Spot: 100, Rate: 0.1, Vol: 0.01}},
		Depth:     50,
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, lattice.ErrConfiguration))

	var cfg *lattice.ConfigurationError
	require.True(t, errors.As(err, &cfg))
	require.Greater(t, cfg.MinDepth, 50)
}

func TestComputeBook_InvalidInput(t *testing.T) {
	e := quietEngine()
	markets := map[string]option.Market{"SPX": {Spot: 100, Rate: 0.05, Vol: 0.2}}

	_, err := e.ComputeBook(BookInput{Markets: markets})
	require.Error(t, err)

	_, err = e.ComputeBook(BookInput{Positions: []Position{{Instrument: InstrumentUnderlying, Symbol: "SPX", Qty: 1}}})
	require.Error(t, err)

	_, err = e.ComputeBook(BookInput{
		Positions: []Position{{Instrument: InstrumentUnderlying, Symbol: "NDX", Qty: 1}},
		Markets:   markets,
	})
	require.ErrorContains(t, err, "missing market for: NDX")

	_, err = e.ComputeBook(BookInput{
		Positions: []Position{{Instrument: "perp", Symbol: "SPX", Qty: 1}},
		Markets:   markets,
	})
	require.ErrorContains(t, err, "unknown instrument")
}

func TestDedup(t *testing.T) {
	require.Nil(t, dedup(nil))
	require.Equal(t, []string{"a", "b"}, dedup([]string{"a", "b", "a"}))
}
