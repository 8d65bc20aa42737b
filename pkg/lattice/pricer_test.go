package lattice

import (
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"max.com/optpricer/pkg/option"
	"max.com/optpricer/pkg/risk/options"
)

func quietLogger() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestPricer(tree Tree, opts ...Option) *Pricer {
	return NewPricer(tree, append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func TestPrice_AmericanCallReference(t *testing.T) {
	// S=100,K=120,r=.05,T=.5,vol=.2,q=0,N=1000 → ≈1.02
	c := option.Contract{Strike: 120, Maturity: 0.5, Right: option.Call, Style: option.American}
	m := option.Market{Spot: 100, Rate: 0.05, Vol: 0.2}

	for _, tc := range []struct {
		tree  Tree
		depth int
	}{{Binomial, 1000}, {Trinomial, 500}} {
		price, err := newTestPricer(tc.tree).Price(c, m, tc.depth, DefaultTolerance)
		require.NoError(t, err)
		require.InDelta(t, 1.0227329188, price, 1e-6, tc.tree.Name())
	}
}

func TestPrice_EuropeanConvergesToClosedForm(t *testing.T) {
	// S=100,K=110,r=.08,T=.5,vol=.2,q=.004 → ≈3.32
	c := option.Contract{Strike: 110, Maturity: 0.5, Right: option.Call, Style: option.European}
	m := option.Market{Spot: 100, Rate: 0.08, Yield: 0.004, Vol: 0.2}

	bs, err := options.PriceCallBS(m.Spot, c.Strike, m.Rate, m.Yield, m.Vol, c.Maturity)
	require.NoError(t, err)

	price, err := newTestPricer(Binomial).Price(c, m, 2000, DefaultTolerance)
	require.NoError(t, err)
	require.InDelta(t, 3.32, price, 5e-3)
	require.InDelta(t, bs, price, 1e-2)

	price, err = newTestPricer(Binomial).Price(c, m, 1000, DefaultTolerance)
	require.NoError(t, err)
	require.InDelta(t, bs, price, 1e-2)

	price, err = newTestPricer(Trinomial).Price(c, m, 1000, DefaultTolerance)
	require.NoError(t, err)
	require.InDelta(t, bs, price, 1e-2)
}

func TestPrice_EuropeanParityAtDepth5000(t *testing.T) {
	c := option.Contract{Strike: 110, Maturity: 0.5, Right: option.Call, Style: option.European}
	m := option.Market{Spot: 100, Rate: 0.08, Yield: 0.004, Vol: 0.2}

	bs, err := options.PriceCallBS(m.Spot, c.Strike, m.Rate, m.Yield, m.Vol, c.Maturity)
	require.NoError(t, err)

	for _, tree := range []Tree{Binomial, Trinomial} {
		price, err := newTestPricer(tree).Price(c, m, 5000, DefaultTolerance)
		require.NoError(t, err)
		require.InDelta(t, bs, price, 1e-4, tree.Name())
	}
}

func TestPrice_EarlyExerciseOrdering(t *testing.T) {
	m := option.Market{Spot: 100, Rate: 0.05, Vol: 0.2}
	p := newTestPricer(Binomial)

	for _, right := range []option.Right{option.Call, option.Put} {
		eu, err := p.Price(option.Contract{Strike: 100, Maturity: 1, Right: right, Style: option.European}, m, 500, DefaultTolerance)
		require.NoError(t, err)
		am, err := p.Price(option.Contract{Strike: 100, Maturity: 1, Right: right, Style: option.American}, m, 500, DefaultTolerance)
		require.NoError(t, err)

		require.GreaterOrEqual(t, eu, 0.0)
		require.GreaterOrEqual(t, am, eu)

		if right == option.Call {
			// 无分红看涨不会提前行权
			require.InDelta(t, eu, am, 1e-9)
		} else {
			require.Greater(t, am, eu+0.1)
		}
	}
}

func TestPrice_Monotonicity(t *testing.T) {
	p := newTestPricer(Binomial)
	m := option.Market{Spot: 100, Rate: 0.03, Yield: 0.01, Vol: 0.25}

	for _, style := range []option.Style{option.European, option.American} {
		prevCall, prevPut := -1.0, 1e9
		for spot := 70.0; spot <= 130; spot += 5 {
			mk := m.WithSpot(spot)
			call, err := p.Price(option.Contract{Strike: 100, Maturity: 1, Right: option.Call, Style: style}, mk, 300, DefaultTolerance)
			require.NoError(t, err)
			put, err := p.Price(option.Contract{Strike: 100, Maturity: 1, Right: option.Put, Style: style}, mk, 300, DefaultTolerance)
			require.NoError(t, err)

			require.GreaterOrEqual(t, call, prevCall, "call spot=%v", spot)
			require.LessOrEqual(t, put, prevPut, "put spot=%v", spot)
			prevCall, prevPut = call, put
		}

		prevCall, prevPut = 1e9, -1.0
		for strike := 70.0; strike <= 130; strike += 5 {
			call, err := p.Price(option.Contract{Strike: strike, Maturity: 1, Right: option.Call, Style: style}, m, 300, DefaultTolerance)
			require.NoError(t, err)
			put, err := p.Price(option.Contract{Strike: strike, Maturity: 1, Right: option.Put, Style: style}, m, 300, DefaultTolerance)
			require.NoError(t, err)

			require.LessOrEqual(t, call, prevCall, "call strike=%v", strike)
			require.GreaterOrEqual(t, put, prevPut, "put strike=%v", strike)
			prevCall, prevPut = call, put
		}
	}
}

func TestPrice_BermudaBetweenEuropeanAndAmerican(t *testing.T) {
	p := newTestPricer(Binomial)
	m := option.Market{Spot: 100, Rate: 0.08, Vol: 0.3}
	base := option.Contract{Strike: 110, Maturity: 0.5, Right: option.Put}

	price := func(style option.Style, times []float64) float64 {
		c := base
		c.Style = style
		c.ExerciseTimes = times
		v, err := p.Price(c, m, 500, DefaultTolerance)
		require.NoError(t, err)
		return v
	}

	eu := price(option.European, nil)
	be := price(option.Bermuda, []float64{0.15, 0.3, 0.45})
	am := price(option.American, nil)

	require.Greater(t, be, eu)
	require.Less(t, be, am)

	// 没有行权日的 Bermuda 按 European 处理
	require.Equal(t, eu, price(option.Bermuda, nil))
}

func TestPrice_ConfigurationErrorBeforeBuild(t *testing.T) {
	c := option.Contract{Strike: 100, Maturity: 1, Right: option.Call, Style: option.European}
	m := option.Market{Spot: 100, Rate: 0.1, Vol: 0.01}

	_, err := newTestPricer(Binomial).Price(c, m, 10, DefaultTolerance)
	require.ErrorIs(t, err, ErrConfiguration)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	require.GreaterOrEqual(t, cfgErr.MinDepth, 100)
}

func TestPrice_DomainErrors(t *testing.T) {
	p := newTestPricer(Binomial)
	m := option.Market{Spot: 100, Rate: 0.05, Vol: 0.2}

	cases := map[string]struct {
		c option.Contract
		m option.Market
	}{
		"spot":         {option.Contract{Strike: 100, Maturity: 1, Right: option.Call, Style: option.European}, m.WithSpot(-1)},
		"strike":       {option.Contract{Strike: 0, Maturity: 1, Right: option.Call, Style: option.European}, m},
		"maturity":     {option.Contract{Strike: 100, Maturity: 0, Right: option.Call, Style: option.European}, m},
		"style":        {option.Contract{Strike: 100, Maturity: 1, Right: option.Call}, m},
		"unsorted":     {option.Contract{Strike: 100, Maturity: 1, Right: option.Put, Style: option.Bermuda, ExerciseTimes: []float64{0.5, 0.2}}, m},
		"past expiry":  {option.Contract{Strike: 100, Maturity: 1, Right: option.Put, Style: option.Bermuda, ExerciseTimes: []float64{0.5, 1.5}}, m},
		"negative vol": {option.Contract{Strike: 100, Maturity: 1, Right: option.Put, Style: option.European}, m.WithVol(-0.2)},
	}

	for name, tc := range cases {
		_, err := p.Price(tc.c, tc.m, 100, DefaultTolerance)
		require.ErrorIs(t, err, ErrDomain, name)
	}

	_, err := p.Price(option.Contract{Strike: 100, Maturity: 1, Right: option.Call, Style: option.European}, m, 0, DefaultTolerance)
	require.ErrorIs(t, err, ErrDomain)
}

func TestPrice_Smoothing(t *testing.T) {
	c := option.Contract{Strike: 100, Maturity: 1, Right: option.Put, Style: option.European}
	m := option.Market{Spot: 100, Rate: 0.05, Vol: 0.2}

	plain := newTestPricer(Binomial)
	a, err := plain.Price(c, m, 200, DefaultTolerance)
	require.NoError(t, err)
	b, err := plain.Price(c, m, 201, DefaultTolerance)
	require.NoError(t, err)

	smoothed, err := newTestPricer(Binomial, WithSmoothing(true)).Price(c, m, 200, DefaultTolerance)
	require.NoError(t, err)
	require.InDelta(t, (a+b)/2, smoothed, 1e-12)

	bs, _ := options.PricePutBS(100, 100, 0.05, 0, 0.2, 1)
	require.LessOrEqual(t, abs(smoothed-bs), abs(a-bs)+1e-12)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// =============================================================================
// Greeks
// =============================================================================

func TestGreeks_EuropeanMatchesClosedForm(t *testing.T) {
	c := option.Contract{Strike: 100, Maturity: 0.75, Right: option.Call, Style: option.European}
	m := option.Market{Spot: 100, Rate: 0.05, Yield: 0.02, Vol: 0.25}
	want, err := options.All(option.Call, 100, 100, 0.05, 0.02, 0.25, 0.75)
	require.NoError(t, err)

	for _, tree := range []Tree{Binomial, Trinomial} {
		got, err := newTestPricer(tree, WithThetaPerDay(false)).Greeks(c, m, 400, DefaultTolerance)
		require.NoError(t, err)
		require.Len(t, got, 5)

		require.InDelta(t, want.Delta, got[Delta], 1e-3, tree.Name())
		require.InDelta(t, want.Gamma, got[Gamma], 1e-3, tree.Name())
		require.InDelta(t, want.Theta, got[Theta], 0.05, tree.Name())
		require.InDelta(t, want.Vega, got[Vega], 0.1, tree.Name())
		require.InDelta(t, want.Rho, got[Rho], 0.05, tree.Name())
	}
}

func TestGreeks_EmbeddedDeltaMatchesBumpDelta(t *testing.T) {
	c := option.Contract{Strike: 105, Maturity: 1, Right: option.Put, Style: option.American}
	m := option.Market{Spot: 100, Rate: 0.05, Vol: 0.3}
	depth := 400
	dT := c.Maturity / float64(depth)

	for _, tree := range []Tree{Binomial, Trinomial} {
		p := newTestPricer(tree)
		delta, err := p.Greek(c, m, depth, DefaultTolerance, Delta)
		require.NoError(t, err)

		h := 0.01
		up, err := p.Price(c, m.WithSpot(m.Spot+h), depth, DefaultTolerance)
		require.NoError(t, err)
		down, err := p.Price(c, m.WithSpot(m.Spot-h), depth, DefaultTolerance)
		require.NoError(t, err)

		require.InDelta(t, (up-down)/(2*h), delta, 5*dT, tree.Name())
	}
}

func TestGreeks_BermudaRho(t *testing.T) {
	// Bermuda put, 行权日 [.15,.3,.45], S=100,K=110,r=.08,T=.5,vol=.3 → rho ≈ -22.5
	c := option.Contract{
		Strike:        110,
		Maturity:      0.5,
		Right:         option.Put,
		Style:         option.Bermuda,
		ExerciseTimes: []float64{0.15, 0.3, 0.45},
	}
	m := option.Market{Spot: 100, Rate: 0.08, Vol: 0.3}

	rho, err := newTestPricer(Trinomial).Greek(c, m, 500, DefaultTolerance, Rho)
	require.NoError(t, err)
	require.InDelta(t, -22.5, rho, 0.05)

	rho, err = newTestPricer(Binomial).Greek(c, m, 500, DefaultTolerance, Rho)
	require.NoError(t, err)
	require.InDelta(t, -22.5, rho, 0.5)

	// 输入不被修改
	require.Equal(t, []float64{0.15, 0.3, 0.45}, c.ExerciseTimes)
	require.Equal(t, 0.08, m.Rate)
}

func TestGreeks_SubsetOnly(t *testing.T) {
	c := option.Contract{Strike: 100, Maturity: 1, Right: option.Call, Style: option.American}
	m := option.Market{Spot: 100, Rate: 0.05, Vol: 0.2}

	got, err := newTestPricer(Binomial).Greeks(c, m, 100, DefaultTolerance, Vega)
	require.NoError(t, err)
	require.Len(t, got, 1)
	_, ok := got.Get(Delta)
	require.False(t, ok)
	v, ok := got.Get(Vega)
	require.True(t, ok)
	require.Greater(t, v, 0.0)
}

func TestPriceAndGreeks_SingleInduction(t *testing.T) {
	c := option.Contract{Strike: 100, Maturity: 1, Right: option.Put, Style: option.American}
	m := option.Market{Spot: 100, Rate: 0.05, Vol: 0.2}

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(log.DebugLevel)
	p := NewPricer(Binomial, WithLogger(logger))

	price, err := p.Price(c, m, 300, DefaultTolerance)
	require.NoError(t, err)
	greeks, err := p.Greeks(c, m, 300, DefaultTolerance)
	require.NoError(t, err)

	// 每次归纳记一条 "[Lattice] priced"
	hook.Reset()
	got, set, err := p.PriceAndGreeks(c, m, 300, DefaultTolerance, Delta, Gamma, Theta)
	require.NoError(t, err)
	require.Len(t, hook.AllEntries(), 1)
	require.Equal(t, price, got)
	for _, g := range []Greek{Delta, Gamma, Theta} {
		require.Equal(t, greeks[g], set[g], g.String())
	}

	// Vega/Rho 各两次重估
	hook.Reset()
	got, set, err = p.PriceAndGreeks(c, m, 300, DefaultTolerance)
	require.NoError(t, err)
	require.Len(t, hook.AllEntries(), 5)
	require.Equal(t, price, got)
	require.Equal(t, greeks, set)

	hook.Reset()
	got, set, err = p.PriceAndGreeks(c, m, 300, DefaultTolerance, Vega)
	require.NoError(t, err)
	require.Len(t, hook.AllEntries(), 3)
	require.Equal(t, price, got)
	require.Len(t, set, 1)
}

func TestPriceAndGreeks_Smoothing(t *testing.T) {
	c := option.Contract{Strike: 100, Maturity: 1, Right: option.Put, Style: option.American}
	m := option.Market{Spot: 100, Rate: 0.05, Vol: 0.2}
	p := newTestPricer(Binomial, WithSmoothing(true))

	want, err := p.Price(c, m, 200, DefaultTolerance)
	require.NoError(t, err)
	got, set, err := p.PriceAndGreeks(c, m, 200, DefaultTolerance, Delta)
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.Less(t, set[Delta], 0.0)
}

func TestGreeks_Errors(t *testing.T) {
	c := option.Contract{Strike: 100, Maturity: 1, Right: option.Call, Style: option.European}
	m := option.Market{Spot: 100, Rate: 0.05, Vol: 0.2}

	_, err := newTestPricer(Binomial).Greeks(c, m, 1, DefaultTolerance, Gamma)
	require.ErrorIs(t, err, ErrDomain)

	_, err = newTestPricer(Binomial, WithBumps(0, 0)).Greeks(c, m, 100, DefaultTolerance, Vega)
	require.ErrorIs(t, err, ErrNumerical)
}

type fakeCalendar struct {
	days int
	frac float64
}

func (f fakeCalendar) TradingDaysInRange(time.Time, float64) (int, error) { return f.days, nil }

func (f fakeCalendar) FractionOfYearPerDay(time.Time, float64) (float64, error) { return f.frac, nil }

func TestGreeks_ThetaNormalisation(t *testing.T) {
	c := option.Contract{Strike: 95, Maturity: 0.5, Right: option.Put, Style: option.European}
	m := option.Market{Spot: 100, Rate: 0.05, Vol: 0.2}

	annual, err := newTestPricer(Binomial, WithThetaPerDay(false)).Greek(c, m, 200, DefaultTolerance, Theta)
	require.NoError(t, err)

	perDay, err := newTestPricer(Binomial).Greek(c, m, 200, DefaultTolerance, Theta)
	require.NoError(t, err)
	require.InDelta(t, annual/TradingDaysPerYear, perDay, 1e-12)

	c.StartDate = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	cal := fakeCalendar{days: 125, frac: 0.5 / 125}
	withCal, err := newTestPricer(Binomial, WithCalendar(cal)).Greek(c, m, 200, DefaultTolerance, Theta)
	require.NoError(t, err)
	require.InDelta(t, annual*0.5/125, withCal, 1e-12)
}

func TestPrice_CalendarForwardWindow(t *testing.T) {
	c := option.Contract{
		Strike:        110,
		Maturity:      0.5,
		Right:         option.Put,
		Style:         option.Bermuda,
		ExerciseTimes: []float64{0.15, 0.3, 0.45},
		StartDate:     time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	m := option.Market{Spot: 100, Rate: 0.08, Vol: 0.3}

	narrow, err := newTestPricer(Binomial, WithCalendar(fakeCalendar{days: 126, frac: 0.5 / 126})).Price(c, m, 500, DefaultTolerance)
	require.NoError(t, err)
	wide, err := newTestPricer(Binomial, WithCalendar(fakeCalendar{days: 126, frac: 0.05})).Price(c, m, 500, DefaultTolerance)
	require.NoError(t, err)

	// 行权窗口越宽，可行权层越多，价值不减
	require.GreaterOrEqual(t, wide, narrow)
}

func TestImpliedVol_RoundTrip(t *testing.T) {
	c := option.Contract{Strike: 105, Maturity: 0.75, Right: option.Put, Style: option.American}
	m := option.Market{Spot: 100, Rate: 0.04, Yield: 0.01, Vol: 0.32}
	p := newTestPricer(Binomial)

	target, err := p.Price(c, m, 300, DefaultTolerance)
	require.NoError(t, err)

	iv, err := p.ImpliedVol(c, m.WithVol(0.1), target, 300, DefaultTolerance)
	require.NoError(t, err)
	require.InDelta(t, 0.32, iv, 1e-4)
}

func TestImpliedVol_RejectsNonPositiveTarget(t *testing.T) {
	c := option.Contract{Strike: 105, Maturity: 0.75, Right: option.Put, Style: option.American}
	m := option.Market{Spot: 100, Rate: 0.04, Vol: 0.32}

	_, err := newTestPricer(Binomial).ImpliedVol(c, m, 0, 100, DefaultTolerance)
	require.ErrorIs(t, err, ErrDomain)
}

func TestGreekSet_JSONKeysAreNames(t *testing.T) {
	set := GreekSet{Delta: 0.5, Theta: -0.01}
	b, err := json.Marshal(set)
	require.NoError(t, err)
	require.JSONEq(t, `{"delta":0.5,"theta":-0.01}`, string(b))

	var back GreekSet
	require.NoError(t, json.Unmarshal([]byte(`{"DELTA":0.5,"rho":0.3}`), &back))
	require.Equal(t, GreekSet{Delta: 0.5, Rho: 0.3}, back)

	require.Error(t, json.Unmarshal([]byte(`{"vanna":1}`), &back))

	_, err = json.Marshal(GreekSet{Greek(9): 1})
	require.Error(t, err)

	g, err := ParseGreek(" Vega ")
	require.NoError(t, err)
	require.Equal(t, Vega, g)
}
