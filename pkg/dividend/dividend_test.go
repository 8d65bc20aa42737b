package dividend

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"max.com/optpricer/pkg/option"
)

var _ option.YieldSource = Dividend{}

func TestContinuous(t *testing.T) {
	d, err := Continuous(0.03)
	require.NoError(t, err)
	require.False(t, d.IsDiscrete())
	require.Nil(t, d.Payments())

	q, err := d.Yield(100, 0.05, 2)
	require.NoError(t, err)
	require.Equal(t, 0.03, q)
	require.InDelta(t, 0.9417645335842487, d.Discount(0.05, 2), 1e-15)
	require.Zero(t, d.PresentValue(0.05, 2))

	_, err = Continuous(math.NaN())
	require.True(t, errors.Is(err, ErrInvalid))
}

func TestDiscreteYield(t *testing.T) {
	d, err := Discrete([]Payment{{Amount: 1.5, Time: 0.75}, {Amount: 1.5, Time: 0.25}, {Amount: 1.5, Time: 1.25}})
	require.NoError(t, err)
	require.True(t, d.IsDiscrete())

	// 按时间排序，且 1.25 年的派息在 1 年期内不计入
	ps := d.Payments()
	require.Equal(t, 0.25, ps[0].Time)
	require.InDelta(t, 2.926158327322055, d.PresentValue(0.05, 1.0), 1e-12)

	q, err := d.Yield(100, 0.05, 1.0)
	require.NoError(t, err)
	require.InDelta(t, 0.029698242734335273, q, 1e-12)

	// 等效关系：S·exp(-qT) = S - PV
	require.InDelta(t, 100-d.PresentValue(0.05, 1.0), 100*math.Exp(-q), 1e-9)
}

func TestDiscreteRejectsBadInput(t *testing.T) {
	_, err := Discrete(nil)
	require.True(t, errors.Is(err, ErrInvalid))

	_, err = Discrete([]Payment{{Amount: -1, Time: 0.5}})
	require.True(t, errors.Is(err, ErrInvalid))

	_, err = Discrete([]Payment{{Amount: 1, Time: -0.5}})
	require.True(t, errors.Is(err, ErrInvalid))

	d, err := Discrete([]Payment{{Amount: 120, Time: 0.1}})
	require.NoError(t, err)
	_, err = d.Yield(100, 0.01, 1)
	require.True(t, errors.Is(err, ErrInvalid))
}

func TestRate(t *testing.T) {
	d, err := Discrete([]Payment{{Amount: 1, Time: 0.25}, {Amount: 1, Time: 0.75}})
	require.NoError(t, err)
	require.InDelta(t, 4.0, d.Rate(), 1e-12)

	single, err := Discrete([]Payment{{Amount: 2, Time: 0.5}})
	require.NoError(t, err)
	require.InDelta(t, 4.0, single.Rate(), 1e-12)
}

func TestMarketWithYield(t *testing.T) {
	d, err := Discrete([]Payment{{Amount: 1.5, Time: 0.25}, {Amount: 1.5, Time: 0.75}})
	require.NoError(t, err)

	m := option.Market{Spot: 100, Rate: 0.05, Vol: 0.2}
	got, err := m.WithYield(d, 1.0)
	require.NoError(t, err)
	require.InDelta(t, 0.029698242734335273, got.Yield, 1e-12)
	require.Zero(t, m.Yield)
}
