package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate_RiskBased(t *testing.T) {
	t.Parallel()

	in := Inputs{
		Balance:      10000,
		RiskFraction: 0.02,
		EntryPrice:   45000,
		StopPrice:    44000,
	}

	got, err := Calculate(in)
	require.NoError(t, err)

	assert.InDelta(t, 0.2, got.Size, 1e-12)
	assert.InDelta(t, 1000.0, got.StopDistance, 1e-9)
	assert.InDelta(t, 200.0, got.RiskAmount, 1e-9)
	assert.False(t, got.Capped)
}

func TestCalculate_ShortStopAbove(t *testing.T) {
	t.Parallel()

	got, err := Calculate(Inputs{
		Balance:      10000,
		RiskFraction: 0.01,
		EntryPrice:   45000,
		StopPrice:    46000,
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.1, got.Size, 1e-12)
}

func TestCalculate_ExposureCap(t *testing.T) {
	t.Parallel()

	in := Inputs{
		Balance:      10000,
		RiskFraction: 0.02,
		EntryPrice:   45000,
		StopPrice:    44900,
		MaxExposure:  0.05,
	}

	got, err := Calculate(in)
	require.NoError(t, err)

	assert.True(t, got.Capped)
	assert.InDelta(t, 500.0/45000, got.Size, 1e-12)
	assert.LessOrEqual(t, got.Size*in.EntryPrice, in.Balance*in.MaxExposure+1e-9)
}

func TestCalculate_CapNeverExceeded(t *testing.T) {
	t.Parallel()

	for _, stop := range []float64{44999, 44990, 44900, 44000, 40000, 30000} {
		in := Inputs{
			Balance:      2500,
			RiskFraction: 0.02,
			EntryPrice:   45000,
			StopPrice:    stop,
			MaxExposure:  0.05,
		}
		got, err := Calculate(in)
		require.NoError(t, err)
		assert.LessOrEqual(t, got.Size*in.EntryPrice, in.Balance*in.MaxExposure+1e-9, "stop %v", stop)
	}
}

func TestCalculate_ZeroSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   Inputs
	}{
		{"stop equals entry", Inputs{Balance: 10000, RiskFraction: 0.02, EntryPrice: 45000, StopPrice: 45000}},
		{"zero balance", Inputs{Balance: 0, RiskFraction: 0.02, EntryPrice: 45000, StopPrice: 44000}},
		{"negative balance", Inputs{Balance: -5, RiskFraction: 0.02, EntryPrice: 45000, StopPrice: 44000}},
		{"zero risk", Inputs{Balance: 10000, RiskFraction: 0, EntryPrice: 45000, StopPrice: 44000}},
		{"zero entry", Inputs{Balance: 10000, RiskFraction: 0.02, EntryPrice: 0, StopPrice: 44000}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Calculate(tt.in)
			assert.ErrorIs(t, err, ErrZeroSize)
		})
	}
}

func TestRR(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 2.0, RR(45000, 44000, 47000), 1e-12)
	assert.InDelta(t, 2.0, RR(45000, 46000, 43000), 1e-12)
	assert.Equal(t, 0.0, RR(45000, 45000, 47000))
}

func TestRMultiple(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, -1.0, RMultiple(-200, 200), 1e-12)
	assert.InDelta(t, 2.0, RMultiple(400, 200), 1e-12)
	assert.Equal(t, 0.0, RMultiple(400, 0))
}
