package risk

import (
	"errors"
	"fmt"
	"math"
)

// ErrZeroSize means no order may be sized: the stop distance is zero, the
// balance is not positive, or the sized quantity came out non-positive.
var ErrZeroSize = errors.New("zero position size")

// Inputs are the position sizing parameters.
type Inputs struct {
	Balance      float64 // available quote balance
	RiskFraction float64 // 0.02
	EntryPrice   float64
	StopPrice    float64

	// MaxExposure caps size*entry at Balance*MaxExposure. Zero disables it.
	MaxExposure float64
}

// Result is a sized order.
type Result struct {
	Size         float64
	StopDistance float64
	RiskAmount   float64
	Capped       bool
}

// Calculate sizes a position so that hitting the stop loses
// Balance*RiskFraction, capped by MaxExposure when set.
func Calculate(in Inputs) (Result, error) {
	if in.Balance <= 0 {
		return Result{}, fmt.Errorf("balance %.2f: %w", in.Balance, ErrZeroSize)
	}
	if in.EntryPrice <= 0 {
		return Result{}, fmt.Errorf("entry price %.8f: %w", in.EntryPrice, ErrZeroSize)
	}

	stopDist := math.Abs(in.EntryPrice - in.StopPrice)
	if stopDist == 0 {
		return Result{}, fmt.Errorf("stop distance is zero: %w", ErrZeroSize)
	}

	riskAmt := in.Balance * in.RiskFraction
	res := Result{
		Size:         riskAmt / stopDist,
		StopDistance: stopDist,
		RiskAmount:   riskAmt,
	}

	if in.MaxExposure > 0 {
		maxSize := in.Balance * in.MaxExposure / in.EntryPrice
		if maxSize < res.Size {
			res.Size = maxSize
			res.Capped = true
		}
	}

	if !(res.Size > 0) || math.IsInf(res.Size, 0) {
		return Result{}, fmt.Errorf("size %v: %w", res.Size, ErrZeroSize)
	}
	return res, nil
}

// RR is the reward-to-risk ratio of a trade plan.
func RR(entry, stop, takeProfit float64) float64 {
	risk := math.Abs(entry - stop)
	if risk == 0 {
		return 0
	}
	return math.Abs(takeProfit-entry) / risk
}

// RMultiple expresses profit in units of the planned risk amount.
func RMultiple(profit, riskAmount float64) float64 {
	if riskAmount == 0 {
		return 0
	}
	return profit / riskAmount
}
