package prize

import (
	"github.com/shopspring/decimal"

	"github.com/lilzahs/gimme-idea/api/apperror"
)

const (
	// MaxWinners bounds the number of paid ranks per pool.
	MaxWinners = 10
	// AmountScale is the number of decimal places amounts are kept at (USDC).
	AmountScale int32 = 6
)

// Split kinds as stored on the pool.
const (
	SplitEqual  = "equal"
	SplitCustom = "custom"
)

var (
	hundred          = decimal.NewFromInt(100)
	percentTolerance = decimal.RequireFromString("0.01")
)

// Split describes how a pool total is divided among ranks. It is either an
// EqualSplit or a CustomSplit.
type Split interface {
	Kind() string
	Winners() int
}

// EqualSplit divides the total evenly among WinnersCount ranks.
type EqualSplit struct {
	WinnersCount int
}

func (s EqualSplit) Kind() string { return SplitEqual }
func (s EqualSplit) Winners() int { return s.WinnersCount }

// CustomSplit assigns Percentages[i] of the total to rank i+1.
type CustomSplit struct {
	Percentages []decimal.Decimal
}

func (s CustomSplit) Kind() string { return SplitCustom }
func (s CustomSplit) Winners() int { return len(s.Percentages) }

// DistributionEntry is the amount paid to one rank.
type DistributionEntry struct {
	Rank   int             `json:"rank"`
	Amount decimal.Decimal `json:"amount"`
}

// ComputeDistribution turns a total and a split into per-rank amounts at the
// given scale. The entries always sum to total exactly.
//
// Equal splits hand the indivisible remainder out one smallest unit at a
// time starting from rank 1. Custom splits round every rank but the last,
// which absorbs the residue.
func ComputeDistribution(total decimal.Decimal, split Split, scale int32) ([]DistributionEntry, error) {
	const op = "prize.ComputeDistribution"

	if split == nil {
		return nil, apperror.Validation(op, "split is required")
	}
	n := split.Winners()
	if n < 1 || n > MaxWinners {
		return nil, apperror.Validation(op, "winners count must be between 1 and %d, got %d", MaxWinners, n)
	}
	if total.IsNegative() {
		return nil, apperror.Validation(op, "total must not be negative")
	}
	if !total.Equal(total.Truncate(scale)) {
		return nil, apperror.Validation(op, "total %s has more than %d decimal places", total, scale)
	}

	switch s := split.(type) {
	case EqualSplit:
		return equalDistribution(total, n, scale), nil
	case CustomSplit:
		return customDistribution(op, total, s.Percentages, scale)
	default:
		return nil, apperror.Validation(op, "unknown split kind %q", split.Kind())
	}
}

func equalDistribution(total decimal.Decimal, n int, scale int32) []DistributionEntry {
	units := total.Shift(scale)
	q, r := units.QuoRem(decimal.NewFromInt(int64(n)), 0)
	extra := r.IntPart()

	entries := make([]DistributionEntry, n)
	for i := range entries {
		amount := q
		if int64(i) < extra {
			amount = amount.Add(decimal.NewFromInt(1))
		}
		entries[i] = DistributionEntry{Rank: i + 1, Amount: amount.Shift(-scale)}
	}
	return entries
}

func customDistribution(op string, total decimal.Decimal, pcts []decimal.Decimal, scale int32) ([]DistributionEntry, error) {
	sum := decimal.Zero
	for i, p := range pcts {
		if !p.IsPositive() {
			return nil, apperror.Validation(op, "percentage for rank %d must be positive", i+1)
		}
		sum = sum.Add(p)
	}
	if sum.Sub(hundred).Abs().GreaterThan(percentTolerance) {
		return nil, apperror.Validation(op, "percentages must sum to 100, got %s", sum)
	}

	entries := make([]DistributionEntry, len(pcts))
	allocated := decimal.Zero
	last := len(pcts) - 1
	for i := range last {
		amount := total.Mul(pcts[i]).Div(hundred).Round(scale)
		allocated = allocated.Add(amount)
		entries[i] = DistributionEntry{Rank: i + 1, Amount: amount}
	}

	residue := total.Sub(allocated)
	if residue.IsNegative() {
		return nil, apperror.Validation(op, "percentages over-allocate the total by %s", residue.Neg())
	}
	entries[last] = DistributionEntry{Rank: last + 1, Amount: residue}
	return entries, nil
}

// SumDistribution returns the total of all entries.
func SumDistribution(entries []DistributionEntry) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.Amount)
	}
	return sum
}
