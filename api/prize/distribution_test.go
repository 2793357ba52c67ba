package prize_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lilzahs/gimme-idea/api/apperror"
	"github.com/lilzahs/gimme-idea/api/prize"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func pcts(ss ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(ss))
	for i, s := range ss {
		out[i] = d(s)
	}
	return out
}

func amounts(entries []prize.DistributionEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Amount.String()
	}
	return out
}

func TestComputeDistribution_Equal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		total   string
		winners int
		scale   int32
		want    []string
	}{
		{"100 over 3 whole units", "100", 3, 0, []string{"34", "33", "33"}},
		{"100 over 3 usdc", "100", 3, 6, []string{"33.333334", "33.333333", "33.333333"}},
		{"90 over 3", "90", 3, 6, []string{"30", "30", "30"}},
		{"single winner", "12.5", 1, 6, []string{"12.5"}},
		{"zero total", "0", 4, 6, []string{"0", "0", "0", "0"}},
		{"one unit over many", "0.000001", 3, 6, []string{"0.000001", "0", "0"}},
		{"max winners", "1", 10, 6, []string{"0.1", "0.1", "0.1", "0.1", "0.1", "0.1", "0.1", "0.1", "0.1", "0.1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			total := d(tt.total)
			entries, err := prize.ComputeDistribution(total, prize.EqualSplit{WinnersCount: tt.winners}, tt.scale)
			require.NoError(t, err)
			assert.Equal(t, tt.want, amounts(entries))
			assert.True(t, prize.SumDistribution(entries).Equal(total))
			for i, e := range entries {
				assert.Equal(t, i+1, e.Rank)
			}
		})
	}
}

func TestComputeDistribution_Custom(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		total string
		pcts  []decimal.Decimal
		want  []string
	}{
		{"50/30/20", "90", pcts("50", "30", "20"), []string{"45", "27", "18"}},
		{"thirds", "100", pcts("33.33", "33.33", "33.34"), []string{"33.33", "33.33", "33.34"}},
		{"last absorbs rounding", "1", pcts("33.333333", "33.333333", "33.333334"), []string{"0.333333", "0.333333", "0.333334"}},
		{"within tolerance low", "100", pcts("60", "39.99"), []string{"60", "40"}},
		{"within tolerance high", "100", pcts("60", "40.01"), []string{"60", "40"}},
		{"single rank", "7.123456", pcts("100"), []string{"7.123456"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			total := d(tt.total)
			entries, err := prize.ComputeDistribution(total, prize.CustomSplit{Percentages: tt.pcts}, prize.AmountScale)
			require.NoError(t, err)
			assert.Equal(t, tt.want, amounts(entries))
			assert.True(t, prize.SumDistribution(entries).Equal(total))
		})
	}
}

func TestComputeDistribution_SumAlwaysEqualsTotal(t *testing.T) {
	t.Parallel()

	totals := []string{"0.000007", "1", "99.999999", "1234.56789", "1000000"}
	splits := []prize.Split{
		prize.EqualSplit{WinnersCount: 1},
		prize.EqualSplit{WinnersCount: 3},
		prize.EqualSplit{WinnersCount: 7},
		prize.CustomSplit{Percentages: pcts("70", "20", "10")},
		prize.CustomSplit{Percentages: pcts("14.2857", "14.2857", "14.2857", "14.2857", "14.2857", "14.2857", "14.2858")},
	}
	for _, total := range totals {
		for _, split := range splits {
			entries, err := prize.ComputeDistribution(d(total), split, prize.AmountScale)
			require.NoError(t, err)
			require.Len(t, entries, split.Winners())
			assert.True(t, prize.SumDistribution(entries).Equal(d(total)), "total %s split %+v", total, split)
			for _, e := range entries {
				assert.False(t, e.Amount.IsNegative())
				assert.True(t, e.Amount.Equal(e.Amount.Truncate(prize.AmountScale)))
			}
		}
	}
}

func TestComputeDistribution_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		total string
		split prize.Split
	}{
		{"nil split", "10", nil},
		{"zero winners", "10", prize.EqualSplit{WinnersCount: 0}},
		{"too many winners", "10", prize.EqualSplit{WinnersCount: prize.MaxWinners + 1}},
		{"negative total", "-1", prize.EqualSplit{WinnersCount: 1}},
		{"too precise total", "1.0000001", prize.EqualSplit{WinnersCount: 1}},
		{"empty percentages", "10", prize.CustomSplit{}},
		{"sum too low", "10", prize.CustomSplit{Percentages: pcts("50", "49.98")}},
		{"sum too high", "10", prize.CustomSplit{Percentages: pcts("50", "50.02")}},
		{"zero percentage", "10", prize.CustomSplit{Percentages: pcts("100", "0")}},
		{"negative percentage", "10", prize.CustomSplit{Percentages: pcts("110", "-10")}},
		{"too many percentages", "10", prize.CustomSplit{Percentages: pcts("10", "10", "10", "10", "10", "10", "10", "10", "10", "5", "5")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := prize.ComputeDistribution(d(tt.total), tt.split, prize.AmountScale)
			require.Error(t, err)
			assert.True(t, apperror.Is(err, apperror.KindValidation), "got %v", err)
		})
	}
}

func TestCanRank(t *testing.T) {
	t.Parallel()

	assert.False(t, prize.CanRank(nil))
	assert.False(t, prize.CanRank(&prize.Pool{}))
	assert.True(t, prize.CanRank(&prize.Pool{EscrowLocked: true}))

	err := prize.RequireEscrow(&prize.Pool{})
	require.ErrorIs(t, err, prize.ErrEscrowNotLocked)
	assert.True(t, apperror.Is(err, apperror.KindStateConflict))
	require.NoError(t, prize.RequireEscrow(&prize.Pool{EscrowLocked: true}))
}
