package curve

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v int64) *int64 { return &v }

func TestPrice_StartsAtBase(t *testing.T) {
	for _, base := range []int64{1, 7, 100, 100_000} {
		p, err := Price(base, 1000, 0)
		require.NoError(t, err)
		assert.Equal(t, base, p)
	}
}

func TestPrice_DoublesWhenSoldOut(t *testing.T) {
	p, err := Price(100_000, 100, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(200_000), p)
}

func TestPrice_RoundsHalfAwayFromZero(t *testing.T) {
	// 3 × (1 + 1/2) = 4.5 → 5
	p, err := Price(3, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), p)

	// 10 × (1 + 1/3) = 13.33 → 13
	p, err = Price(10, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(13), p)
}

func TestPrice_NonDecreasingInSold(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for range 200 {
		base := r.Int63n(1_000_000) + 1
		supply := r.Int63n(10_000) + 1
		prev := int64(0)
		for sold := int64(0); sold <= supply; sold += r.Int63n(supply/10+1) + 1 {
			p, err := Price(base, supply, sold)
			require.NoError(t, err)
			require.GreaterOrEqual(t, p, prev, "base=%d supply=%d sold=%d", base, supply, sold)
			prev = p
		}
	}
}

func TestPrice_Errors(t *testing.T) {
	_, err := Price(100, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidSupply)
	_, err = Price(0, 10, 0)
	assert.ErrorIs(t, err, ErrInvalidPrice)
	_, err = Price(100, 10, 11)
	assert.ErrorIs(t, err, ErrSoldRange)
	_, err = Price(100, 10, -1)
	assert.ErrorIs(t, err, ErrSoldRange)
	_, err = Price(math.MaxInt64, 10, 10)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestMinimumPurchase(t *testing.T) {
	m, err := MinimumPurchase(100_000, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(500_000), m)

	m, err = MinimumPurchase(100_000, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(100_000), m)

	m, err = MinimumPurchase(100, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(500), m)

	_, err = MinimumPurchase(math.MaxInt64/2, 10)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestMeetsMinimum(t *testing.T) {
	assert.True(t, MeetsMinimum(100_000, 10, 500_000))
	assert.True(t, MeetsMinimum(100_000, 5, 500_000))
	assert.False(t, MeetsMinimum(100_000, 4, 500_000))
	// Product overflows int64 but must still compare correctly.
	assert.True(t, MeetsMinimum(math.MaxInt64, 2, math.MaxInt64))
}

func TestDerive(t *testing.T) {
	t.Run("desired supply", func(t *testing.T) {
		supply, price, err := Derive(10_000_000, ptr(100), nil, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(100), supply)
		assert.Equal(t, int64(100_000), price)
	})

	t.Run("desired price uses integer division", func(t *testing.T) {
		supply, price, err := Derive(10_000_001, nil, ptr(3), 100)
		require.NoError(t, err)
		assert.Equal(t, int64(3_333_333), supply)
		assert.Equal(t, int64(3), price)
	})

	t.Run("neither falls back to default price", func(t *testing.T) {
		supply, price, err := Derive(1_000_000, nil, nil, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(10_000), supply)
		assert.Equal(t, int64(100), price)
	})

	t.Run("both set", func(t *testing.T) {
		_, _, err := Derive(1_000_000, ptr(10), ptr(10), 100)
		assert.ErrorIs(t, err, ErrBothDesired)
	})

	t.Run("derived zero", func(t *testing.T) {
		_, _, err := Derive(50, ptr(100), nil, 100)
		assert.ErrorIs(t, err, ErrDerivedZero)
	})

	t.Run("non-positive desired", func(t *testing.T) {
		_, _, err := Derive(1_000, ptr(0), nil, 100)
		assert.ErrorIs(t, err, ErrInvalidSupply)
		_, _, err = Derive(1_000, nil, ptr(-5), 100)
		assert.ErrorIs(t, err, ErrInvalidPrice)
	})
}
