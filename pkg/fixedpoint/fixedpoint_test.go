package fixedpoint

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("whole and fractional strings round-trip", func(t *testing.T) {
		for _, in := range []string{"12", "1.2", "0.9", "0.000000000000000001", "3.6"} {
			a, err := Parse(in)
			require.NoError(t, err)
			assert.Equal(t, in, a.Dec())
		}
	})

	t.Run("trailing fractional zeros normalize away", func(t *testing.T) {
		a, err := Parse("12.000000000000000000")
		require.NoError(t, err)
		assert.Equal(t, "12", a.Dec())
		assert.True(t, a.Equal(Units(12)))
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		for _, in := range []string{"", ".", "-5", "1.2.3", "abc", "1.0000000000000000001"} {
			_, err := Parse(in)
			assert.Error(t, err, "input %q", in)
		}
	})
}

func TestAddSub(t *testing.T) {
	a := Units(3)
	b := Units(2)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.True(t, sum.Equal(Units(5)))

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.True(t, diff.Equal(Units(1)))

	_, err = b.Sub(a)
	assert.ErrorIs(t, err, ErrUnderflow)
}

func TestWadMath(t *testing.T) {
	t.Run("full participation pays full result", func(t *testing.T) {
		rate, err := Units(12).WadDiv(Units(12))
		require.NoError(t, err)
		assert.True(t, rate.Equal(One()))

		pay, err := Units(5).WadMul(rate)
		require.NoError(t, err)
		assert.True(t, pay.Equal(Units(5)))
	})

	t.Run("fractional participation truncates toward zero", func(t *testing.T) {
		// 10.8 of 12 total = 0.9, then 4 * 0.9 = 3.6
		rate, err := MustParse("10.8").WadDiv(Units(12))
		require.NoError(t, err)
		assert.Equal(t, "0.9", rate.Dec())

		pay, err := Units(4).WadMul(rate)
		require.NoError(t, err)
		assert.Equal(t, "3.6", pay.Dec())
	})

	t.Run("one third truncates not rounds", func(t *testing.T) {
		rate, err := Units(1).WadDiv(Units(3))
		require.NoError(t, err)
		assert.Equal(t, "0.333333333333333333", rate.Dec())
	})

	t.Run("division by zero fails", func(t *testing.T) {
		_, err := Units(1).WadDiv(Zero())
		assert.ErrorIs(t, err, ErrDivByZero)
	})
}

func TestJSON(t *testing.T) {
	a := MustParse("3.6")
	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, `"3.6"`, string(data))

	var back Amount
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, a.Equal(back))

	assert.Error(t, json.Unmarshal([]byte(`42`), &back))
}
