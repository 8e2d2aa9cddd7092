package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	t.Run("creates money with valid amount and currency", func(t *testing.T) {
		m, err := NewMoney(decimal.NewFromFloat(100.50), PEN)
		require.NoError(t, err)
		assert.Equal(t, PEN, m.Currency())
		assert.True(t, m.Amount().Equal(decimal.NewFromFloat(100.50)))
	})

	t.Run("returns error for empty currency", func(t *testing.T) {
		_, err := NewMoney(decimal.NewFromFloat(100), "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "currency cannot be empty")
	})
}

func TestMustNewMoney(t *testing.T) {
	t.Run("creates money with valid currency", func(t *testing.T) {
		m := MustNewMoney(decimal.NewFromInt(10), USD)
		assert.Equal(t, USD, m.Currency())
	})

	t.Run("panics for empty currency", func(t *testing.T) {
		assert.Panics(t, func() {
			MustNewMoney(decimal.NewFromInt(10), "")
		})
	})
}

func TestNewMoneyFromString(t *testing.T) {
	t.Run("valid string", func(t *testing.T) {
		m, err := NewMoneyFromString("123.45", PEN)
		require.NoError(t, err)
		assert.True(t, m.Amount().Equal(decimal.NewFromFloat(123.45)))
	})

	t.Run("invalid string", func(t *testing.T) {
		_, err := NewMoneyFromString("not-a-number", PEN)
		assert.Error(t, err)
	})
}

func TestNewMoneyPEN(t *testing.T) {
	m := NewMoneyPEN(decimal.NewFromFloat(50.00))
	assert.Equal(t, PEN, m.Currency())
	assert.True(t, m.Amount().Equal(decimal.NewFromFloat(50.00)))
}

func TestNewMoneyPENFromString(t *testing.T) {
	m, err := NewMoneyPENFromString("199.99")
	require.NoError(t, err)
	assert.Equal(t, PEN, m.Currency())
	assert.Equal(t, "199.99", m.StringFixed(2))
}

func TestZero(t *testing.T) {
	m := Zero(USD)
	assert.True(t, m.IsZero())
	assert.Equal(t, USD, m.Currency())
}

func TestZeroPEN(t *testing.T) {
	m := ZeroPEN()
	assert.True(t, m.IsZero())
	assert.Equal(t, PEN, m.Currency())
}

func TestMoneyIsPositiveNegativeZero(t *testing.T) {
	positive := NewMoneyPEN(decimal.NewFromInt(100))
	negative := NewMoneyPEN(decimal.NewFromInt(-100))
	zero := ZeroPEN()

	assert.True(t, positive.IsPositive())
	assert.False(t, positive.IsNegative())
	assert.False(t, positive.IsZero())

	assert.False(t, negative.IsPositive())
	assert.True(t, negative.IsNegative())
	assert.False(t, negative.IsZero())

	assert.False(t, zero.IsPositive())
	assert.False(t, zero.IsNegative())
	assert.True(t, zero.IsZero())
}

func TestMoneyAdd(t *testing.T) {
	t.Run("adds same currency", func(t *testing.T) {
		m1 := NewMoneyPEN(decimal.NewFromFloat(100.50))
		m2 := NewMoneyPEN(decimal.NewFromFloat(50.25))
		result, err := m1.Add(m2)
		require.NoError(t, err)
		assert.True(t, result.Amount().Equal(decimal.NewFromFloat(150.75)))
	})

	t.Run("fails for different currencies", func(t *testing.T) {
		m1 := MustNewMoney(decimal.NewFromInt(100), PEN)
		m2 := MustNewMoney(decimal.NewFromInt(50), USD)
		_, err := m1.Add(m2)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "different currencies")
	})
}

func TestMoneyMustAdd(t *testing.T) {
	t.Run("adds same currency", func(t *testing.T) {
		m1 := NewMoneyPEN(decimal.NewFromInt(100))
		m2 := NewMoneyPEN(decimal.NewFromInt(50))
		result := m1.MustAdd(m2)
		assert.Equal(t, "150.00", result.StringFixed(2))
	})

	t.Run("panics for different currencies", func(t *testing.T) {
		m1 := MustNewMoney(decimal.NewFromInt(100), PEN)
		m2 := MustNewMoney(decimal.NewFromInt(50), USD)
		assert.Panics(t, func() {
			m1.MustAdd(m2)
		})
	})
}

func TestMoneySubtract(t *testing.T) {
	t.Run("subtracts same currency", func(t *testing.T) {
		m1 := NewMoneyPEN(decimal.NewFromFloat(100.50))
		m2 := NewMoneyPEN(decimal.NewFromFloat(50.25))
		result, err := m1.Subtract(m2)
		require.NoError(t, err)
		assert.True(t, result.Amount().Equal(decimal.NewFromFloat(50.25)))
	})

	t.Run("fails for different currencies", func(t *testing.T) {
		m1 := MustNewMoney(decimal.NewFromInt(100), PEN)
		m2 := MustNewMoney(decimal.NewFromInt(50), USD)
		_, err := m1.Subtract(m2)
		assert.Error(t, err)
	})

	t.Run("must subtract panics for different currencies", func(t *testing.T) {
		m1 := MustNewMoney(decimal.NewFromInt(100), PEN)
		m2 := MustNewMoney(decimal.NewFromInt(50), USD)
		assert.Panics(t, func() {
			m1.MustSubtract(m2)
		})
	})
}

func TestMoneyNegate(t *testing.T) {
	m := NewMoneyPEN(decimal.NewFromInt(100))
	result := m.Negate()
	assert.Equal(t, "-100.00", result.StringFixed(2))
	assert.Equal(t, PEN, result.Currency())
}

func TestMoneyComparisons(t *testing.T) {
	m100 := NewMoneyPEN(decimal.NewFromInt(100))
	m50 := NewMoneyPEN(decimal.NewFromInt(50))
	m100b := NewMoneyPEN(decimal.NewFromInt(100))

	t.Run("equals", func(t *testing.T) {
		assert.True(t, m100.Equals(m100b))
		assert.False(t, m100.Equals(m50))
	})

	t.Run("less than or equal", func(t *testing.T) {
		result, err := m50.LessThanOrEqual(m100)
		require.NoError(t, err)
		assert.True(t, result)

		result, err = m100.LessThanOrEqual(m100b)
		require.NoError(t, err)
		assert.True(t, result)
	})

	t.Run("greater than", func(t *testing.T) {
		result, err := m100.GreaterThan(m50)
		require.NoError(t, err)
		assert.True(t, result)

		result, err = m100.GreaterThan(m100b)
		require.NoError(t, err)
		assert.False(t, result)
	})

	t.Run("greater than or equal", func(t *testing.T) {
		result, err := m100.GreaterThanOrEqual(m100b)
		require.NoError(t, err)
		assert.True(t, result)
	})

	t.Run("comparison fails for different currencies", func(t *testing.T) {
		usd := MustNewMoney(decimal.NewFromInt(100), USD)
		_, err := m100.GreaterThan(usd)
		assert.Error(t, err)
	})
}

func TestMoneyString(t *testing.T) {
	m := NewMoneyPEN(decimal.NewFromFloat(123.45))
	assert.Equal(t, "123.45 PEN", m.String())
	assert.Equal(t, "123.45", m.StringFixed(2))
	assert.Equal(t, "123.4500", m.StringFixed(4))
}

func TestMoneyJSON(t *testing.T) {
	original := NewMoneyPEN(decimal.NewFromFloat(99.99))

	t.Run("marshal", func(t *testing.T) {
		data, err := json.Marshal(original)
		require.NoError(t, err)
		assert.Contains(t, string(data), "99.99")
		assert.Contains(t, string(data), "PEN")
	})

	t.Run("unmarshal", func(t *testing.T) {
		data := `{"amount":"123.45","currency":"USD"}`
		var m Money
		err := json.Unmarshal([]byte(data), &m)
		require.NoError(t, err)
		assert.Equal(t, USD, m.Currency())
		assert.True(t, m.Amount().Equal(decimal.NewFromFloat(123.45)))
	})

	t.Run("unmarshal invalid amount", func(t *testing.T) {
		data := `{"amount":"abc","currency":"PEN"}`
		var m Money
		err := json.Unmarshal([]byte(data), &m)
		assert.Error(t, err)
	})
}
