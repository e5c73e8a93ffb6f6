package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionValidate(t *testing.T) {
	cases := []struct {
		name string
		cond Condition
		ok   bool
	}{
		{"price gt", Condition{Field: "price", Op: OpGT, Value: 100}, true},
		{"volume lte", Condition{Field: "volume", Op: OpLTE, Value: 5000}, true},
		{"indicator", Condition{Field: "indicator.rsi_14", Op: OpLT, Value: 30}, true},
		{"between ordered", Condition{Field: "price", Op: OpBetween, Value: 90, Value2: 110}, true},
		{"between inverted", Condition{Field: "price", Op: OpBetween, Value: 110, Value2: 90}, false},
		{"unknown field", Condition{Field: "spread", Op: OpGT, Value: 1}, false},
		{"bare indicator prefix", Condition{Field: "indicator.", Op: OpGT, Value: 1}, false},
		{"unknown op", Condition{Field: "price", Op: "NEAR", Value: 1}, false},
		{"bad logical", Condition{Field: "price", Op: OpGT, Value: 1, Logical: "XOR"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cond.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestEvalConditions(t *testing.T) {
	indicators := map[string]float64{"rsi_14": 25}

	t.Run("single condition", func(t *testing.T) {
		ok, err := EvalConditions([]Condition{
			{Field: "price", Op: OpGT, Value: 100},
		}, 101, 0, nil)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("and combination", func(t *testing.T) {
		conds := []Condition{
			{Field: "price", Op: OpLT, Value: 100},
			{Field: "indicator.rsi_14", Op: OpLT, Value: 30, Logical: LogicalAnd},
		}
		ok, err := EvalConditions(conds, 95, 0, indicators)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = EvalConditions(conds, 105, 0, indicators)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("or rescues a false accumulator", func(t *testing.T) {
		conds := []Condition{
			{Field: "price", Op: OpGT, Value: 1000},
			{Field: "volume", Op: OpGT, Value: 500, Logical: LogicalOr},
		}
		ok, err := EvalConditions(conds, 95, 600, nil)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("left fold order", func(t *testing.T) {
		// (false OR true) AND false = false; right-associative grouping would
		// give a different answer.
		conds := []Condition{
			{Field: "price", Op: OpGT, Value: 1000},
			{Field: "volume", Op: OpGT, Value: 0, Logical: LogicalOr},
			{Field: "price", Op: OpLT, Value: 0, Logical: LogicalAnd},
		}
		ok, err := EvalConditions(conds, 95, 600, nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("missing indicator is an error, not false", func(t *testing.T) {
		_, err := EvalConditions([]Condition{
			{Field: "indicator.sma_200", Op: OpGT, Value: 1},
		}, 95, 0, indicators)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sma_200")
	})

	t.Run("between is inclusive", func(t *testing.T) {
		conds := []Condition{{Field: "price", Op: OpBetween, Value: 90, Value2: 110}}
		for _, price := range []float64{90, 100, 110} {
			ok, err := EvalConditions(conds, price, 0, nil)
			require.NoError(t, err)
			assert.True(t, ok, "price %v", price)
		}
		ok, err := EvalConditions(conds, 89.99, 0, nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("empty list never fires", func(t *testing.T) {
		ok, err := EvalConditions(nil, 100, 0, nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
