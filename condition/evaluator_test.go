package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateBoolean(t *testing.T) {
	e := NewEvaluator()

	result, err := e.Evaluate(`input.count > 3`, map[string]interface{}{"count": 5}, nil)
	require.NoError(t, err)
	assert.True(t, result)

	result, err = e.Evaluate(`input.count > 3`, map[string]interface{}{"count": 1}, nil)
	require.NoError(t, err)
	assert.False(t, result)
}

func TestEvaluateJSONPathShorthand(t *testing.T) {
	e := NewEvaluator()
	result, err := e.Evaluate(`$.status == "ok"`, map[string]interface{}{"status": "ok"}, nil)
	require.NoError(t, err)
	assert.True(t, result)
}

func TestEvaluateSeesVariables(t *testing.T) {
	e := NewEvaluator()
	vars := map[string]interface{}{
		"fetch": map[string]interface{}{"total": 10},
	}
	result, err := e.Evaluate(`vars.fetch.total >= 10`, nil, vars)
	require.NoError(t, err)
	assert.True(t, result)
}

func TestEvaluateRejectsNonBoolean(t *testing.T) {
	e := NewEvaluator()
	_, err := e.Evaluate(`input.count + 1`, map[string]interface{}{"count": 1}, nil)
	require.ErrorContains(t, err, "did not return boolean")
}

func TestEvaluateRejectsEmptyExpression(t *testing.T) {
	e := NewEvaluator()
	_, err := e.Evaluate("  ", nil, nil)
	require.Error(t, err)
}

func TestEvaluateCompileError(t *testing.T) {
	e := NewEvaluator()
	_, err := e.Evaluate(`input.count >`, nil, nil)
	require.Error(t, err)
}

func TestProgramCache(t *testing.T) {
	e := NewEvaluator()
	for i := 0; i < 5; i++ {
		_, err := e.Evaluate(`input.n == 1`, map[string]interface{}{"n": 1}, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, e.CacheSize())
}
