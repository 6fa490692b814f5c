package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalExpr_Arithmetic(t *testing.T) {
	v, err := evalExpr("1 + 2 * 3", nil)
	require.NoError(t, err)
	assert.Equal(t, float64(7), v)
}

func TestEvalExpr_Comparison(t *testing.T) {
	v, err := evalExpr("score >= 50", map[string]any{"score": float64(60)})
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestEvalExpr_LogicalAndOr(t *testing.T) {
	v, err := evalExpr("a && !b || c", map[string]any{"a": true, "b": true, "c": true})
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestEvalExpr_StringEquality(t *testing.T) {
	v, err := evalExpr(`status == "done"`, map[string]any{"status": "done"})
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestEvalExpr_Parentheses(t *testing.T) {
	v, err := evalExpr("(1 + 2) * 3", nil)
	require.NoError(t, err)
	assert.Equal(t, float64(9), v)
}

func TestEvalExpr_UndefinedVariableErrors(t *testing.T) {
	_, err := evalExpr("missing == 1", nil)
	require.Error(t, err)
}

func TestEvalExpr_DivisionByZeroErrors(t *testing.T) {
	_, err := evalExpr("1 / 0", nil)
	require.Error(t, err)
}

func TestEvalBool_RejectsNonBooleanResult(t *testing.T) {
	_, err := evalBool("1 + 1", nil)
	require.Error(t, err)
}

func TestSubstitute_ReplacesKnownPlaceholders(t *testing.T) {
	out := substitute("hello {name}, you are {age}", map[string]any{"name": "ada", "age": float64(36)})
	assert.Equal(t, "hello ada, you are 36", out)
}

func TestSubstitute_LeavesUnknownPlaceholdersUntouched(t *testing.T) {
	out := substitute("hello {unknown}", nil)
	assert.Equal(t, "hello {unknown}", out)
}
