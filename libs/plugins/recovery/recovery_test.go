package recovery_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dangvanduc1999/doffy-aop/libs/aop"
	"github.com/dangvanduc1999/doffy-aop/libs/async"
	"github.com/dangvanduc1999/doffy-aop/libs/core"
	"github.com/dangvanduc1999/doffy-aop/libs/plugins/recovery"
)

type fragile struct{}

func (fragile) Parse(s string) (int, error) {
	if s == "" {
		panic("empty input")
	}
	return len(s), nil
}

func (fragile) MustParse(s string) int {
	panic("always")
}

func weave(t *testing.T, logger core.Logger) (func(string) (int, error), func(string) int) {
	t.Helper()
	container := core.NewDIContainer()
	chain := aop.NewChain()
	require.NoError(t, aop.NewPluginManager(container, chain).RegisterPlugin(recovery.NewRecoveryPlugin(logger)))

	w := aop.NewWeaver(container, chain, nil)
	var parse func(string) (int, error)
	var mustParse func(string) int
	require.NoError(t, w.Method(&parse, fragile{}, "Parse"))
	require.NoError(t, w.Method(&mustParse, fragile{}, "MustParse"))
	return parse, mustParse
}

func TestRecovery_ConvertsPanicToError(t *testing.T) {
	var buf bytes.Buffer
	parse, _ := weave(t, core.NewLogger(&buf))

	n, err := parse("abc")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = parse("")
	assert.Equal(t, 0, n)
	var pe *async.PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "empty input", pe.Value)
	assert.Contains(t, buf.String(), `"event":"PanicRecovered"`)
}

func TestRecovery_NoErrorResultStillPanics(t *testing.T) {
	_, mustParse := weave(t, nil)
	assert.PanicsWithValue(t, "always", func() { mustParse("x") })
}

func TestRecovery_ContractViolationPassesThrough(t *testing.T) {
	violate := aop.InterceptorFunc(func(inv *aop.Invocation, next aop.Handler) (interface{}, error) {
		panic(&aop.ContractViolation{Method: inv.Method.QualifiedName(), Reason: "test"})
	})

	var parse func(string) (int, error)
	chain := aop.NewChain(recovery.NewInterceptor(nil), violate)
	require.NoError(t, aop.NewWeaver(nil, chain, nil).Method(&parse, fragile{}, "Parse"))

	assert.Panics(t, func() { _, _ = parse("abc") })
}
