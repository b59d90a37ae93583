package aop_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dangvanduc1999/doffy-aop/libs/aop"
	"github.com/dangvanduc1999/doffy-aop/libs/async"
	"github.com/dangvanduc1999/doffy-aop/libs/core"
)

// MockPipeline implements aop.Pipeline
type MockPipeline struct {
	mock.Mock
}

func (m *MockPipeline) Execute(inv *aop.Invocation) (interface{}, error) {
	args := m.Called(inv)
	return args.Get(0), args.Error(1)
}

func (m *MockPipeline) ExecuteAsync(inv *aop.Invocation, resultType reflect.Type) *async.Task {
	args := m.Called(inv, resultType)
	return args.Get(0).(*async.Task)
}

func (m *MockPipeline) ExecuteTask(inv *aop.Invocation) *async.Task {
	args := m.Called(inv)
	return args.Get(0).(*async.Task)
}

func (m *MockPipeline) ExecuteSignal(inv *aop.Invocation) <-chan error {
	args := m.Called(inv)
	return args.Get(0).(<-chan error)
}

type Page[T any] struct {
	Items []T
	Total int
}

type Job async.Task

type pair[K, V any] struct{}

type Calculator struct {
	mu    sync.Mutex
	calls []string
}

func (c *Calculator) record(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, name)
}

func (c *Calculator) Add(a, b int) int {
	c.record("Add")
	return a + b
}

func (c *Calculator) Divide(a, b int) (int, error) {
	c.record("Divide")
	if b == 0 {
		return 0, errors.New("division by zero")
	}
	return a / b, nil
}

func (c *Calculator) Log(msg string) {
	c.record("Log:" + msg)
}

func (c *Calculator) GetNameAsync(id int) *async.Future[string] {
	return async.Run(func() (string, error) {
		c.record("GetNameAsync")
		return fmt.Sprintf("user-%d", id), nil
	})
}

func (c *Calculator) DoWorkAsync() *async.Task {
	return async.Go(func() (interface{}, error) {
		c.record("DoWorkAsync")
		return nil, nil
	})
}

func (c *Calculator) Schedule(name string) *Job {
	return (*Job)(async.Go(func() (interface{}, error) {
		c.record("Schedule:" + name)
		return nil, nil
	}))
}

func (c *Calculator) Flush(ctx context.Context) <-chan error {
	return async.Signal(async.Go(func() (interface{}, error) {
		c.record("Flush")
		return nil, ctx.Err()
	}))
}

func (c *Calculator) Page(size int) *Page[int] {
	p := &Page[int]{Total: size}
	for i := 0; i < size; i++ {
		p.Items = append(p.Items, i)
	}
	return p
}

func (c *Calculator) Sum(label string, xs ...int) string {
	total := 0
	for _, x := range xs {
		total += x
	}
	return fmt.Sprintf("%s=%d", label, total)
}

func (c *Calculator) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// CalculatorProxy is the stub doffy-proxygen would generate for Calculator
type CalculatorProxy struct {
	AddFn          func(a, b int) int                     `aop:"Add"`
	DivideFn       func(a, b int) (int, error)            `aop:"Divide"`
	LogFn          func(msg string)                       `aop:"Log"`
	GetNameAsyncFn func(id int) *async.Future[string]     `aop:"GetNameAsync"`
	DoWorkAsyncFn  func() *async.Task                     `aop:"DoWorkAsync"`
	ScheduleFn     func(name string) *Job                 `aop:"Schedule"`
	FlushFn        func(ctx context.Context) <-chan error `aop:"Flush"`
	PageFn         func(size int) *Page[int]              `aop:"Page"`
	SumFn          func(label string, xs ...int) string   `aop:"Sum"`
	Ignored        func()                                 `aop:"-"`
}

func newWeaver(t *testing.T, p aop.Pipeline) *aop.Weaver {
	t.Helper()
	return aop.NewWeaver(core.NewDIContainer(), p, nil)
}

func TestWeaver_AddReturnsPipelineValue(t *testing.T) {
	p := new(MockPipeline)
	p.On("Execute", mock.MatchedBy(func(inv *aop.Invocation) bool {
		return inv.Method.Name == "Add" && cmp.Equal(inv.Args(), []interface{}{1, 2})
	})).Return(5, nil).Once()

	var add func(a, b int) int
	require.NoError(t, newWeaver(t, p).Method(&add, &Calculator{}, "Add"))

	assert.Equal(t, 5, add(1, 2))
	p.AssertExpectations(t)
}

func TestWeaver_GetNameAsyncReturnsPendingFuture(t *testing.T) {
	pending := async.NewTask()
	p := new(MockPipeline)
	p.On("ExecuteAsync", mock.Anything, reflect.TypeOf("")).Return(pending).Once()

	var get func(id int) *async.Future[string]
	require.NoError(t, newWeaver(t, p).Method(&get, &Calculator{}, "GetNameAsync"))

	fut := get(42)
	require.NotNil(t, fut)
	assert.Same(t, pending, fut.Task())

	select {
	case <-fut.Done():
		t.Fatal("future resolved before the pipeline completed it")
	default:
	}

	pending.Complete("alice", nil)
	name, err := fut.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", name)
	p.AssertExpectations(t)
}

func TestWeaver_LogMaterializesOneArgument(t *testing.T) {
	p := new(MockPipeline)
	var seen []interface{}
	p.On("Execute", mock.Anything).Run(func(args mock.Arguments) {
		seen = args.Get(0).(*aop.Invocation).Args()
	}).Return("discarded", nil).Once()

	var log func(msg string)
	require.NoError(t, newWeaver(t, p).Method(&log, &Calculator{}, "Log"))

	log("hello")
	assert.Equal(t, []interface{}{"hello"}, seen)
	p.AssertExpectations(t)
}

func TestWeaver_DoWorkAsyncDoesNotBlock(t *testing.T) {
	pending := async.NewTask()
	p := new(MockPipeline)
	p.On("ExecuteTask", mock.Anything).Return(pending).Once()

	var work func() *async.Task
	require.NoError(t, newWeaver(t, p).Method(&work, &Calculator{}, "DoWorkAsync"))

	returned := make(chan *async.Task, 1)
	go func() { returned <- work() }()

	select {
	case task := <-returned:
		assert.Same(t, pending, task)
		assert.False(t, task.IsDone())
	case <-time.After(time.Second):
		t.Fatal("proxy blocked on a pending task")
	}
	p.AssertNotCalled(t, "ExecuteSignal", mock.Anything)
	p.AssertExpectations(t)
}

func TestWeaver_DerivedTaskAndSignalEntryPoints(t *testing.T) {
	p := new(MockPipeline)
	p.On("ExecuteTask", mock.Anything).Return(async.Completed()).Once()
	ch := make(chan error, 1)
	ch <- nil
	close(ch)
	p.On("ExecuteSignal", mock.Anything).Return((<-chan error)(ch)).Once()

	w := newWeaver(t, p)
	var schedule func(string) *Job
	require.NoError(t, w.Method(&schedule, &Calculator{}, "Schedule"))
	var flush func(context.Context) <-chan error
	require.NoError(t, w.Method(&flush, &Calculator{}, "Flush"))

	job := schedule("nightly")
	require.NotNil(t, job)
	assert.NoError(t, (*async.Task)(job).Wait(context.Background()))

	assert.NoError(t, <-flush(context.Background()))
	p.AssertExpectations(t)
}

func TestWeaver_PipelineErrorWithoutErrorResultPanics(t *testing.T) {
	boom := errors.New("boom")
	p := new(MockPipeline)
	p.On("Execute", mock.Anything).Return(nil, boom)

	var add func(a, b int) int
	require.NoError(t, newWeaver(t, p).Method(&add, &Calculator{}, "Add"))
	assert.PanicsWithValue(t, boom, func() { add(1, 2) })

	var divide func(a, b int) (int, error)
	require.NoError(t, newWeaver(t, p).Method(&divide, &Calculator{}, "Divide"))
	n, err := divide(4, 2)
	assert.Equal(t, 0, n)
	assert.Same(t, boom, err)
}

func TestWeaver_NilTaskFromPipelinePanics(t *testing.T) {
	p := new(MockPipeline)
	p.On("ExecuteAsync", mock.Anything, mock.Anything).Return((*async.Task)(nil))
	p.On("ExecuteTask", mock.Anything).Return((*async.Task)(nil))
	p.On("ExecuteSignal", mock.Anything).Return((<-chan error)(nil))

	w := newWeaver(t, p)
	calc := &Calculator{}
	var get func(int) *async.Future[string]
	require.NoError(t, w.Method(&get, calc, "GetNameAsync"))
	var work func() *async.Task
	require.NoError(t, w.Method(&work, calc, "DoWorkAsync"))
	var schedule func(string) *Job
	require.NoError(t, w.Method(&schedule, calc, "Schedule"))
	var flush func(context.Context) <-chan error
	require.NoError(t, w.Method(&flush, calc, "Flush"))

	assertViolation := func(name string, fn func()) {
		t.Helper()
		defer func() {
			r := recover()
			_, ok := r.(*aop.ContractViolation)
			assert.True(t, ok, "%s: expected contract violation, got %v", name, r)
		}()
		fn()
	}
	assertViolation("future", func() { get(1) })
	assertViolation("task", func() { work() })
	assertViolation("derived task", func() { schedule("nightly") })
	assertViolation("signal", func() { flush(context.Background()) })
	assert.Empty(t, calc.Calls())
}

func answer() *async.Future[int] { return async.Resolved(42) }

func lookupPage() *async.Future[*Page[int]] { return async.Resolved(&Page[int]{}) }

func TestWeaver_NilAsyncResultForValueKindFails(t *testing.T) {
	empty := aop.InterceptorFunc(func(inv *aop.Invocation, next aop.Handler) (interface{}, error) {
		return nil, nil
	})
	w := aop.NewWeaver(nil, aop.NewChain(empty), nil)

	var get func() *async.Future[int]
	require.NoError(t, w.Func(&get, answer))
	n, err := get().Await(context.Background())
	assert.Zero(t, n)
	var tm *aop.TypeMismatchError
	require.ErrorAs(t, err, &tm)
	assert.Equal(t, reflect.TypeOf(0), tm.Want)
	assert.Nil(t, tm.Got)
	assert.Contains(t, err.Error(), "cannot use nil as int")

	var page func() *async.Future[*Page[int]]
	require.NoError(t, w.Func(&page, lookupPage))
	got, err := page().Await(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestWeaver_GenericCast(t *testing.T) {
	p := new(MockPipeline)
	page := &Page[int]{Total: 3}
	p.On("Execute", mock.Anything).Return(page, nil).Once()
	p.On("Execute", mock.Anything).Return(&Page[string]{}, nil).Once()

	var get func(int) *Page[int]
	require.NoError(t, newWeaver(t, p).Method(&get, &Calculator{}, "Page"))

	assert.Same(t, page, get(3))

	defer func() {
		r := recover()
		var tm *aop.TypeMismatchError
		require.ErrorAs(t, r.(error), &tm)
		assert.Equal(t, reflect.TypeOf(&Page[int]{}), tm.Want)
	}()
	get(3)
	t.Fatal("mismatched generic result did not panic")
}

func TestWeaver_ChainEndToEnd(t *testing.T) {
	calc := &Calculator{}
	var order []string
	var mu sync.Mutex
	trace := aop.InterceptorFunc(func(inv *aop.Invocation, next aop.Handler) (interface{}, error) {
		mu.Lock()
		order = append(order, "before:"+inv.Method.Name)
		mu.Unlock()
		res, err := next(inv)
		mu.Lock()
		order = append(order, "after:"+inv.Method.Name)
		mu.Unlock()
		return res, err
	})

	w := aop.NewWeaver(core.NewDIContainer(), aop.NewChain(trace), nil)
	proxy, err := aop.NewProxy[CalculatorProxy](w, calc)
	require.NoError(t, err)
	assert.Nil(t, proxy.Ignored)

	assert.Equal(t, 7, proxy.AddFn(3, 4))

	_, err = proxy.DivideFn(1, 0)
	assert.EqualError(t, err, "division by zero")

	proxy.LogFn("hi")

	name, err := proxy.GetNameAsyncFn(9).Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "user-9", name)

	require.NoError(t, proxy.DoWorkAsyncFn().Wait(context.Background()))
	require.NoError(t, (*async.Task)(proxy.ScheduleFn("x")).Wait(context.Background()))
	require.NoError(t, <-proxy.FlushFn(context.Background()))

	assert.Equal(t, []int{0, 1}, proxy.PageFn(2).Items)
	assert.Equal(t, "total=6", proxy.SumFn("total", 1, 2, 3))

	// async terminals run after the implementation's own future settled,
	// so the trace stays balanced
	want := []string{
		"before:Add", "after:Add",
		"before:Divide", "after:Divide",
		"before:Log", "after:Log",
		"before:GetNameAsync", "after:GetNameAsync",
		"before:DoWorkAsync", "after:DoWorkAsync",
		"before:Schedule", "after:Schedule",
		"before:Flush", "after:Flush",
		"before:Page", "after:Page",
		"before:Sum", "after:Sum",
	}
	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, calc.Calls(), "Log:hi")
	assert.Contains(t, calc.Calls(), "Schedule:x")
}

func TestWeaver_InterceptorRewritesArgumentsAndResult(t *testing.T) {
	double := aop.InterceptorFunc(func(inv *aop.Invocation, next aop.Handler) (interface{}, error) {
		if inv.Method.Name != "Add" {
			return next(inv)
		}
		require.NoError(t, inv.SetArg(0, inv.Arg(0).(int)*2))
		assert.ErrorIs(t, inv.SetArg(1, "two"), aop.ErrArgumentType)
		res, err := next(inv)
		return res.(int) + 100, err
	})

	var add func(a, b int) int
	w := aop.NewWeaver(nil, aop.NewChain(double), nil)
	require.NoError(t, w.Method(&add, &Calculator{}, "Add"))
	assert.Equal(t, 2*5+1+100, add(5, 1))
}

func TestWeaver_ShortCircuitAsync(t *testing.T) {
	cached := aop.InterceptorFunc(func(inv *aop.Invocation, next aop.Handler) (interface{}, error) {
		return "cached", nil
	})
	wrong := aop.InterceptorFunc(func(inv *aop.Invocation, next aop.Handler) (interface{}, error) {
		return 12, nil
	})

	calc := &Calculator{}
	var get func(int) *async.Future[string]
	require.NoError(t, aop.NewWeaver(nil, aop.NewChain(cached), nil).Method(&get, calc, "GetNameAsync"))
	name, err := get(1).Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cached", name)
	assert.Empty(t, calc.Calls())

	require.NoError(t, aop.NewWeaver(nil, aop.NewChain(wrong), nil).Method(&get, calc, "GetNameAsync"))
	_, err = get(1).Await(context.Background())
	var tm *aop.TypeMismatchError
	assert.ErrorAs(t, err, &tm)
}

func TestWeaver_AsyncPanicBecomesError(t *testing.T) {
	explode := aop.InterceptorFunc(func(inv *aop.Invocation, next aop.Handler) (interface{}, error) {
		panic("kaboom")
	})

	var work func() *async.Task
	require.NoError(t, aop.NewWeaver(nil, aop.NewChain(explode), nil).Method(&work, &Calculator{}, "DoWorkAsync"))

	var pe *async.PanicError
	require.ErrorAs(t, work().Wait(context.Background()), &pe)
	assert.Equal(t, "kaboom", pe.Value)
}

func TestWeaver_Func(t *testing.T) {
	var upper func(string) string
	w := aop.NewWeaver(nil, aop.NewChain(), nil)
	require.NoError(t, w.Func(&upper, strings.ToUpper))
	assert.Equal(t, "ABC", upper("abc"))

	var wrong func(int) string
	assert.ErrorIs(t, w.Func(&wrong, strings.ToUpper), aop.ErrSignatureMismatch)
	assert.Error(t, w.Func(upper, strings.ToUpper))
}

func TestWeaver_StructAggregatesErrors(t *testing.T) {
	type broken struct {
		Missing func()           `aop:"Nope"`
		AddFn   func(string) int `aop:"Add"`
		LogFn   func(msg string) `aop:"Log"`
	}

	w := aop.NewWeaver(nil, aop.NewChain(), nil)
	stub := &broken{}
	err := w.Struct(stub, &Calculator{})
	require.Error(t, err)
	assert.ErrorIs(t, err, aop.ErrMethodNotFound)
	assert.ErrorIs(t, err, aop.ErrSignatureMismatch)
	assert.NotNil(t, stub.LogFn)

	assert.Error(t, w.Struct(broken{}, &Calculator{}))
	assert.Error(t, w.Struct(&broken{}, nil))
}

func TestWeaver_MultipleTypeArgumentsFailAtWeaving(t *testing.T) {
	impl := func() *pair[int, string] { return nil }
	var fn func() *pair[int, string]

	err := aop.NewWeaver(nil, aop.NewChain(), nil).Func(&fn, impl)
	assert.ErrorIs(t, err, aop.ErrMultipleTypeArguments)
	assert.Nil(t, fn)
}

func TestWeaver_RegistryAndLogging(t *testing.T) {
	var buf bytes.Buffer
	opts := aop.DefaultOptions()
	opts.Logger = core.NewLogger(&buf)
	w := aop.NewWeaver(nil, aop.NewChain(), opts)

	calc := &Calculator{}
	_, err := aop.NewProxy[CalculatorProxy](w, calc)
	require.NoError(t, err)
	_, err = aop.NewProxy[CalculatorProxy](w.WithServices(core.NewDIContainer()), calc)
	require.NoError(t, err)

	methods := w.Methods()
	require.Len(t, methods, 9)
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = m.Name
	}
	assert.Equal(t, []string{"Add", "Divide", "DoWorkAsync", "Flush", "GetNameAsync", "Log", "Page", "Schedule", "Sum"}, names)

	// descriptors are shared, so each method is logged once
	assert.Equal(t, 9, strings.Count(buf.String(), `"event":"ProxyWoven"`))
}

func TestWeaver_LightweightDisabled(t *testing.T) {
	opts := aop.DefaultOptions()
	opts.SupportsLightweightAsync = false

	p := new(MockPipeline)
	ch := make(chan error)
	p.On("Execute", mock.Anything).Return((<-chan error)(ch), nil).Once()

	var flush func(context.Context) <-chan error
	require.NoError(t, aop.NewWeaver(nil, p, opts).Method(&flush, &Calculator{}, "Flush"))
	assert.Equal(t, (<-chan error)(ch), flush(context.Background()))
	p.AssertNotCalled(t, "ExecuteSignal", mock.Anything)
	p.AssertExpectations(t)
}

func TestWeaver_ConcurrentCalls(t *testing.T) {
	var add func(a, b int) int
	require.NoError(t, aop.NewWeaver(nil, aop.NewChain(), nil).Method(&add, &Calculator{}, "Add"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.Equal(t, i+i, add(i, i))
		}(i)
	}
	wg.Wait()
}
