package observable_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thingzone/wotlib-go/pkg/observable"
)

// collector gathers the signals a subscriber receives
type collector struct {
	mutex     sync.Mutex
	items     []interface{}
	errs      []error
	completed bool
}

func (col *collector) subscribe(obsv *observable.Observable) *observable.Subscriber {
	return obsv.Subscribe(
		func(item interface{}) {
			col.mutex.Lock()
			col.items = append(col.items, item)
			col.mutex.Unlock()
		},
		func(err error) {
			col.mutex.Lock()
			col.errs = append(col.errs, err)
			col.mutex.Unlock()
		},
		func() {
			col.mutex.Lock()
			col.completed = true
			col.mutex.Unlock()
		},
	)
}

func (col *collector) snapshot() ([]interface{}, []error, bool) {
	col.mutex.Lock()
	defer col.mutex.Unlock()
	items := make([]interface{}, len(col.items))
	copy(items, col.items)
	errs := make([]error, len(col.errs))
	copy(errs, col.errs)
	return items, errs, col.completed
}

// waitFor polls the condition until it holds or the timeout expires
func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.Fail(t, "condition not met before timeout")
}

func TestSubjectMulticast(t *testing.T) {
	subject := observable.NewSubject()
	col1 := &collector{}
	col2 := &collector{}
	col1.subscribe(subject.Observable())
	col2.subscribe(subject.Observable())

	subject.Next("first")
	subject.Next("second")

	items1, _, _ := col1.snapshot()
	items2, _, _ := col2.snapshot()
	assert.Equal(t, []interface{}{"first", "second"}, items1)
	assert.Equal(t, []interface{}{"first", "second"}, items2)
}

func TestSubjectDisposeOneSubscriber(t *testing.T) {
	subject := observable.NewSubject()
	col1 := &collector{}
	col2 := &collector{}
	sub1 := col1.subscribe(subject.Observable())
	col2.subscribe(subject.Observable())

	subject.Next(1)
	sub1.Dispose()
	subject.Next(2)

	items1, _, _ := col1.snapshot()
	items2, _, _ := col2.snapshot()
	assert.Equal(t, []interface{}{1}, items1)
	assert.Equal(t, []interface{}{1, 2}, items2)
	assert.True(t, sub1.Disposed())

	// disposing twice is a no-op
	sub1.Dispose()
}

func TestSubjectComplete(t *testing.T) {
	subject := observable.NewSubject()
	col := &collector{}
	col.subscribe(subject.Observable())

	subject.Next("item")
	subject.Complete()
	// ignored after the terminal signal
	subject.Next("late")

	items, _, completed := col.snapshot()
	assert.Equal(t, []interface{}{"item"}, items)
	assert.True(t, completed)

	// a late subscriber completes asynchronously without items
	late := &collector{}
	late.subscribe(subject.Observable())
	waitFor(t, func() bool {
		_, _, done := late.snapshot()
		return done
	})
	lateItems, _, _ := late.snapshot()
	assert.Empty(t, lateItems)
}

func TestSubjectFail(t *testing.T) {
	failure := errors.New("stream broke")
	subject := observable.NewSubject()
	col := &collector{}
	col.subscribe(subject.Observable())

	subject.Fail(failure)
	subject.Next("ignored")

	_, errs, _ := col.snapshot()
	require.Len(t, errs, 1)
	assert.Equal(t, failure, errs[0])

	// a late subscriber receives the same error asynchronously
	late := &collector{}
	late.subscribe(subject.Observable())
	waitFor(t, func() bool {
		_, lateErrs, _ := late.snapshot()
		return len(lateErrs) == 1
	})
}

func TestThrow(t *testing.T) {
	failure := errors.New("no such stream")
	col := &collector{}
	col.subscribe(observable.Throw(failure))

	waitFor(t, func() bool {
		_, errs, _ := col.snapshot()
		return len(errs) == 1
	})
	items, errs, _ := col.snapshot()
	assert.Empty(t, items)
	assert.Equal(t, failure, errs[0])
}

func TestFilter(t *testing.T) {
	subject := observable.NewSubject()
	even := &collector{}
	even.subscribe(subject.Observable().Filter(func(item interface{}) bool {
		return item.(int)%2 == 0
	}))

	for value := 1; value <= 5; value++ {
		subject.Next(value)
	}

	items, _, _ := even.snapshot()
	assert.Equal(t, []interface{}{2, 4}, items)
}

func TestFilterDisposeStopsUpstream(t *testing.T) {
	subject := observable.NewSubject()
	col := &collector{}
	sub := col.subscribe(subject.Observable().Filter(func(item interface{}) bool {
		return true
	}))

	subject.Next("before")
	sub.Dispose()
	subject.Next("after")

	items, _, _ := col.snapshot()
	assert.Equal(t, []interface{}{"before"}, items)
}

func TestDisposeFromWithinCallback(t *testing.T) {
	subject := observable.NewSubject()
	var items []interface{}
	var sub *observable.Subscriber
	sub = subject.Observable().Subscribe(func(item interface{}) {
		items = append(items, item)
		sub.Dispose()
	}, nil, nil)

	subject.Next("only")
	subject.Next("never")

	assert.Equal(t, []interface{}{"only"}, items)
}
