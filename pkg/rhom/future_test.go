package rhom

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuture_ResolveOnce(t *testing.T) {
	f, resolve := NewFuture[int]()
	assert.False(t, f.Settled())

	resolve(1, nil)
	resolve(2, errors.New("ignored"))

	v, err := f.Wait()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.True(t, f.Settled())
}

func TestFuture_ThenOrder(t *testing.T) {
	f, resolve := NewFuture[string]()
	var order []string

	f.Then(func(v string, _ error) { order = append(order, "first:"+v) })
	f.Then(func(v string, _ error) { order = append(order, "second:"+v) })
	f.Then(nil)
	resolve("x", nil)
	f.Then(func(v string, _ error) { order = append(order, "late:"+v) })

	assert.Equal(t, []string{"first:x", "second:x", "late:x"}, order)
}

func TestFuture_Await(t *testing.T) {
	t.Run("returns outcome", func(t *testing.T) {
		f, resolve := NewFuture[int]()
		go func() {
			time.Sleep(5 * time.Millisecond)
			resolve(7, nil)
		}()
		v, err := f.Await(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 7, v)
	})

	t.Run("returns context error", func(t *testing.T) {
		f, _ := NewFuture[int]()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := f.Await(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRejected_InvokesCallbacksImmediately(t *testing.T) {
	errBoom := errors.New("boom")
	var called atomic.Int32

	f := Rejected[*Instance](errBoom, func(inst *Instance, err error) {
		called.Add(1)
		assert.Nil(t, inst)
		assert.Same(t, errBoom, err)
	})

	assert.Equal(t, int32(1), called.Load())
	select {
	case <-f.Done():
	default:
		t.Fatal("rejected future should be settled")
	}
	_, err := f.Wait()
	assert.Same(t, errBoom, err)
}

func TestResolvedAndUntyped(t *testing.T) {
	v, err := Resolved(42).Untyped().Wait()
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	errBoom := errors.New("boom")
	v, err = Rejected[int](errBoom).Untyped().Wait()
	assert.Nil(t, v)
	assert.Same(t, errBoom, err)
}

func TestBridge_CallbackAndFutureAgree(t *testing.T) {
	users := New("User", WithLogger(quietLogger()))
	users.Subscribe(Primary(OpAll), func(ev *Event) {
		go ev.Success([]string{"a", "b"})
	})

	got := make(chan []string, 1)
	var calls atomic.Int32
	f := users.All(context.Background(), func(ids []string, err error) {
		calls.Add(1)
		assert.NoError(t, err)
		got <- ids
	})

	ids, err := f.Wait()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.Equal(t, []string{"a", "b"}, <-got)
	assert.Equal(t, int32(1), calls.Load())
}

func TestBridge_FutureSettlesAfterAfterPhase(t *testing.T) {
	users := New("User", WithLogger(quietLogger()))
	var afterDone atomic.Bool

	users.Subscribe(Primary(OpAll), func(ev *Event) { go ev.Success([]string{}) })
	users.Subscribe(After(OpAll), func(*Event) {
		time.Sleep(5 * time.Millisecond)
		afterDone.Store(true)
	})

	_, err := users.All(context.Background()).Wait()
	require.NoError(t, err)
	assert.True(t, afterDone.Load())
}

func TestBridge_WrongResultType(t *testing.T) {
	users := New("User", WithLogger(quietLogger()))
	users.Subscribe(Primary(OpPurge), func(ev *Event) { ev.Success("yes") })

	_, err := users.Purge(context.Background()).Wait()

	var rte *ResultTypeError
	require.ErrorAs(t, err, &rte)
	assert.Equal(t, OpPurge, rte.Op)
	assert.Equal(t, "bool", rte.Want)
	assert.Equal(t, "string", rte.Got)
	assert.ErrorIs(t, err, ErrResultType)
}
