package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUnboundedQueue_FIFOOrder(t *testing.T) {
	q := newUnboundedQueue[int]()
	for i := 0; i < 5; i++ {
		q.Push(i)
	}
	for i := 0; i < 5; i++ {
		item, ok := q.TryPop()
		require.True(t, ok)
		require.Equal(t, i, item)
	}
	_, ok := q.TryPop()
	require.False(t, ok)
}

func TestUnboundedQueue_PopBlocksUntilPush(t *testing.T) {
	q := newUnboundedQueue[string]()
	done := make(chan string)
	go func() {
		item, ok := q.Pop()
		require.True(t, ok)
		done <- item
	}()

	select {
	case <-done:
		t.Fatal("Pop returned before any item was pushed")
	case <-time.After(20 * time.Millisecond):
	}

	q.Push("hello")
	select {
	case item := <-done:
		require.Equal(t, "hello", item)
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after Push")
	}
}

func TestUnboundedQueue_CloseUnblocksPop(t *testing.T) {
	q := newUnboundedQueue[int]()
	done := make(chan bool)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Pop did not unblock after Close")
	}
}

func TestUnboundedQueue_WakeCh(t *testing.T) {
	q := newUnboundedQueue[int]()
	wake := q.wakeCh()

	q.Push(42)
	select {
	case <-wake:
	case <-time.After(time.Second):
		t.Fatal("wakeCh did not signal after Push")
	}

	item, ok := q.TryPop()
	require.True(t, ok)
	require.Equal(t, 42, item)

	q.Close()
	select {
	case <-wake:
	case <-time.After(time.Second):
		t.Fatal("wakeCh did not signal after Close")
	}
}
