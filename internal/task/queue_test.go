package task_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/streamgraph/filtercore/internal/task"
)

func TestQueueRunsImmediateTasks(t *testing.T) {
	q := task.New(2)
	defer q.Close()

	var n atomic.Int32
	done := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		q.PostNow(func() {
			n.Add(1)
			done <- struct{}{}
		})
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for task")
		}
	}
	assert.Equal(t, int32(3), n.Load())
}

func TestQueueRespectsDelay(t *testing.T) {
	q := task.New(1)
	defer q.Close()

	start := time.Now()
	done := make(chan time.Time, 1)
	q.Post(func() { done <- time.Now() }, 50*time.Millisecond)

	select {
	case at := <-done:
		assert.GreaterOrEqual(t, at.Sub(start), 45*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delayed task")
	}
}

func TestQueueRequeue(t *testing.T) {
	q := task.New(1)
	defer q.Close()

	var attempts atomic.Int32
	done := make(chan struct{}, 1)

	var run task.Func
	run = func() {
		if attempts.Add(1) < 3 {
			q.Post(run, time.Millisecond)
			return
		}
		done <- struct{}{}
	}
	q.PostNow(run)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for requeued task to converge")
	}
	assert.Equal(t, int32(3), attempts.Load())
}
