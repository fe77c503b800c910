package http

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/freekieb7/websrv/test"
)

func TestWorkerPoolInvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		pool, err := NewWorkerPool(size)
		test.AssertErrorIs(t, err, ErrInvalidPoolSize)
		test.AssertTrue(t, pool == nil, "no pool on invalid size")
	}
}

func TestWorkerPoolRunsEveryJobOnce(t *testing.T) {
	for _, tc := range []struct{ workers, jobs int }{{1, 50}, {4, 200}, {8, 3}} {
		pool, err := NewWorkerPool(tc.workers)
		if !test.AssertNoError(t, err) {
			t.FailNow()
		}

		var (
			wg         sync.WaitGroup
			running    atomic.Int64
			maxRunning atomic.Int64
		)
		executions := make([]atomic.Int64, tc.jobs)

		wg.Add(tc.jobs)
		for i := 0; i < tc.jobs; i++ {
			i := i
			err := pool.Submit(func() {
				defer wg.Done()

				now := running.Add(1)
				for {
					seen := maxRunning.Load()
					if now <= seen || maxRunning.CompareAndSwap(seen, now) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				running.Add(-1)

				executions[i].Add(1)
			})
			test.AssertNoError(t, err)
		}

		wg.Wait()
		pool.Shutdown()

		for i := range executions {
			test.AssertEqual(t, int64(1), executions[i].Load())
		}
		test.AssertTrue(t, maxRunning.Load() <= int64(tc.workers), "more jobs ran at once than there are workers")
		test.AssertEqual(t, PoolStopped, pool.State())
	}
}

func TestWorkerPoolUsesAllWorkers(t *testing.T) {
	const workers = 4

	pool, err := NewWorkerPool(workers)
	if !test.AssertNoError(t, err) {
		t.FailNow()
	}
	defer pool.Shutdown()

	var started sync.WaitGroup
	release := make(chan struct{})

	started.Add(workers)
	for i := 0; i < workers; i++ {
		test.AssertNoError(t, pool.Submit(func() {
			started.Done()
			<-release
		}))
	}

	// blocks forever unless all workers pick up a job concurrently
	started.Wait()
	test.AssertEqual(t, workers, pool.Active())
	close(release)
}

func TestWorkerPoolShutdownWaitsForRunningJob(t *testing.T) {
	pool, err := NewWorkerPool(1)
	if !test.AssertNoError(t, err) {
		t.FailNow()
	}

	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	test.AssertNoError(t, pool.Submit(func() {
		close(started)
		<-release
		finished.Store(true)
	}))
	<-started

	var queuedRan atomic.Int64
	for i := 0; i < 3; i++ {
		test.AssertNoError(t, pool.Submit(func() { queuedRan.Add(1) }))
	}

	abandonedCh := make(chan int)
	go func() {
		abandonedCh <- pool.Shutdown()
	}()

	select {
	case <-abandonedCh:
		t.Fatal("shutdown returned while a job was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	abandoned := <-abandonedCh

	test.AssertTrue(t, finished.Load(), "running job must complete before shutdown returns")
	test.AssertEqual(t, 3, abandoned)
	test.AssertEqual(t, int64(0), queuedRan.Load())
	test.AssertEqual(t, PoolStopped, pool.State())
}

func TestWorkerPoolSubmitAfterShutdown(t *testing.T) {
	pool, err := NewWorkerPool(2)
	if !test.AssertNoError(t, err) {
		t.FailNow()
	}

	test.AssertEqual(t, PoolRunning, pool.State())
	test.AssertEqual(t, 0, pool.Shutdown())
	test.AssertEqual(t, 0, pool.Shutdown())

	test.AssertErrorIs(t, pool.Submit(func() {}), ErrPoolClosed)
}

func TestWorkerPoolSurvivesPanic(t *testing.T) {
	pool, err := NewWorkerPool(1)
	if !test.AssertNoError(t, err) {
		t.FailNow()
	}
	defer pool.Shutdown()

	test.AssertNoError(t, pool.Submit(func() { panic("job failure") }))

	done := make(chan struct{})
	test.AssertNoError(t, pool.Submit(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("the only worker died with the panicking job")
	}
}

func TestPoolStateString(t *testing.T) {
	test.AssertEqual(t, "running", PoolRunning.String())
	test.AssertEqual(t, "draining", PoolDraining.String())
	test.AssertEqual(t, "stopped", PoolStopped.String())
}

func BenchmarkWorkerPoolSubmit(b *testing.B) {
	pool, err := NewWorkerPool(4)
	if err != nil {
		b.Fatal(err)
	}
	defer pool.Shutdown()

	var wg sync.WaitGroup
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wg.Add(1)
		if err := pool.Submit(wg.Done); err != nil {
			b.Fatal(err)
		}
	}
	wg.Wait()
}
