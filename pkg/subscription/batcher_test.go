package subscription

import (
	"sync"
	"testing"

	"github.com/pushmodel-dev/pushmodel/pkg/observe"
)

func TestBatcherFlushEmptySendsNothing(t *testing.T) {
	var sent int
	b := NewBatcher(SchedulerFunc(func(func()) {}), func([]observe.Patch) { sent++ })
	b.Flush()
	if sent != 0 {
		t.Errorf("sent = %d, want 0", sent)
	}
}

func TestBatcherSchedulesOncePerQueue(t *testing.T) {
	tq := &turns{}
	var batches [][]observe.Patch
	b := NewBatcher(tq, func(p []observe.Patch) { batches = append(batches, p) })

	b.Enqueue(observe.Patch{Op: observe.OpRemove, Path: "/a"})
	b.Enqueue(observe.Patch{Op: observe.OpRemove, Path: "/b"})
	if len(tq.queued) != 1 {
		t.Fatalf("scheduled = %d, want 1", len(tq.queued))
	}
	if b.Len() != 2 {
		t.Errorf("Len() = %d, want 2", b.Len())
	}
	tq.end()

	b.Enqueue(observe.Patch{Op: observe.OpRemove, Path: "/c"})
	if len(tq.queued) != 1 {
		t.Fatalf("after flush scheduled = %d, want 1", len(tq.queued))
	}
	tq.end()

	if len(batches) != 2 || len(batches[0]) != 2 || batches[1][0].Path != "/c" {
		t.Errorf("batches = %v", batches)
	}
}

func TestBatcherConcurrentEnqueue(t *testing.T) {
	var (
		mu    sync.Mutex
		total int
		wg    sync.WaitGroup
	)
	sched := SchedulerFunc(func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	})
	b := NewBatcher(sched, func(p []observe.Patch) {
		mu.Lock()
		total += len(p)
		mu.Unlock()
	})

	var producers sync.WaitGroup
	for i := 0; i < 8; i++ {
		producers.Add(1)
		go func() {
			defer producers.Done()
			for j := 0; j < 100; j++ {
				b.Enqueue(observe.Patch{Op: observe.OpReplace, Path: "/x"})
			}
		}()
	}
	producers.Wait()
	wg.Wait()
	b.Flush()

	if total != 800 {
		t.Errorf("delivered %d patches, want 800", total)
	}
}
