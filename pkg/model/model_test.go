package model

import (
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/pushmodel-dev/pushmodel/pkg/observe"
	"github.com/pushmodel-dev/pushmodel/pkg/subscription"
)

func TestScheduleRunsAfterTurn(t *testing.T) {
	m := New(nil, nil)
	var order []string

	m.Do(func() {
		m.Schedule(func() { order = append(order, "first") })
		m.Schedule(func() { order = append(order, "second") })
		order = append(order, "turn")
	})

	if diff := cmp.Diff([]string{"turn", "first", "second"}, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestScheduleFromCallbackRunsLater(t *testing.T) {
	m := New(nil, nil)
	done := make(chan struct{})

	m.Do(func() {
		m.Schedule(func() {
			m.Schedule(func() {
				m.Do(func() {})
				close(done)
			})
		})
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback scheduled from a callback never ran")
	}
}

func TestConcurrentTurnsFlushWhole(t *testing.T) {
	const (
		workers  = 8
		turns    = 300
		batchers = 20
	)
	m := New(nil, nil)

	var mu sync.Mutex
	var sent [][]observe.Patch
	bs := make([]*subscription.Batcher, batchers)
	for i := range bs {
		bs[i] = subscription.NewBatcher(m, func(p []observe.Patch) {
			mu.Lock()
			sent = append(sent, p)
			mu.Unlock()
		})
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < turns; i++ {
				m.Do(func() {
					for _, b := range bs {
						b.Enqueue(observe.Patch{Op: "add", Path: "/a", Value: i})
						b.Enqueue(observe.Patch{Op: "add", Path: "/b", Value: i})
					}
				})
			}
		}()
	}
	wg.Wait()

	if len(sent) != workers*turns*batchers {
		t.Errorf("notifications = %d, want %d", len(sent), workers*turns*batchers)
	}
	for _, batch := range sent {
		if len(batch) != 2 || batch[0].Path != "/a" || batch[1].Path != "/b" {
			t.Fatalf("turn split or merged across notifications: %v", batch)
		}
	}
}

func TestTurnWaitsForFlush(t *testing.T) {
	m := New(nil, nil)
	var batches [][]string
	b := subscription.NewBatcher(m, func(p []observe.Patch) {
		var paths []string
		for _, x := range p {
			paths = append(paths, x.Path)
		}
		batches = append(batches, paths)
	})

	m.Do(func() { b.Enqueue(observe.Patch{Op: "add", Path: "/turn1"}) })
	m.Do(func() {
		b.Enqueue(observe.Patch{Op: "add", Path: "/turn2-a"})
		b.Enqueue(observe.Patch{Op: "add", Path: "/turn2-b"})
	})

	want := [][]string{{"/turn1"}, {"/turn2-a", "/turn2-b"}}
	if diff := cmp.Diff(want, batches); diff != "" {
		t.Errorf("batches mismatch (-want +got):\n%s", diff)
	}
}

func TestScheduleOutsideTurn(t *testing.T) {
	m := New(nil, nil)
	done := make(chan struct{})
	m.Schedule(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Schedule outside a turn never ran")
	}
}

func TestDoSerializesTurns(t *testing.T) {
	m := New(nil, nil)
	m.Do(func() { m.Root().Set("n", 0) })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Do(func() {
				n := m.Root().Get("n").(int)
				m.Root().Set("n", n+1)
			})
		}()
	}
	wg.Wait()

	m.Do(func() {
		if got := m.Root().Get("n"); got != 50 {
			t.Errorf("n = %v, want 50", got)
		}
	})
}

func TestDoReleasesLockOnPanic(t *testing.T) {
	m := New(nil, nil)
	ran := false

	func() {
		defer func() { recover() }()
		m.Do(func() {
			m.Schedule(func() { ran = true })
			panic("boom")
		})
	}()

	if !ran {
		t.Error("scheduled callback lost after panic")
	}
	m.Do(func() {})
}

func TestSessionSwap(t *testing.T) {
	m := New(nil, nil)
	s := observe.NewObject()

	m.Do(func() {
		m.SetSession(s)
		m.SessionObject().Set("user", "ann")
		if m.Session() != s {
			t.Error("Session() did not return installed session")
		}
		got, err := observe.Resolve(m.Root(), "/session/user")
		if err != nil || got != "ann" {
			t.Errorf("Resolve(/session/user) = %v, %v", got, err)
		}
		m.ClearSession()
	})

	m.Do(func() {
		if m.Session() != nil {
			t.Errorf("Session() = %v after ClearSession", m.Session())
		}
	})
	if s.Get("user") != "ann" {
		t.Error("session state lost")
	}
}

func TestSessionSubscriptionSurvivesSwap(t *testing.T) {
	m := New(nil, nil)
	s := observe.NewObject()
	var patches []observe.Patch

	m.Do(func() {
		m.SetSession(s)
		s.Subscribe(func(p observe.Patch) { patches = append(patches, p) })
		m.ClearSession()
	})
	m.Do(func() {
		m.SetSession(s)
		s.Set("state", map[string]any{"open": false})
		m.ClearSession()
	})

	if len(patches) != 1 || patches[0].Path != "/state" {
		t.Errorf("patches = %v, want add /state", patches)
	}
}
