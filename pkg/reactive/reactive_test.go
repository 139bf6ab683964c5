package reactive

import (
	"sync"
	"testing"
)

// testListener is a simple Listener implementation for testing.
type testListener struct {
	id         uint64
	dirtyCount int
	mu         sync.Mutex
}

func newTestListener() *testListener {
	return &testListener{id: nextID()}
}

func (l *testListener) MarkDirty() {
	l.mu.Lock()
	l.dirtyCount++
	l.mu.Unlock()
}

func (l *testListener) ID() uint64 {
	return l.id
}

func (l *testListener) getDirtyCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dirtyCount
}

func TestSignalBasic(t *testing.T) {
	count := NewSignal(0)

	if count.Get() != 0 {
		t.Errorf("expected initial value 0, got %d", count.Get())
	}

	count.Set(5)
	if count.Get() != 5 {
		t.Errorf("expected value 5, got %d", count.Get())
	}

	count.Update(func(n int) int { return n * 2 })
	if count.Get() != 10 {
		t.Errorf("expected value 10, got %d", count.Get())
	}
}

func TestSignalSubscription(t *testing.T) {
	count := NewSignal(0)
	listener := newTestListener()

	WithListener(listener, func() {
		_ = count.Get()
	})

	count.Set(1)
	if listener.getDirtyCount() != 1 {
		t.Errorf("expected 1 notification, got %d", listener.getDirtyCount())
	}

	// Setting the same value again must not notify.
	count.Set(1)
	if listener.getDirtyCount() != 1 {
		t.Errorf("unchanged set should not notify, got %d", listener.getDirtyCount())
	}
}

func TestSignalPeekDoesNotSubscribe(t *testing.T) {
	count := NewSignal(42)
	listener := newTestListener()

	WithListener(listener, func() {
		if v := count.Peek(); v != 42 {
			t.Errorf("expected 42, got %d", v)
		}
	})

	count.Set(100)
	if listener.getDirtyCount() != 0 {
		t.Errorf("Peek should not subscribe, got %d notifications", listener.getDirtyCount())
	}
}

func TestUntracked(t *testing.T) {
	count := NewSignal(0)
	listener := newTestListener()

	WithListener(listener, func() {
		Untracked(func() {
			_ = count.Get()
		})
	})

	count.Set(1)
	if listener.getDirtyCount() != 0 {
		t.Errorf("Untracked read should not subscribe, got %d notifications", listener.getDirtyCount())
	}
}

func TestSignalCustomEquals(t *testing.T) {
	// Treat all even values as equal.
	sig := NewSignal(2).WithEquals(func(a, b int) bool {
		return a%2 == b%2
	})
	listener := newTestListener()
	WithListener(listener, func() { _ = sig.Get() })

	sig.Set(4)
	if listener.getDirtyCount() != 0 {
		t.Errorf("custom equals should suppress notification, got %d", listener.getDirtyCount())
	}

	sig.Set(5)
	if listener.getDirtyCount() != 1 {
		t.Errorf("expected 1 notification after parity change, got %d", listener.getDirtyCount())
	}
}

func TestMemoLazyAndCached(t *testing.T) {
	count := NewSignal(1)
	computations := 0

	double := NewMemo(func() int {
		computations++
		return count.Get() * 2
	})

	if computations != 0 {
		t.Errorf("memo should be lazy, computed %d times", computations)
	}

	if v := double.Get(); v != 2 {
		t.Errorf("expected 2, got %d", v)
	}
	if v := double.Get(); v != 2 {
		t.Errorf("expected 2, got %d", v)
	}
	if computations != 1 {
		t.Errorf("expected 1 computation for repeated reads, got %d", computations)
	}

	count.Set(3)
	if v := double.Get(); v != 6 {
		t.Errorf("expected 6 after dependency change, got %d", v)
	}
	if computations != 2 {
		t.Errorf("expected 2 computations, got %d", computations)
	}
}

func TestMemoStableReference(t *testing.T) {
	items := NewSignal([]string{"a", "b"})

	upper := NewMemo(func() []string {
		in := items.Get()
		out := make([]string, len(in))
		copy(out, in)
		return out
	})

	first := upper.Get()
	second := upper.Get()
	if &first[0] != &second[0] {
		t.Error("unchanged memo should return the same slice")
	}

	items.Set([]string{"a", "b", "c"})
	third := upper.Get()
	if len(third) != 3 {
		t.Errorf("expected recomputed slice of len 3, got %d", len(third))
	}
}

func TestMemoChain(t *testing.T) {
	count := NewSignal(1)
	double := NewMemo(func() int { return count.Get() * 2 })
	quad := NewMemo(func() int { return double.Get() * 2 })

	if v := quad.Get(); v != 4 {
		t.Errorf("expected 4, got %d", v)
	}

	count.Set(5)
	if v := quad.Get(); v != 20 {
		t.Errorf("expected 20, got %d", v)
	}
}

func TestBatchCoalescesNotifications(t *testing.T) {
	a := NewSignal(0)
	b := NewSignal(0)
	listener := newTestListener()

	WithListener(listener, func() {
		_ = a.Get()
		_ = b.Get()
	})

	Batch(func() {
		a.Set(1)
		b.Set(2)
		a.Set(3)
	})

	if listener.getDirtyCount() != 1 {
		t.Errorf("expected 1 coalesced notification, got %d", listener.getDirtyCount())
	}
}

func TestNestedBatch(t *testing.T) {
	a := NewSignal(0)
	listener := newTestListener()
	WithListener(listener, func() { _ = a.Get() })

	Batch(func() {
		a.Set(1)
		Batch(func() {
			a.Set(2)
		})
		if listener.getDirtyCount() != 0 {
			t.Error("inner batch must not flush notifications")
		}
	})

	if listener.getDirtyCount() != 1 {
		t.Errorf("expected 1 notification after outermost batch, got %d", listener.getDirtyCount())
	}
}

func TestTrackingContextIsolation(t *testing.T) {
	var wg sync.WaitGroup
	contexts := make(chan *trackingContext, 2)

	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			contexts <- getTrackingContext()
		}()
	}
	wg.Wait()
	close(contexts)

	var list []*trackingContext
	for ctx := range contexts {
		list = append(list, ctx)
	}
	if len(list) == 2 && list[0] == list[1] {
		t.Error("different goroutines should have different tracking contexts")
	}
}

func TestSignalConcurrentAccess(t *testing.T) {
	sig := NewSignal(0)
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sig.Update(func(n int) int { return n + 1 })
		}()
		go func() {
			defer wg.Done()
			_ = sig.Peek()
		}()
	}
	wg.Wait()

	if v := sig.Peek(); v != 10 {
		t.Errorf("expected 10 after concurrent updates, got %d", v)
	}
}
