package keylock

import (
	"sync"
	"testing"
	"time"
)

func TestMapSerializesSameKey(t *testing.T) {
	t.Parallel()

	var (
		m       Map
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock("http://a.onion")
			defer unlock()

			mu.Lock()
			inside++
			maxSeen = max(maxSeen, inside)
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("expected one holder at a time, saw %d", maxSeen)
	}
	if n := m.Len(); n != 0 {
		t.Errorf("expected released keys to be pruned, %d left", n)
	}
}

func TestMapIndependentKeys(t *testing.T) {
	t.Parallel()

	var m Map
	unlockA := m.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := m.Lock("b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked while a was held")
	}
	if n := m.Len(); n != 1 {
		t.Errorf("expected 1 held key, got %d", n)
	}
	unlockA()
	if n := m.Len(); n != 0 {
		t.Errorf("expected no held keys, got %d", n)
	}
}
