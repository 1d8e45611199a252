package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache[string](3, time.Hour)

	c.Set("key1", "value1")
	c.Set("key2", "value2")
	c.Set("key3", "value3")
	c.Set("key4", "value4") // evicts key1

	if _, found := c.Get("key1"); found {
		t.Error("key1 should have been evicted")
	}
	for _, k := range []string{"key2", "key3", "key4"} {
		if _, found := c.Get(k); !found {
			t.Errorf("%s should still exist", k)
		}
	}
}

func TestLRUCacheRecencyProtectsFromEviction(t *testing.T) {
	c := NewLRUCache[int](2, time.Hour)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3) // evicts b, a was used more recently

	if _, found := c.Get("b"); found {
		t.Error("b should have been evicted")
	}
	if v, found := c.Get("a"); !found || v != 1 {
		t.Errorf("a = %v, %v; want 1, true", v, found)
	}
}

func TestLRUCacheTTLExpiration(t *testing.T) {
	c := NewLRUCache[string](100, 50*time.Millisecond)

	c.Set("key1", "value1")
	if _, found := c.Get("key1"); !found {
		t.Error("key1 should exist immediately")
	}

	time.Sleep(60 * time.Millisecond)

	if _, found := c.Get("key1"); found {
		t.Error("key1 should have expired")
	}
}

func TestLRUCacheCleanExpired(t *testing.T) {
	c := NewLRUCache[string](100, 50*time.Millisecond)

	c.Set("key1", "value1")
	c.Set("key2", "value2")
	c.Set("key3", "value3")

	time.Sleep(60 * time.Millisecond)

	if removed := c.CleanExpired(); removed != 3 {
		t.Errorf("Expected 3 items cleaned, got %d", removed)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0", c.Size())
	}
}

func TestLRUCacheClear(t *testing.T) {
	c := NewLRUCache[string](10, time.Hour)
	c.Set("a", "1")
	c.Set("b", "2")

	c.Clear()

	if c.Size() != 0 {
		t.Errorf("Size() = %d after Clear, want 0", c.Size())
	}
	c.Set("c", "3")
	if _, found := c.Get("c"); !found {
		t.Error("cache should be usable after Clear")
	}
}

func TestLRUCacheStats(t *testing.T) {
	c := NewLRUCache[string](10, time.Hour)
	c.Set("a", "1")
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 || s.Size != 1 {
		t.Errorf("Stats() = %+v, want hits=2 misses=1 size=1", s)
	}
}

func TestLRUCacheGetOrLoad(t *testing.T) {
	c := NewLRUCache[string](10, time.Hour)
	var calls atomic.Int32

	load := func() (string, error) {
		calls.Add(1)
		return "loaded", nil
	}

	v, cached, err := c.GetOrLoad("k", load)
	if err != nil || v != "loaded" || cached {
		t.Fatalf("first GetOrLoad = %q, %v, %v", v, cached, err)
	}
	v, cached, err = c.GetOrLoad("k", load)
	if err != nil || v != "loaded" || !cached {
		t.Fatalf("second GetOrLoad = %q, %v, %v", v, cached, err)
	}
	if calls.Load() != 1 {
		t.Errorf("load called %d times, want 1", calls.Load())
	}
}

func TestLRUCacheGetOrLoadErrorNotCached(t *testing.T) {
	c := NewLRUCache[string](10, time.Hour)
	boom := errors.New("boom")

	if _, _, err := c.GetOrLoad("k", func() (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if c.Size() != 0 {
		t.Errorf("failed load should not be cached")
	}
}

func TestLRUCacheGetOrLoadCollapsesConcurrentMisses(t *testing.T) {
	c := NewLRUCache[int](10, time.Hour)
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := c.GetOrLoad("k", func() (int, error) {
				calls.Add(1)
				<-release
				return 42, nil
			})
			if err != nil || v != 42 {
				t.Errorf("GetOrLoad = %d, %v", v, err)
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("load called %d times, want 1", calls.Load())
	}
}

func TestLRUCacheClearDiscardsInFlightLoad(t *testing.T) {
	c := NewLRUCache[int](10, time.Hour)
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan int)

	go func() {
		v, _, _ := c.GetOrLoad("k", func() (int, error) {
			close(started)
			<-release
			return 1, nil
		})
		done <- v
	}()
	<-started
	c.Clear()

	// Callers after Clear must not join the load that started before it.
	v, cached, err := c.GetOrLoad("k", func() (int, error) { return 2, nil })
	if err != nil || cached || v != 2 {
		t.Fatalf("GetOrLoad after Clear = %d, %v, %v; want 2, false, nil", v, cached, err)
	}

	close(release)
	if v := <-done; v != 1 {
		t.Errorf("in-flight caller got %d, want 1", v)
	}
	if v, found := c.Get("k"); !found || v != 2 {
		t.Errorf("Get(k) = %d, %v; want 2, true", v, found)
	}
}

func TestLRUCacheClearWithoutFollowUpDropsLateResult(t *testing.T) {
	c := NewLRUCache[int](10, time.Hour)
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		c.GetOrLoad("k", func() (int, error) {
			close(started)
			<-release
			return 1, nil
		})
	}()
	<-started
	c.Clear()
	close(release)
	<-done

	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0: a load overlapping Clear must not be stored", c.Size())
	}
}

func TestManagerSweep(t *testing.T) {
	a := NewLRUCache[string](10, time.Nanosecond)
	b := NewLRUCache[int](10, time.Nanosecond)
	a.Set("x", "1")
	b.Set("y", 2)
	time.Sleep(time.Millisecond)

	m := NewManager(nil)
	m.Register(a)
	m.Register(b)

	if n := m.Sweep(); n != 2 {
		t.Errorf("Sweep() = %d, want 2", n)
	}
}

func TestManagerStartStop(t *testing.T) {
	m := NewManager(nil)
	m.Register(NewLRUCache[string](1, time.Hour))
	m.StartCleanup(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	m.Stop()
	m.Stop()
}

func TestManagerStopWithoutStart(t *testing.T) {
	m := NewManager(nil)

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		m.Stop()
		m.StartCleanup(time.Millisecond)
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked without a running cleanup routine")
	}
}

func BenchmarkLRUCache(b *testing.B) {
	c := NewLRUCache[string](1000, time.Hour)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if i%10 == 0 {
			c.Set("bench-key", "chart")
		} else {
			c.Get("bench-key")
		}
	}
}
