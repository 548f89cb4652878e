package poller

import (
	"sync"
	"testing"
	"time"
)

func TestCachePutGet(t *testing.T) {
	c := NewCache()

	if _, ok := c.Get("dev-1", 100); ok {
		t.Fatal("Get() on empty cache returned an entry")
	}

	now := time.Now()
	c.Put(Entry{DeviceID: "dev-1", Address: 100, Value: 1000.0, ReadAt: now})

	e, ok := c.Get("dev-1", 100)
	if !ok {
		t.Fatal("Get() = miss, want hit")
	}
	if e.Value != 1000.0 || !e.ReadAt.Equal(now) {
		t.Errorf("Get() = %+v", e)
	}

	// Overwrite wins.
	later := now.Add(time.Second)
	c.Put(Entry{DeviceID: "dev-1", Address: 100, Value: 995.5, ReadAt: later})
	e, _ = c.Get("dev-1", 100)
	if e.Value != 995.5 {
		t.Errorf("Get() after overwrite = %g, want 995.5", e.Value)
	}
}

func TestCacheDropDevice(t *testing.T) {
	c := NewCache()
	c.Put(Entry{DeviceID: "dev-1", Address: 100, Value: 1})
	c.Put(Entry{DeviceID: "dev-1", Address: 102, Value: 2})
	c.Put(Entry{DeviceID: "dev-2", Address: 100, Value: 3})

	c.DropDevice("dev-1")

	if _, ok := c.Get("dev-1", 100); ok {
		t.Error("dev-1/100 survived DropDevice")
	}
	if _, ok := c.Get("dev-2", 100); !ok {
		t.Error("dev-2/100 removed by DropDevice of dev-1")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := NewCache()
	var wg sync.WaitGroup

	// Writers and readers race on the same key; every observed value must be
	// one that some writer actually stored.
	const writers = 8
	const iterations = 500

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				c.Put(Entry{DeviceID: "dev-1", Address: 100, Value: float64(id*iterations + i)})
			}
		}(w)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < writers*iterations; i++ {
			if e, ok := c.Get("dev-1", 100); ok {
				if e.Value < 0 || e.Value >= writers*iterations {
					t.Errorf("observed torn value %g", e.Value)
					return
				}
			}
		}
	}()

	wg.Wait()
}
