package cache

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newClock() *clock { return &clock{t: time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)} }

// counting returns a FetchFunc that returns body and counts its calls.
func counting(body string, calls *int32) FetchFunc {
	return func(context.Context) ([]byte, error) {
		atomic.AddInt32(calls, 1)
		return []byte(body), nil
	}
}

func TestGetOrFetch_HitWithinTTL(t *testing.T) {
	clk := newClock()
	c := New(WithClock(clk.now))
	var calls int32

	v1, hit, err := c.GetOrFetch(context.Background(), "data", "stock=ASCELIA", time.Hour, counting(`{"a":1}`, &calls))
	if err != nil || hit {
		t.Fatalf("first call: hit=%v err=%v", hit, err)
	}
	clk.advance(59 * time.Minute)
	v2, hit, err := c.GetOrFetch(context.Background(), "data", "stock=ASCELIA", time.Hour, counting(`{"a":2}`, &calls))
	if err != nil || !hit {
		t.Fatalf("second call: hit=%v err=%v", hit, err)
	}

	if calls != 1 {
		t.Errorf("fetch calls: got %d, want 1", calls)
	}
	if !bytes.Equal(v1, v2) {
		t.Errorf("values differ: %s vs %s", v1, v2)
	}
}

func TestGetOrFetch_RefetchAfterTTL(t *testing.T) {
	clk := newClock()
	c := New(WithClock(clk.now))
	var calls int32

	c.GetOrFetch(context.Background(), "data", "", time.Hour, counting("old", &calls)) //nolint:errcheck
	clk.advance(time.Hour)                                                             // now == StoredAt+TTL: expired

	v, hit, err := c.GetOrFetch(context.Background(), "data", "", time.Hour, counting("new", &calls))
	if err != nil {
		t.Fatalf("GetOrFetch: %v", err)
	}
	if hit {
		t.Error("hit after TTL elapsed")
	}
	if string(v) != "new" {
		t.Errorf("value: got %q, want new", v)
	}
	if calls != 2 {
		t.Errorf("fetch calls: got %d, want 2", calls)
	}
}

func TestGetOrFetch_ErrorsNotCached(t *testing.T) {
	c := New()
	var calls int32
	boom := errors.New("upstream down")
	failing := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return nil, boom
	}

	for i := 0; i < 2; i++ {
		_, _, err := c.GetOrFetch(context.Background(), "market-guide", "stock=EGETIS", time.Hour, failing)
		if !errors.Is(err, boom) {
			t.Fatalf("call %d: err = %v, want %v", i, err, boom)
		}
	}
	if calls != 2 {
		t.Errorf("fetch calls: got %d, want 2", calls)
	}
	if c.Count() != 0 {
		t.Errorf("Count after failures: got %d, want 0", c.Count())
	}
}

func TestGetOrFetch_QueryOrderIsDistinct(t *testing.T) {
	c := New()
	var calls int32

	c.GetOrFetch(context.Background(), "data", "stock=EGETIS&from=2024-01-01", time.Hour, counting("a", &calls)) //nolint:errcheck
	c.GetOrFetch(context.Background(), "data", "from=2024-01-01&stock=EGETIS", time.Hour, counting("b", &calls)) //nolint:errcheck

	if calls != 2 {
		t.Errorf("fetch calls: got %d, want 2", calls)
	}
	if c.Count() != 2 {
		t.Errorf("Count: got %d, want 2", c.Count())
	}
}

func TestGetOrFetch_RoutesAreDistinct(t *testing.T) {
	c := New()
	var calls int32
	c.GetOrFetch(context.Background(), "data", "stock=ASCELIA", time.Hour, counting("a", &calls))         //nolint:errcheck
	c.GetOrFetch(context.Background(), "market-guide", "stock=ASCELIA", time.Hour, counting("b", &calls)) //nolint:errcheck
	if calls != 2 {
		t.Errorf("fetch calls: got %d, want 2", calls)
	}
}

func TestGetOrFetch_PerCallTTL(t *testing.T) {
	clk := newClock()
	c := New(WithClock(clk.now))
	var calls int32

	c.GetOrFetch(context.Background(), "short", "", time.Minute, counting("s", &calls)) //nolint:errcheck
	c.GetOrFetch(context.Background(), "long", "", 6*time.Hour, counting("l", &calls))  //nolint:errcheck
	clk.advance(2 * time.Minute)

	if _, ok := c.Get(Key("short", "")); ok {
		t.Error("short entry still valid after its TTL")
	}
	if _, ok := c.Get(Key("long", "")); !ok {
		t.Error("long entry expired early")
	}
}

func TestEvict_RemovesExpired(t *testing.T) {
	clk := newClock()
	c := New(WithClock(clk.now))

	c.Put("old1", []byte("x"), time.Minute)
	c.Put("old2", []byte("x"), time.Minute)
	c.Put("live", []byte("x"), time.Hour)
	clk.advance(10 * time.Minute)

	if removed := c.Evict(clk.now()); removed != 2 {
		t.Errorf("Evict: removed %d, want 2", removed)
	}
	if c.Count() != 1 {
		t.Errorf("Count after evict: got %d, want 1", c.Count())
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	c := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, 10*time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_ZeroIntervalReturns(t *testing.T) {
	done := make(chan struct{})
	go func() {
		New().Run(context.Background(), 0)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run with zero interval did not return")
	}
}

func TestInflightDedupe_SingleFetch(t *testing.T) {
	c := New(WithInflightDedupe(true))
	var calls int32
	release := make(chan struct{})
	slow := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []byte("v"), nil
	}

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := c.GetOrFetch(context.Background(), "owner-change", "stock=ASCELIA", time.Hour, slow)
			if err == nil && string(v) != "v" {
				err = errors.New("unexpected value " + string(v))
			}
			errs <- err
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}
	if calls != 1 {
		t.Errorf("fetch calls with dedupe: got %d, want 1", calls)
	}
}

func TestInflightDedupe_FirstCallerCancelled(t *testing.T) {
	c := New(WithInflightDedupe(true))
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(ctx context.Context) ([]byte, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []byte("v"), nil
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrFetch(firstCtx, "data", "stock=EGETIS", time.Hour, fetch)
		first <- err
	}()
	<-started

	second := make(chan error, 1)
	var secondValue []byte
	go func() {
		v, _, err := c.GetOrFetch(context.Background(), "data", "stock=EGETIS", time.Hour, fetch)
		secondValue = v
		second <- err
	}()
	time.Sleep(50 * time.Millisecond) // let the second caller join the flight

	cancelFirst()
	close(release)

	if err := <-second; err != nil {
		t.Fatalf("live caller: got %v, want value", err)
	}
	if string(secondValue) != "v" {
		t.Errorf("live caller value: got %q, want v", secondValue)
	}
	if err := <-first; err != nil {
		t.Errorf("cancelled caller: got %v, want shared value", err)
	}
	if calls != 1 {
		t.Errorf("fetch calls: got %d, want 1", calls)
	}
	if _, ok := c.Get(Key("data", "stock=EGETIS")); !ok {
		t.Error("shared result was not stored")
	}
}

func TestConcurrentMixedOps(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	var calls int32

	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			c.GetOrFetch(context.Background(), "data", "stock=ASCELIA", time.Hour, counting("v", &calls)) //nolint:errcheck
		}()
		go func() {
			defer wg.Done()
			c.Evict(time.Now())
		}()
		go func() {
			defer wg.Done()
			c.Count()
		}()
	}
	wg.Wait()

	if calls < 1 {
		t.Errorf("fetch calls: got %d, want at least 1", calls)
	}
}
