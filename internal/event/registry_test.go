package event

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestRegistry_DeliversInSubscriptionOrder(t *testing.T) {
	var r Registry[int]
	var got []string
	r.Subscribe(func(int) { got = append(got, "a") })
	r.Subscribe(func(int) { got = append(got, "b") })

	r.Fire(1)

	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected delivery order %v", got)
	}
}

func TestRegistry_PanickingObserverDoesNotStopDelivery(t *testing.T) {
	var r Registry[string]
	var delivered int
	r.Subscribe(func(string) { panic("boom") })
	r.Subscribe(func(string) { delivered++ })

	r.Fire("ev")

	if delivered != 1 {
		t.Fatalf("expected later observer to receive the event, got %d", delivered)
	}
}

func TestRegistry_UnsubscribeDuringFire(t *testing.T) {
	var r Registry[int]
	var first, second int
	var unsub func()
	unsub = r.Subscribe(func(int) {
		first++
		unsub()
	})
	r.Subscribe(func(int) { second++ })

	r.Fire(1)
	r.Fire(2)

	if first != 1 {
		t.Fatalf("self-unsubscribing observer should see exactly one event, got %d", first)
	}
	if second != 2 {
		t.Fatalf("other observer should see both events, got %d", second)
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 observer left, got %d", r.Len())
	}
}

func TestRegistry_SubscribeDuringFireSeesOnlyLaterEvents(t *testing.T) {
	var r Registry[int]
	var late int
	var once sync.Once
	r.Subscribe(func(int) {
		once.Do(func() {
			r.Subscribe(func(int) { late++ })
		})
	})

	r.Fire(1)
	if late != 0 {
		t.Fatalf("observer added during delivery must not get the same event")
	}
	r.Fire(2)
	if late != 1 {
		t.Fatalf("expected late observer to get the next event, got %d", late)
	}
}

func TestRegistry_UnsubscribeIsIdempotent(t *testing.T) {
	var r Registry[int]
	unsub := r.Subscribe(func(int) {})
	unsub()
	unsub()
	if r.Len() != 0 {
		t.Fatalf("expected empty registry")
	}
}

func TestRegistry_ConcurrentFireAndSubscribe(t *testing.T) {
	var r Registry[int]
	var count atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				unsub := r.Subscribe(func(int) { count.Add(1) })
				unsub()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Fire(j)
			}
		}()
	}
	wg.Wait()

	if r.Len() != 0 {
		t.Fatalf("expected all observers removed, got %d", r.Len())
	}
}
