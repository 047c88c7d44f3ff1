package syncx

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestFlightExclusive(t *testing.T) {
	var f Flight

	if !f.TryAcquire() {
		t.Fatal("first TryAcquire should succeed")
	}
	if f.TryAcquire() {
		t.Error("second TryAcquire should fail while held")
	}
	if !f.Held() {
		t.Error("Held() should be true")
	}

	f.Release()
	if f.Held() {
		t.Error("Held() should be false after Release")
	}
	if !f.TryAcquire() {
		t.Error("TryAcquire should succeed after Release")
	}
}

func TestFlightReleaseIdempotent(t *testing.T) {
	var f Flight
	f.Release()
	f.Release()
	if f.Held() {
		t.Error("releasing a free flight should leave it free")
	}
}

func TestFlightConcurrentSingleWinner(t *testing.T) {
	var f Flight
	var winners atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.TryAcquire() {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := winners.Load(); got != 1 {
		t.Errorf("winners = %d, want 1", got)
	}
}
