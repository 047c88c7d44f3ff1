package syncx

import (
	"sync"
	"testing"
)

func TestGuardGetSet(t *testing.T) {
	g := NewGuard(42.0)

	if got := g.Get(); got != 42 {
		t.Errorf("Get() = %v, want 42", got)
	}

	g.Set(1500)
	if got := g.Get(); got != 1500 {
		t.Errorf("Get() after Set = %v, want 1500", got)
	}
}

func TestView(t *testing.T) {
	g := NewGuard([]string{"eng", "deu", "fra"})

	n := View(g, func(v []string) int { return len(v) })
	if n != 3 {
		t.Errorf("View() = %d, want 3", n)
	}
}

func TestGuardWrite(t *testing.T) {
	type result struct{ text string }
	g := NewGuard(result{})

	g.Write(func(r *result) {
		r.text = "HELLO"
	})

	if got := g.Get().text; got != "HELLO" {
		t.Errorf("Get().text = %q, want %q", got, "HELLO")
	}
}

func TestGuardCompareAndWrite(t *testing.T) {
	type result struct {
		id   string
		text string
	}
	g := NewGuard(result{id: "a"})

	ran := g.CompareAndWrite(func(r result) bool { return r.id == "b" }, func(r *result) { r.text = "stale" })
	if ran {
		t.Error("CompareAndWrite ran despite failing condition")
	}

	ran = g.CompareAndWrite(func(r result) bool { return r.id == "a" }, func(r *result) { r.text = "fresh" })
	if !ran {
		t.Error("CompareAndWrite should run when condition holds")
	}
	if got := g.Get().text; got != "fresh" {
		t.Errorf("text = %q, want %q", got, "fresh")
	}
}

func TestGuardConcurrentSafety(t *testing.T) {
	g := NewGuard(0)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			g.Write(func(v *int) { *v++ })
		}()
		go func() {
			defer wg.Done()
			_ = g.Get()
		}()
	}
	wg.Wait()

	if got := g.Get(); got != 100 {
		t.Errorf("Get() = %d, want 100", got)
	}
}
