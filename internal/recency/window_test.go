package recency

import (
	"fmt"
	"sync"
	"testing"
)

func TestWindowFIFO(t *testing.T) {
	w := New(3)

	for _, s := range []string{"a", "b", "c", "d"} {
		w.Record(s)
	}

	if w.Len() != 3 {
		t.Fatalf("expected len 3, got %d", w.Len())
	}
	if w.Contains("a") {
		t.Error("oldest entry should have been evicted")
	}
	for _, s := range []string{"b", "c", "d"} {
		if !w.Contains(s) {
			t.Errorf("expected window to contain %q", s)
		}
	}

	got := w.Items()
	want := []string{"b", "c", "d"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("item %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestWindowDuplicates(t *testing.T) {
	w := New(2)
	w.Record("x")
	w.Record("x")
	w.Record("y")

	// one "x" was evicted, the second is still inside
	if !w.Contains("x") {
		t.Error("expected x to remain after evicting its first copy")
	}

	w.Record("z")
	if w.Contains("x") {
		t.Error("expected x to be gone after both copies were evicted")
	}
}

func TestWindowCapacityFloor(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		want     int
	}{
		{"zero", 0, 1},
		{"negative", -5, 1},
		{"positive", 4, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(tt.capacity)
			if w.Cap() != tt.want {
				t.Errorf("expected cap %d, got %d", tt.want, w.Cap())
			}
		})
	}
}

func TestWindowReset(t *testing.T) {
	w := New(5)
	w.Record("a")
	w.Reset()

	if w.Len() != 0 || w.Contains("a") {
		t.Error("expected empty window after reset")
	}
}

func TestWindowConcurrentAccess(t *testing.T) {
	w := New(RoomCapacity)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s := fmt.Sprintf("%d-%d", g, i)
				w.Record(s)
				_ = w.Contains(s)
			}
		}(g)
	}
	wg.Wait()

	if w.Len() != RoomCapacity {
		t.Errorf("expected len %d, got %d", RoomCapacity, w.Len())
	}
}
