package testfixtures

import (
	"sync"
	"testing"
)

func TestIDGeneratorProducesSequentialIDs(t *testing.T) {
	gen := NewIDGenerator("event")

	if first, second := gen.Next(), gen.Next(); first != "event-1" || second != "event-2" {
		t.Fatalf("unexpected identifiers: %q, %q", first, second)
	}
	if gen.Issued() != 2 {
		t.Fatalf("expected 2 issued ids, got %d", gen.Issued())
	}
	if id := NewIDGenerator("").Next(); id != "id-1" {
		t.Fatalf("expected default prefix, got %q", id)
	}
}

func TestIDGeneratorIsSafeForConcurrentUse(t *testing.T) {
	gen := NewIDGenerator("room")
	seen := make(map[string]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := gen.Next()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(seen) != 20 {
		t.Fatalf("expected 20 unique ids, got %d", len(seen))
	}
}
