package id

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestGenerateIsUnique(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	if id1 == id2 {
		t.Error("Generated IDs should be unique")
	}
	if id1.Compare(id2) >= 0 {
		t.Error("IDs from one generator should increase")
	}
}

func TestTypedIDs(t *testing.T) {
	inst := NewInstanceID()
	if !strings.HasPrefix(inst.String(), InstancePrefix+"_") {
		t.Errorf("instance ID should start with %q, got %s", InstancePrefix+"_", inst)
	}

	req := NewRequestID()
	if !strings.HasPrefix(req.String(), RequestPrefix+"_") {
		t.Errorf("request ID should start with %q, got %s", RequestPrefix+"_", req)
	}
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	inst := NewInstanceID()

	ts, err := Timestamp(inst.String())
	if err != nil {
		t.Fatalf("Timestamp: %v", err)
	}
	if ts.Before(before) || ts.After(time.Now().Add(time.Second)) {
		t.Errorf("timestamp %v out of range", ts)
	}

	if _, err := Timestamp("cmp_not-a-ulid"); err == nil {
		t.Error("expected error for malformed ID")
	}
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()
	const workers, perWorker = 8, 100

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := gen.GenerateWithPrefix("x")
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Errorf("expected %d unique IDs, got %d", workers*perWorker, len(seen))
	}
}
