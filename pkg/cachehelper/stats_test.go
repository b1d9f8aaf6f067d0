package cachehelper

import (
	"sync"
	"testing"
)

func TestStats(t *testing.T) {
	s := &Stats{}

	if s.HitRate() != 0 {
		t.Fatalf("Expected 0 hit rate with no lookups, got %f", s.HitRate())
	}

	s.incHits()
	s.incHits()
	s.incHits()
	s.incMisses()
	s.incComputes()
	s.incComputeErrors()
	s.incInvalidations()
	s.incKeyErrors()
	s.incTruncatedKeys()
	s.incInFlight()

	if s.Total() != 4 {
		t.Fatalf("Expected 4 lookups, got %d", s.Total())
	}
	if s.HitRate() != 75 {
		t.Fatalf("Expected 75%% hit rate, got %f", s.HitRate())
	}
	if s.Computes() != 1 || s.ComputeErrors() != 1 || s.Invalidations() != 1 ||
		s.KeyErrors() != 1 || s.TruncatedKeys() != 1 || s.InFlight() != 1 {
		t.Fatal("Expected every counter at 1")
	}

	s.Reset()
	if s.Total() != 0 || s.Computes() != 0 || s.KeyErrors() != 0 {
		t.Fatal("Expected counters to be reset")
	}
	if s.InFlight() != 1 {
		t.Fatal("Expected Reset to keep in-flight executions")
	}
	s.decInFlight()
	if s.InFlight() != 0 {
		t.Fatalf("Expected 0 in flight, got %d", s.InFlight())
	}
}

func TestStatsConcurrent(t *testing.T) {
	s := &Stats{}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.incHits()
				s.incMisses()
			}
		}()
	}
	wg.Wait()

	if s.Hits() != 5000 || s.Misses() != 5000 {
		t.Fatalf("Expected 5000/5000, got %d/%d", s.Hits(), s.Misses())
	}
}
