package cachehelper

import (
	"sync/atomic"

	"github.com/vnykmshr/cachehelper-go/pkg/metrics"
)

// Stats holds memoization statistics
type Stats struct {
	// hits is the number of calls served from the backend
	hits int64

	// misses is the number of calls that found no stored result
	misses int64

	// computes is the number of underlying function executions
	computes int64

	// computeErrors is the number of executions that returned an error
	computeErrors int64

	// invalidations is the number of explicit invalidations
	invalidations int64

	// keyErrors is the number of calls whose key could not be derived
	keyErrors int64

	// truncatedKeys is the number of keys shortened with a hash suffix
	truncatedKeys int64

	// inFlight is the number of executions currently running
	inFlight int64
}

// Hits returns the number of cache hits
func (s *Stats) Hits() int64 {
	return atomic.LoadInt64(&s.hits)
}

// Misses returns the number of cache misses
func (s *Stats) Misses() int64 {
	return atomic.LoadInt64(&s.misses)
}

// Computes returns the number of underlying function executions
func (s *Stats) Computes() int64 {
	return atomic.LoadInt64(&s.computes)
}

// ComputeErrors returns the number of executions that failed
func (s *Stats) ComputeErrors() int64 {
	return atomic.LoadInt64(&s.computeErrors)
}

// Invalidations returns the number of explicit invalidations
func (s *Stats) Invalidations() int64 {
	return atomic.LoadInt64(&s.invalidations)
}

// KeyErrors returns the number of calls whose key could not be derived
func (s *Stats) KeyErrors() int64 {
	return atomic.LoadInt64(&s.keyErrors)
}

// TruncatedKeys returns the number of keys shortened with a hash suffix
func (s *Stats) TruncatedKeys() int64 {
	return atomic.LoadInt64(&s.truncatedKeys)
}

// InFlight returns the number of executions currently running
func (s *Stats) InFlight() int64 {
	return atomic.LoadInt64(&s.inFlight)
}

// HitRate returns the hit rate as a percentage (0-100)
func (s *Stats) HitRate() float64 {
	hits := s.Hits()
	total := hits + s.Misses()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// Total returns the number of lookups (hits + misses)
func (s *Stats) Total() int64 {
	return s.Hits() + s.Misses()
}

// Reset resets all counters except in-flight executions to zero
func (s *Stats) Reset() {
	atomic.StoreInt64(&s.hits, 0)
	atomic.StoreInt64(&s.misses, 0)
	atomic.StoreInt64(&s.computes, 0)
	atomic.StoreInt64(&s.computeErrors, 0)
	atomic.StoreInt64(&s.invalidations, 0)
	atomic.StoreInt64(&s.keyErrors, 0)
	atomic.StoreInt64(&s.truncatedKeys, 0)
}

func (s *Stats) incHits()          { atomic.AddInt64(&s.hits, 1) }
func (s *Stats) incMisses()        { atomic.AddInt64(&s.misses, 1) }
func (s *Stats) incComputes()      { atomic.AddInt64(&s.computes, 1) }
func (s *Stats) incComputeErrors() { atomic.AddInt64(&s.computeErrors, 1) }
func (s *Stats) incInvalidations() { atomic.AddInt64(&s.invalidations, 1) }
func (s *Stats) incKeyErrors()     { atomic.AddInt64(&s.keyErrors, 1) }
func (s *Stats) incTruncatedKeys() { atomic.AddInt64(&s.truncatedKeys, 1) }
func (s *Stats) incInFlight()      { atomic.AddInt64(&s.inFlight, 1) }
func (s *Stats) decInFlight()      { atomic.AddInt64(&s.inFlight, -1) }

var _ metrics.Stats = (*Stats)(nil)
