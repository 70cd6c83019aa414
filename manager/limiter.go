package manager

import "sync/atomic"

// placementLimiter tracks each managed connection's symbol count in a
// plain atomic counter so the manager's round-robin placement scan
// (Manager.findAvailableConnection) never has to take a connection's
// stats lock just to ask "do you have room for one more token?".
//
// Adapted from a reference connection-limiter's atomic counters,
// generalized from a hardcoded connection limit to this manager's
// configurable connection count and per-connection symbol cap.
type placementLimiter struct {
	counts []atomic.Int32
	max    int
}

func newPlacementLimiter(connections, max int) *placementLimiter {
	return &placementLimiter{counts: make([]atomic.Int32, connections), max: max}
}

// canAccept reports whether connection i can take n more symbols.
func (l *placementLimiter) canAccept(i, n int) bool {
	return int(l.counts[i].Load())+n <= l.max
}

func (l *placementLimiter) add(i, n int) { l.counts[i].Add(int32(n)) }

func (l *placementLimiter) remove(i, n int) { l.counts[i].Add(-int32(n)) }

func (l *placementLimiter) count(i int) int { return int(l.counts[i].Load()) }
