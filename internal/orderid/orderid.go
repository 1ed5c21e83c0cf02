// Package orderid produces the human-readable order identifiers printed
// on receipts: eight date digits (DDMMYYYY) followed by a four-digit
// per-day sequence, e.g. 150120260042.
package orderid

import (
	"fmt"
	"sync"
	"time"
)

// MaxPerDay is the highest sequence the four-digit suffix can carry.
const MaxPerDay = 9999

// Format renders an order ID for a given day and sequence number.
// Sequence numbers start at 1.
func Format(day time.Time, seq int) string {
	return fmt.Sprintf("%02d%02d%04d%04d", day.Day(), int(day.Month()), day.Year(), seq)
}

// DayKey is the counter bucket for a timestamp, in the store's location.
func DayKey(at time.Time) string {
	return at.Format("2006-01-02")
}

// Sequencer hands out per-day monotonic sequence numbers for stores
// without their own transactional counter. It is safe for concurrent
// use and drops stale days so memory stays bounded.
type Sequencer struct {
	mu   sync.Mutex
	day  string
	last int
}

// Next returns the next sequence for the given timestamp's day, or
// false once the day's numbers are exhausted.
func (s *Sequencer) Next(at time.Time) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := DayKey(at)
	if key != s.day {
		s.day = key
		s.last = 0
	}
	if s.last >= MaxPerDay {
		return 0, false
	}
	s.last++
	return s.last, true
}

// Restore seeds the sequencer past sequences already issued for a day,
// so a restarted in-memory store does not reuse numbers it handed out.
func (s *Sequencer) Restore(at time.Time, seq int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := DayKey(at)
	if key != s.day {
		s.day = key
		s.last = 0
	}
	if seq > s.last {
		s.last = seq
	}
}
