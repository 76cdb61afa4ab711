// Package autoid provides unique id providers for items stored without a
// key of their own.
package autoid

import (
	"math/bits"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Generate returns the id for the given tick and index within the tick.
// IDs sort lexicographically in (tick, index) order.
//
// Format: length-prefixed hexadecimal numbers. The length prefix is a
// letter: 'a'=1 hex digit, 'b'=2 hex digits, ..., 'p'=16 hex digits.
//
// Examples:
//   - tick=1, index=0    → "a1a0"
//   - tick=16, index=0   → "b10a0"
//   - tick=256, index=5  → "c100a5"
//
// Sorting: "a1a0" < "a1a1" < "afa0" < "b10a0" < "c100a5"
func Generate(tick int64, index int) string {
	return formatLex(tick) + formatLex(int64(index))
}

func hexDigits(n uint64) int {
	if n == 0 {
		return 1
	}
	return (bits.Len64(n) + 3) / 4
}

func formatLex(n int64) string {
	if n < 0 {
		panic("formatLex: negative numbers not supported")
	}
	length := hexDigits(uint64(n))
	prefix := byte('a' + length - 1)
	return string(prefix) + strconv.FormatInt(n, 16)
}

// Sequence hands out ids from the clock in milliseconds, numbering ids
// issued within the same millisecond. Ids from one Sequence are strictly
// increasing even when the clock goes backwards.
type Sequence struct {
	mu    sync.Mutex
	now   func() time.Time
	tick  int64
	index int
}

type SequenceOption func(*Sequence)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SequenceOption {
	return func(s *Sequence) { s.now = now }
}

func NewSequence(opts ...SequenceOption) *Sequence {
	s := &Sequence{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next returns the next id.
func (s *Sequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	tick := s.now().UnixMilli()
	if tick > s.tick {
		s.tick = tick
		s.index = 0
	} else {
		s.index++
	}
	return Generate(s.tick, s.index)
}

// UUID hands out version 7 UUIDs, which also sort by creation time.
type UUID struct{}

func (UUID) Next() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
