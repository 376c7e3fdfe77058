package history

import (
	"sync"
	"time"
)

// Point is one recorded sample.
type Point struct {
	Value     float64
	Timestamp time.Time
}

// Store keeps a bounded FIFO window of samples per symbol.
// It is safe for concurrent use.
type Store struct {
	capacity int

	mu     sync.RWMutex
	series map[string]*ring
}

// NewStore returns a store that keeps at most capacity points per symbol.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = 1
	}
	return &Store{capacity: capacity, series: make(map[string]*ring)}
}

func (s *Store) Capacity() int { return s.capacity }

// Record appends a sample, evicting the oldest one when full.
func (s *Store) Record(symbol string, value float64, ts time.Time) {
	s.mu.Lock()
	r, ok := s.series[symbol]
	if !ok {
		r = newRing(s.capacity)
		s.series[symbol] = r
	}
	r.push(Point{Value: value, Timestamp: ts})
	s.mu.Unlock()
}

// Window returns a copy of the last n points in insertion order.
// n <= 0 means all points.
func (s *Store) Window(symbol string, n int) []Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.series[symbol]
	if !ok {
		return nil
	}
	return r.last(n)
}

// Values is Window without timestamps.
func (s *Store) Values(symbol string, n int) []float64 {
	points := s.Window(symbol, n)
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}

func (s *Store) Len(symbol string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.series[symbol]; ok {
		return r.size
	}
	return 0
}

// Symbols lists every symbol with at least one sample.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.series))
	for k := range s.series {
		out = append(out, k)
	}
	return out
}

// ring is a fixed-size circular buffer.
type ring struct {
	buf   []Point
	start int
	size  int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]Point, capacity)}
}

func (r *ring) push(p Point) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = p
		r.size++
		return
	}
	r.buf[r.start] = p
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) last(n int) []Point {
	if n <= 0 || n > r.size {
		n = r.size
	}
	out := make([]Point, n)
	offset := r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.start+offset+i)%len(r.buf)]
	}
	return out
}
