package buffer

import "sync/atomic"

// Statistics tracks buffer throughput.
type Statistics struct {
	writes    int64
	reads     int64
	drops     int64
	overflows int64
	size      int64
	peak      int64
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{}
}

func (s *Statistics) write()    { atomic.AddInt64(&s.writes, 1) }
func (s *Statistics) read()     { atomic.AddInt64(&s.reads, 1) }
func (s *Statistics) drop()     { atomic.AddInt64(&s.drops, 1) }
func (s *Statistics) overflow() { atomic.AddInt64(&s.overflows, 1) }

func (s *Statistics) updateSize(size int) {
	atomic.StoreInt64(&s.size, int64(size))
	for {
		peak := atomic.LoadInt64(&s.peak)
		if int64(size) <= peak || atomic.CompareAndSwapInt64(&s.peak, peak, int64(size)) {
			return
		}
	}
}

// Writes returns the number of accepted writes.
func (s *Statistics) Writes() int64 { return atomic.LoadInt64(&s.writes) }

// Reads returns the number of items read.
func (s *Statistics) Reads() int64 { return atomic.LoadInt64(&s.reads) }

// Drops returns the number of items dropped by the overflow policy.
func (s *Statistics) Drops() int64 { return atomic.LoadInt64(&s.drops) }

// Overflows returns how often a write found the buffer full.
func (s *Statistics) Overflows() int64 { return atomic.LoadInt64(&s.overflows) }

// CurrentSize returns the size at the last operation.
func (s *Statistics) CurrentSize() int64 { return atomic.LoadInt64(&s.size) }

// PeakSize returns the largest size observed.
func (s *Statistics) PeakSize() int64 { return atomic.LoadInt64(&s.peak) }
