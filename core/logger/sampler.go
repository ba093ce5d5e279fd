package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// ratio is a packed keep/every pair; every == 0 disables sampling.
type ratio struct {
	keep, every uint64
}

// sampler lets keep out of every consecutive events through.
type sampler struct {
	cfg     atomic.Pointer[ratio]
	counter atomic.Uint64
}

func newSampler(keep, every int) *sampler {
	s := &sampler{}
	s.Set(keep, every)
	return s
}

// Set replaces the ratio. Non-positive values turn sampling off.
func (s *sampler) Set(keep, every int) {
	r := &ratio{}
	if keep > 0 && every > 0 {
		r.keep, r.every = uint64(min(keep, every)), uint64(every)
	}
	s.cfg.Store(r)
	s.counter.Store(0)
}

// Allow reports whether the next event passes.
func (s *sampler) Allow() bool {
	r := s.cfg.Load()
	if r == nil || r.every == 0 {
		return true
	}
	n := s.counter.Add(1) - 1
	return n%r.every < r.keep
}

// parseRatio reads "N/M" or "M" (meaning 1/M). ok is false for malformed input.
func parseRatio(raw string) (keep, every int, ok bool) {
	raw = strings.TrimSpace(raw)
	if num, den, found := strings.Cut(raw, "/"); found {
		k, err1 := strconv.Atoi(strings.TrimSpace(num))
		e, err2 := strconv.Atoi(strings.TrimSpace(den))
		if err1 != nil || err2 != nil {
			return 0, 0, false
		}
		return k, e, true
	}
	e, err := strconv.Atoi(raw)
	if err != nil {
		return 0, 0, false
	}
	if e <= 0 {
		return 0, 0, true
	}
	return 1, e, true
}
