package measure

import (
	"sync"
	"time"
)

// WaitInfo accumulates the time a phase spent blocked on one of its sources.
type WaitInfo struct {
	Elapsed time.Duration
	total   int64
}

type DefaultMetric struct {
	allWaits     map[string]*WaitInfo
	mu           *sync.Mutex
	EndDuration  time.Duration
	phaseElapsed time.Duration
	total        int64
	concurrent   int
}

func (mt *DefaultMetric) AddComputeDuration(elapsed time.Duration) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.total++
	mt.phaseElapsed += elapsed
}

func (mt *DefaultMetric) SetTotalDuration(endDuration time.Duration) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.EndDuration = endDuration
}

func (mt *DefaultMetric) GetTotalDuration() time.Duration {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	return mt.EndDuration
}

func (mt *DefaultMetric) AddWaitDuration(sourceName string, elapsed time.Duration) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.allWaits[sourceName] == nil {
		mt.allWaits[sourceName] = &WaitInfo{}
	}
	w := mt.allWaits[sourceName]
	w.Elapsed += elapsed
	w.total++
}

func (mt *DefaultMetric) AVGComputeDuration() time.Duration {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.total == 0 {
		return time.Duration(0)
	}

	return round(time.Duration(float64(mt.phaseElapsed) / float64(mt.total)))
}

// AVGWaitDuration returns the per-source mean wait, spread over the workers
// consuming the source. The accumulated totals are left untouched.
func (mt *DefaultMetric) AVGWaitDuration() map[string]*WaitInfo {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	out := make(map[string]*WaitInfo, len(mt.allWaits))
	for name, w := range mt.allWaits {
		avg := &WaitInfo{total: w.total}
		if w.total != 0 {
			avg.Elapsed = round(time.Duration(float64(w.Elapsed) / float64(w.total) / float64(mt.concurrent)))
		}
		out[name] = avg
	}

	return out
}

func (mt *DefaultMetric) AllWaits() map[string]*WaitInfo {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	return mt.allWaits
}

func round(d time.Duration) time.Duration {
	switch {
	case d > time.Hour:
		d = d.Round(time.Hour)
	case d > time.Minute:
		d = d.Round(time.Minute)
	case d > time.Second:
		d = d.Round(time.Second)
	case d > time.Millisecond:
		d = d.Round(time.Millisecond)
	case d > time.Microsecond:
		d = d.Round(time.Microsecond)
	}

	return d
}
