package measure

import (
	"sync"
)

type DefaultMeasure struct {
	mu     sync.Mutex
	Phases map[string]Metric
}

func NewDefaultMeasure() *DefaultMeasure {
	return &DefaultMeasure{
		Phases: make(map[string]Metric),
	}
}

// AddMetric registers a metric for the given phase name. Registering the same
// name again returns the existing metric, so a phase running once per epoch
// keeps accumulating into the same slot.
func (m *DefaultMeasure) AddMetric(name string, concurrent int) Metric {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mt, ok := m.Phases[name]; ok {
		return mt
	}

	if concurrent <= 0 {
		concurrent = 1
	}

	mt := &DefaultMetric{
		mu:         &sync.Mutex{},
		allWaits:   make(map[string]*WaitInfo),
		concurrent: concurrent,
	}
	m.Phases[name] = mt

	return mt
}

func (m *DefaultMeasure) GetMetric(name string) Metric {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.Phases[name]
}

func (m *DefaultMeasure) AllMetrics() map[string]Metric {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.Phases
}

var _ Measure = (*DefaultMeasure)(nil)
