package lego_test

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/askiada/go-lego/pkg/lego/checkpoint"
	"github.com/askiada/go-lego/pkg/lego/model"
	"github.com/askiada/go-lego/pkg/lego/reader"
)

// fakeModel counts the batches it sees and bumps a single weight on every
// train call, so a restored snapshot is visible as a weight offset.
type fakeModel struct {
	mu         sync.Mutex
	weight     float64
	trainCalls int
	evalCalls  int
	trainLoss  float64
	// evalLosses is consumed one entry per Evaluate call, the last entry
	// repeats. Empty falls back to trainLoss.
	evalLosses []float64
	// trainErrAt fails the nth train call, zero disables.
	trainErrAt int
}

func (m *fakeModel) Train(_ context.Context, _ reader.Batch[[]float64]) (model.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.trainCalls++
	if m.trainErrAt > 0 && m.trainCalls == m.trainErrAt {
		return nil, assert.AnError
	}

	m.weight++

	return model.Report{"loss": m.trainLoss}, nil
}

func (m *fakeModel) Evaluate(_ context.Context, _ reader.Batch[[]float64]) (model.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.evalCalls++

	loss := m.trainLoss
	if len(m.evalLosses) > 0 {
		idx := m.evalCalls - 1
		if idx >= len(m.evalLosses) {
			idx = len(m.evalLosses) - 1
		}

		loss = m.evalLosses[idx]
	}

	return model.Report{"loss": loss}, nil
}

func (m *fakeModel) Snapshot() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return checkpoint.MarshalGob(m.weight)
}

func (m *fakeModel) Restore(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return checkpoint.UnmarshalGob(data, &m.weight)
}

func (m *fakeModel) counts() (train, eval int, weight float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.trainCalls, m.evalCalls, m.weight
}

// meanModel scores a batch with the mean of its items, which makes weighted
// aggregation checkable by hand.
type meanModel struct {
	fakeModel
}

func (m *meanModel) Evaluate(_ context.Context, batch reader.Batch[[]float64]) (model.Report, error) {
	var sum float64
	for _, v := range batch.Data {
		sum += v
	}

	return model.Report{"loss": sum / float64(len(batch.Data))}, nil
}

// vizModel additionally records the sizes of the batches it visualizes.
type vizModel struct {
	fakeModel
	vizSizes []int
}

func (m *vizModel) Visualize(_ context.Context, batch reader.Batch[[]float64]) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.vizSizes = append(m.vizSizes, batch.Size)

	return nil
}

// evalFailModel fails its nth Evaluate call.
type evalFailModel struct {
	fakeModel
	failAt int
}

func (m *evalFailModel) Evaluate(_ context.Context, _ reader.Batch[[]float64]) (model.Report, error) {
	m.mu.Lock()
	m.evalCalls++
	fail := m.evalCalls == m.failAt
	m.mu.Unlock()

	if fail {
		return nil, assert.AnError
	}

	return model.Report{"loss": 1}, nil
}

// cancelModel cancels the run context after its nth train call.
type cancelModel struct {
	fakeModel
	cancel context.CancelFunc
	after  int
}

func (m *cancelModel) Train(ctx context.Context, batch reader.Batch[[]float64]) (model.Report, error) {
	report, err := m.fakeModel.Train(ctx, batch)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	hit := m.trainCalls == m.after
	m.mu.Unlock()

	if hit {
		m.cancel()
	}

	return report, nil
}

// recordOption records every hook invocation it receives.
type recordOption struct {
	mu          sync.Mutex
	newCalls    int
	prepared    []string
	batches     map[string]int
	reports     map[string][]int64
	lastReport  map[string]model.Report
	afterPhases map[string]int
	checkpoints []string
	finished    int
	failNew     bool
}

func (r *recordOption) New() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failNew {
		return assert.AnError
	}

	r.newCalls++
	r.batches = map[string]int{}
	r.reports = map[string][]int64{}
	r.lastReport = map[string]model.Report{}
	r.afterPhases = map[string]int{}

	return nil
}

func (r *recordOption) PreparePhase(source, phase *model.PhaseInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prepared = append(r.prepared, source.Name+"->"+phase.Name)

	return nil
}

func (r *recordOption) OnBatch(_, phase *model.PhaseInfo, _, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.batches[phase.Name]++

	return nil
}

func (r *recordOption) OnReport(phase *model.PhaseInfo, step int64, report model.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reports[phase.Name] = append(r.reports[phase.Name], step)
	r.lastReport[phase.Name] = report.Clone()

	return nil
}

func (r *recordOption) AfterPhase(phase *model.PhaseInfo, _ model.Report, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.afterPhases[phase.Name]++

	return nil
}

func (r *recordOption) AfterCheckpoint(_ int64, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.checkpoints = append(r.checkpoints, path)

	return nil
}

func (r *recordOption) Finish() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.finished++

	return nil
}

// failingReader delivers a few batches and then breaks.
type failingReader struct {
	batches int
}

func (r *failingReader) Splits() []string {
	return []string{"train"}
}

func (r *failingReader) NumItems(string) (int, error) {
	return r.batches * 2, nil
}

func (r *failingReader) Batches(ctx context.Context, _ string, _ reader.BatchOptions, out chan<- reader.Batch[[]float64]) error {
	for i := 0; i < r.batches; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- reader.Batch[[]float64]{Data: []float64{1, 2}, Size: 2, Index: i}:
		}
	}

	return assert.AnError
}

func seq(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i + 1)
	}

	return out
}
