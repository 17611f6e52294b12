package drawer_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-lego/pkg/lego/drawer"
	"github.com/askiada/go-lego/pkg/lego/measure"
	"github.com/askiada/go-lego/pkg/lego/model"
)

func TestAddPhaseIdempotent(t *testing.T) {
	t.Parallel()

	d := drawer.NewDOTDrawer(filepath.Join(t.TempDir(), "graph.dot"))

	require.NoError(t, d.AddPhase("train"))
	require.NoError(t, d.AddPhase("train"))
}

func TestAddLink(t *testing.T) {
	t.Parallel()

	d := drawer.NewDOTDrawer(filepath.Join(t.TempDir(), "graph.dot"))

	require.NoError(t, d.AddPhase("source:train"))
	require.NoError(t, d.AddPhase("train"))

	require.NoError(t, d.AddLink("source:train", "train"))
	require.NoError(t, d.AddLink("source:train", "train"))

	err := d.AddLink("source:train", "missing")
	assert.ErrorIs(t, err, graph.ErrVertexNotFound)
}

func TestSetTotalTimeUnknownPhase(t *testing.T) {
	t.Parallel()

	d := drawer.NewDOTDrawer(filepath.Join(t.TempDir(), "graph.dot"))

	err := d.SetTotalTime("missing", time.Now())
	assert.ErrorIs(t, err, graph.ErrVertexNotFound)
}

func TestDrawDeterministic(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "graph.dot")
	d := drawer.NewDOTDrawer(path, drawer.GraphAttribute("rankdir", "LR"))

	require.NoError(t, d.AddPhase("start"))
	require.NoError(t, d.AddPhase("end"))
	require.NoError(t, d.AddPhase("source:train"))
	require.NoError(t, d.AddPhase("train"))
	require.NoError(t, d.AddLink("start", "source:train"))
	require.NoError(t, d.AddLink("source:train", "train"))
	require.NoError(t, d.AddLink("train", "end"))

	require.NoError(t, d.Draw())
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	content := string(first)
	assert.Contains(t, content, "strict digraph")
	assert.Contains(t, content, `rankdir="LR";`)
	assert.Contains(t, content, `"start" -> "source:train"`)
	assert.Contains(t, content, `"source:train" -> "train"`)
	assert.Contains(t, content, `"train" -> "end"`)

	for i := 0; i < 10; i++ {
		require.NoError(t, d.Draw())

		again, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestTrainerDrawerWithMeasure(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "graph.dot")

	m := measure.NewDefaultMeasure()
	mOpt := measure.TrainerMeasure(m)
	dOpt := drawer.TrainerDrawer(drawer.NewDOTDrawer(path), m)

	require.NoError(t, mOpt.New())
	require.NoError(t, dOpt.New())

	source := &model.PhaseInfo{Type: model.SourcePhaseType, Name: "source:train", Split: "train", Concurrent: 1}
	phase := &model.PhaseInfo{Type: model.TrainPhaseType, Name: "train", Split: "train", Concurrent: 1}

	require.NoError(t, mOpt.PreparePhase(source, phase))
	require.NoError(t, dOpt.PreparePhase(source, phase))

	require.NoError(t, mOpt.OnBatch(source, phase, 5*time.Millisecond, 20*time.Millisecond))
	require.NoError(t, mOpt.AfterPhase(phase, model.Report{"loss": 1}, 40*time.Millisecond))

	require.NoError(t, dOpt.Finish())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	content := string(data)

	// Compute duration annotates the phase vertex.
	assert.Contains(t, content, "20ms")
	assert.Contains(t, content, "end: 40ms")

	// Wait duration annotates the source edge.
	assert.Contains(t, content, `label="5ms"`)
	assert.Contains(t, content, `fontcolor="blue"`)
	assert.Contains(t, content, `color="#`)

	// The run is anchored between the start and end phases.
	assert.Contains(t, content, `"start" -> "source:train"`)
	assert.Contains(t, content, `"train" -> "end"`)
}

func TestTrainerDrawerWithoutMeasure(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "graph.dot")
	dOpt := drawer.TrainerDrawer(drawer.NewDOTDrawer(path), nil)

	require.NoError(t, dOpt.New())

	source := &model.PhaseInfo{Type: model.SourcePhaseType, Name: "source:valid", Split: "valid", Concurrent: 1}
	phase := &model.PhaseInfo{Type: model.EvaluatePhaseType, Name: "evaluate:valid", Split: "valid", Concurrent: 2}

	require.NoError(t, dOpt.PreparePhase(source, phase))
	require.NoError(t, dOpt.Finish())

	_, err := os.Stat(path)
	require.NoError(t, err)
}
