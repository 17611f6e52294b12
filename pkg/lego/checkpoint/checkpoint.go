// Package checkpoint persists and restores training state.
//
// A Manager owns one checkpoint directory. Periodic saves land in
// checkpoint-<step>.ckpt files with a CURRENT pointer naming the most recent
// one, the best state seen so far lives in best.ckpt. Files are written to a
// temporary name and renamed into place, so a crash mid-save never corrupts
// an existing checkpoint.
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrDirMustBeSet = errors.New("dir must be set")
	ErrNoCheckpoint = errors.New("no checkpoint available")
)

const (
	currentName = "CURRENT"
	bestName    = "best.ckpt"
)

// State is everything the trainer needs to resume a run.
type State struct {
	// RunID identifies the run that produced the state.
	RunID string
	// Epoch is the number of completed epochs. Resuming starts there.
	Epoch int
	// Step is the number of completed training steps.
	Step int64
	// Best is the best value of the tracked metric seen so far, valid only
	// when BestSet is true.
	Best    float64
	BestSet bool
	// SavedAt is when the state was persisted.
	SavedAt time.Time
	// Model is the opaque snapshot produced by the model.
	Model []byte
}

// Manager saves and loads states in a single checkpoint directory.
type Manager struct {
	dir  string
	keep int
}

// NewManager creates a manager over dir, creating the directory if needed.
// When keep is greater than zero, only the keep most recent periodic
// checkpoints are retained, best.ckpt is never pruned.
func NewManager(dir string, keep int) (*Manager, error) {
	if dir == "" {
		return nil, ErrDirMustBeSet
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "unable to create checkpoint directory %s", dir)
	}

	return &Manager{dir: dir, keep: keep}, nil
}

// Dir returns the checkpoint directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Save persists a periodic checkpoint for the state's step, points CURRENT
// at it and prunes old checkpoints. It returns the checkpoint path.
func (m *Manager) Save(state State) (string, error) {
	name := fmt.Sprintf("checkpoint-%d.ckpt", state.Step)

	path, err := m.write(name, state)
	if err != nil {
		return "", err
	}

	if err := writeFileAtomic(filepath.Join(m.dir, currentName), []byte(name+"\n")); err != nil {
		return "", errors.Wrap(err, "unable to update CURRENT")
	}

	if err := m.prune(); err != nil {
		return "", err
	}

	return path, nil
}

// SaveBest persists the state as the best checkpoint of the run, returning
// its path.
func (m *Manager) SaveBest(state State) (string, error) {
	return m.write(bestName, state)
}

func (m *Manager) write(name string, state State) (string, error) {
	state.SavedAt = time.Now()

	data, err := MarshalGob(state)
	if err != nil {
		return "", errors.Wrap(err, "unable to encode state")
	}

	path := filepath.Join(m.dir, name)
	if err := writeFileAtomic(path, data); err != nil {
		return "", errors.Wrapf(err, "unable to write checkpoint %s", path)
	}

	return path, nil
}

// Latest returns the most recent periodic checkpoint. It follows CURRENT
// when present and falls back to the highest step on disk, so a missing
// pointer file does not lose the run. ErrNoCheckpoint is returned when the
// directory holds no periodic checkpoint.
func (m *Manager) Latest() (State, string, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, currentName))
	if err == nil {
		path := filepath.Join(m.dir, strings.TrimSpace(string(data)))

		state, err := m.Load(path)
		if err != nil {
			return State{}, "", err
		}

		return state, path, nil
	}

	if !os.IsNotExist(err) {
		return State{}, "", errors.Wrap(err, "unable to read CURRENT")
	}

	steps, err := m.steps()
	if err != nil {
		return State{}, "", err
	}

	if len(steps) == 0 {
		return State{}, "", ErrNoCheckpoint
	}

	path := filepath.Join(m.dir, fmt.Sprintf("checkpoint-%d.ckpt", steps[len(steps)-1]))

	state, err := m.Load(path)
	if err != nil {
		return State{}, "", err
	}

	return state, path, nil
}

// Best returns the best checkpoint of the run, or ErrNoCheckpoint when none
// was saved.
func (m *Manager) Best() (State, string, error) {
	path := filepath.Join(m.dir, bestName)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return State{}, "", ErrNoCheckpoint
	}

	state, err := m.Load(path)
	if err != nil {
		return State{}, "", err
	}

	return state, path, nil
}

// Load reads one checkpoint file.
func (m *Manager) Load(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, errors.Wrapf(err, "unable to read checkpoint %s", path)
	}

	var state State
	if err := UnmarshalGob(data, &state); err != nil {
		return State{}, errors.Wrapf(err, "unable to decode checkpoint %s", path)
	}

	return state, nil
}

// List returns the periodic checkpoint paths sorted by step.
func (m *Manager) List() ([]string, error) {
	steps, err := m.steps()
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(steps))
	for _, step := range steps {
		paths = append(paths, filepath.Join(m.dir, fmt.Sprintf("checkpoint-%d.ckpt", step)))
	}

	return paths, nil
}

func (m *Manager) steps() ([]int64, error) {
	matches, err := filepath.Glob(filepath.Join(m.dir, "checkpoint-*.ckpt"))
	if err != nil {
		return nil, errors.Wrap(err, "unable to list checkpoints")
	}

	steps := make([]int64, 0, len(matches))

	for _, match := range matches {
		var step int64
		if _, err := fmt.Sscanf(filepath.Base(match), "checkpoint-%d.ckpt", &step); err != nil {
			continue
		}

		steps = append(steps, step)
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i] < steps[j] })

	return steps, nil
}

func (m *Manager) prune() error {
	if m.keep <= 0 {
		return nil
	}

	steps, err := m.steps()
	if err != nil {
		return err
	}

	if len(steps) <= m.keep {
		return nil
	}

	for _, step := range steps[:len(steps)-m.keep] {
		path := filepath.Join(m.dir, fmt.Sprintf("checkpoint-%d.ckpt", step))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "unable to prune checkpoint %s", path)
		}
	}

	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"

	file, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, "unable to create %s", tmp)
	}

	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)

		return errors.Wrapf(err, "unable to write %s", tmp)
	}

	if err := file.Sync(); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)

		return errors.Wrapf(err, "unable to sync %s", tmp)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)

		return errors.Wrapf(err, "unable to close %s", tmp)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)

		return errors.Wrapf(err, "unable to rename %s", tmp)
	}

	return nil
}
