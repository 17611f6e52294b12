package tfevents_test

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-lego/internal/tfevents"
)

func TestCreateWritesVersionRecord(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	w, err := tfevents.Create(dir)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.True(t, strings.HasPrefix(filepath.Base(w.Path()), "events.out.tfevents."))

	events, err := tfevents.ReadFile(w.Path())
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.Equal(t, "brain.Event:2", events[0].FileVersion)
	assert.InDelta(t, float64(time.Now().Unix()), events[0].WallTime, 5)
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	w, err := tfevents.Create(t.TempDir())
	require.NoError(t, err)

	written := []tfevents.Event{
		{
			WallTime: 1234.5,
			Step:     1,
			Values: []tfevents.Value{
				{Tag: "train/loss", SimpleValue: 0.75},
				{Tag: "train/accuracy", SimpleValue: 0},
			},
		},
		{
			WallTime: 1236.5,
			Step:     100,
			Values:   []tfevents.Value{{Tag: "valid/loss", SimpleValue: -1.25}},
		},
	}

	for _, e := range written {
		require.NoError(t, w.WriteEvent(e))
	}

	require.NoError(t, w.Flush())
	require.NoError(t, w.Close())

	events, err := tfevents.ReadFile(w.Path())
	require.NoError(t, err)
	require.Len(t, events, len(written)+1)

	for i, want := range written {
		got := events[i+1]

		assert.Equal(t, want.Step, got.Step)
		assert.InDelta(t, want.WallTime, got.WallTime, 1e-9)
		require.Len(t, got.Values, len(want.Values))

		for j, value := range want.Values {
			assert.Equal(t, value.Tag, got.Values[j].Tag)
			assert.InDelta(t, value.SimpleValue, got.Values[j].SimpleValue, 1e-6)
		}
	}
}

func TestWriteEventReferenceBytes(t *testing.T) {
	t.Parallel()

	w, err := tfevents.Create(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, w.WriteEvent(tfevents.Event{
		WallTime: 1.5,
		Step:     2,
		Values:   []tfevents.Value{{Tag: "a", SimpleValue: 0.5}},
	}))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(w.Path())
	require.NoError(t, err)

	// Skip the version record, its wall time changes between runs.
	versionLen := binary.LittleEndian.Uint64(data[:8])
	record := data[12+versionLen+4:]

	// Reference bytes computed with an independent CRC32-C implementation.
	expected := []byte{
		0x17, 0, 0, 0, 0, 0, 0, 0, // payload length
		0xe7, 0xce, 0xf8, 0x1e, // masked crc of the length
		0x09, 0, 0, 0, 0, 0, 0, 0xf8, 0x3f, // wall_time 1.5
		0x10, 0x02, // step 2
		0x2a, 0x0a, 0x0a, 0x08, 0x0a, 0x01, 'a', 0x15, 0, 0, 0, 0x3f, // summary {a: 0.5}
		0x7a, 0xf7, 0xb1, 0xfc, // masked crc of the payload
	}
	assert.Equal(t, expected, record)
}

func TestZeroValueKeepsPoint(t *testing.T) {
	t.Parallel()

	w, err := tfevents.Create(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, w.WriteEvent(tfevents.Event{
		WallTime: 1,
		Step:     3,
		Values:   []tfevents.Value{{Tag: "loss", SimpleValue: 0}},
	}))
	require.NoError(t, w.Close())

	events, err := tfevents.ReadFile(w.Path())
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Len(t, events[1].Values, 1)

	assert.Equal(t, "loss", events[1].Values[0].Tag)
	assert.Zero(t, events[1].Values[0].SimpleValue)
}

func TestReadFileDetectsCorruption(t *testing.T) {
	t.Parallel()

	w, err := tfevents.Create(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, w.WriteEvent(tfevents.Event{WallTime: 1, Step: 1, Values: []tfevents.Value{{Tag: "loss", SimpleValue: 2}}}))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(w.Path())
	require.NoError(t, err)

	// Flip a payload byte of the second record.
	data[len(data)-6] ^= 0xff
	require.NoError(t, os.WriteFile(w.Path(), data, 0o644))

	_, err = tfevents.ReadFile(w.Path())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum")
}

func TestReadFileTruncated(t *testing.T) {
	t.Parallel()

	w, err := tfevents.Create(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(w.Path())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(w.Path(), data[:len(data)-2], 0o644))

	_, err = tfevents.ReadFile(w.Path())
	require.Error(t, err)
}

func TestUniqueFileNames(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	first, err := tfevents.Create(dir)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := tfevents.Create(dir)
	require.NoError(t, err)
	require.NoError(t, second.Close())

	assert.NotEqual(t, first.Path(), second.Path())
}
