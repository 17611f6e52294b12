// Package tfevents writes event files readable by TensorBoard and
// compatible viewers.
//
// An event file is a sequence of TFRecords. Each record carries a
// length-prefixed payload, with both the length and the payload guarded by a
// masked CRC32-C checksum:
//
//	uint64 length (little endian)
//	uint32 masked crc of length
//	byte   payload[length]
//	uint32 masked crc of payload
//
// The payload is a serialized Event protobuf message. Only the fields needed
// for scalar summaries are supported: wall_time (1, double), step (2, int64),
// file_version (3, string) and summary (5, message) holding repeated values
// with tag (1, string) and simple_value (2, float).
package tfevents

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// fileVersion identifies the event file format. Viewers expect it in the
// first record of every file.
const fileVersion = "brain.Event:2"

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// maskedCRC computes the CRC32-C of b masked the way TFRecords require.
func maskedCRC(b []byte) uint32 {
	c := crc32.Checksum(b, castagnoli)

	return ((c >> 15) | (c << 17)) + 0xa282ead8
}

// Value is a single tagged scalar inside an event summary.
type Value struct {
	Tag         string
	SimpleValue float64
}

// Event is the subset of the event message handled by this package.
type Event struct {
	// WallTime is the event time in seconds since the epoch.
	WallTime float64
	// Step is the global step the event belongs to.
	Step int64
	// FileVersion is only set on the first event of a file.
	FileVersion string
	// Values holds the scalar summary values of the event.
	Values []Value
}

func (e Event) marshal() []byte {
	buf := make([]byte, 0, 64)

	if e.WallTime != 0 {
		buf = append(buf, 0x09)
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(e.WallTime))
	}

	if e.Step != 0 {
		buf = append(buf, 0x10)
		buf = binary.AppendUvarint(buf, uint64(e.Step))
	}

	if e.FileVersion != "" {
		buf = append(buf, 0x1a)
		buf = binary.AppendUvarint(buf, uint64(len(e.FileVersion)))
		buf = append(buf, e.FileVersion...)
	}

	if len(e.Values) > 0 {
		summary := marshalSummary(e.Values)
		buf = append(buf, 0x2a)
		buf = binary.AppendUvarint(buf, uint64(len(summary)))
		buf = append(buf, summary...)
	}

	return buf
}

func marshalSummary(values []Value) []byte {
	buf := make([]byte, 0, 32*len(values))

	for _, v := range values {
		val := marshalValue(v)
		buf = append(buf, 0x0a)
		buf = binary.AppendUvarint(buf, uint64(len(val)))
		buf = append(buf, val...)
	}

	return buf
}

func marshalValue(v Value) []byte {
	buf := make([]byte, 0, len(v.Tag)+8)

	if v.Tag != "" {
		buf = append(buf, 0x0a)
		buf = binary.AppendUvarint(buf, uint64(len(v.Tag)))
		buf = append(buf, v.Tag...)
	}

	// simple_value sits in a oneof, so an explicit zero must still be
	// serialized for the point to exist.
	buf = append(buf, 0x15)
	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(v.SimpleValue)))

	return buf
}

// fileSeq makes event file names unique within a process.
var fileSeq atomic.Uint64

// Writer appends events to a single event file.
type Writer struct {
	file *os.File
	buf  *bufio.Writer
	path string
}

// Create opens a new event file in dir, creating the directory if needed, and
// writes the version record. The file name follows the usual convention, so
// pointing a viewer at dir picks it up without configuration.
func Create(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "unable to create log directory %s", dir)
	}

	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}

	name := fmt.Sprintf("events.out.tfevents.%d.%s.%d.%d", time.Now().Unix(), host, os.Getpid(), fileSeq.Add(1))
	path := filepath.Join(dir, name)

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to create event file %s", path)
	}

	w := &Writer{
		file: file,
		buf:  bufio.NewWriter(file),
		path: path,
	}

	first := Event{
		WallTime:    float64(time.Now().UnixNano()) / float64(time.Second),
		FileVersion: fileVersion,
	}
	if err := w.WriteEvent(first); err != nil {
		_ = file.Close()

		return nil, err
	}

	return w, nil
}

// Path returns the location of the event file.
func (w *Writer) Path() string {
	return w.path
}

// WriteEvent appends a single event record.
func (w *Writer) WriteEvent(e Event) error {
	payload := e.marshal()

	var header [12]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(len(payload)))
	binary.LittleEndian.PutUint32(header[8:], maskedCRC(header[:8]))

	if _, err := w.buf.Write(header[:]); err != nil {
		return errors.Wrap(err, "unable to write record header")
	}

	if _, err := w.buf.Write(payload); err != nil {
		return errors.Wrap(err, "unable to write record payload")
	}

	var footer [4]byte
	binary.LittleEndian.PutUint32(footer[:], maskedCRC(payload))

	if _, err := w.buf.Write(footer[:]); err != nil {
		return errors.Wrap(err, "unable to write record footer")
	}

	return nil
}

// Flush pushes buffered records to disk so viewers tailing the file see them.
func (w *Writer) Flush() error {
	if err := w.buf.Flush(); err != nil {
		return errors.Wrap(err, "unable to flush event file")
	}

	return errors.Wrap(w.file.Sync(), "unable to sync event file")
}

// Close flushes and closes the event file.
func (w *Writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		_ = w.file.Close()

		return errors.Wrap(err, "unable to flush event file")
	}

	return errors.Wrap(w.file.Close(), "unable to close event file")
}

// ReadFile decodes every event in the file at path, verifying all record
// checksums.
func ReadFile(path string) ([]Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read event file %s", path)
	}

	var events []Event

	for len(data) > 0 {
		if len(data) < 12 {
			return nil, errors.New("truncated record header")
		}

		length := binary.LittleEndian.Uint64(data[:8])
		if got, want := binary.LittleEndian.Uint32(data[8:12]), maskedCRC(data[:8]); got != want {
			return nil, errors.New("record header checksum mismatch")
		}

		data = data[12:]
		if uint64(len(data)) < length+4 {
			return nil, errors.New("truncated record payload")
		}

		payload := data[:length]
		if got, want := binary.LittleEndian.Uint32(data[length:length+4]), maskedCRC(payload); got != want {
			return nil, errors.New("record payload checksum mismatch")
		}

		event, err := unmarshalEvent(payload)
		if err != nil {
			return nil, err
		}

		events = append(events, event)
		data = data[length+4:]
	}

	return events, nil
}

func unmarshalEvent(b []byte) (Event, error) {
	var e Event

	for len(b) > 0 {
		key, n := binary.Uvarint(b)
		if n <= 0 {
			return e, errors.New("invalid field key")
		}

		b = b[n:]
		field, wire := key>>3, key&7

		switch {
		case field == 1 && wire == 1:
			if len(b) < 8 {
				return e, errors.New("truncated wall_time")
			}

			e.WallTime = math.Float64frombits(binary.LittleEndian.Uint64(b[:8]))
			b = b[8:]
		case field == 2 && wire == 0:
			v, n := binary.Uvarint(b)
			if n <= 0 {
				return e, errors.New("invalid step")
			}

			e.Step = int64(v)
			b = b[n:]
		case field == 3 && wire == 2:
			s, rest, err := readBytes(b)
			if err != nil {
				return e, err
			}

			e.FileVersion = string(s)
			b = rest
		case field == 5 && wire == 2:
			s, rest, err := readBytes(b)
			if err != nil {
				return e, err
			}

			values, err := unmarshalSummary(s)
			if err != nil {
				return e, err
			}

			e.Values = append(e.Values, values...)
			b = rest
		default:
			rest, err := skipField(b, wire)
			if err != nil {
				return e, err
			}

			b = rest
		}
	}

	return e, nil
}

func unmarshalSummary(b []byte) ([]Value, error) {
	var values []Value

	for len(b) > 0 {
		key, n := binary.Uvarint(b)
		if n <= 0 {
			return nil, errors.New("invalid field key")
		}

		b = b[n:]
		field, wire := key>>3, key&7

		if field != 1 || wire != 2 {
			rest, err := skipField(b, wire)
			if err != nil {
				return nil, err
			}

			b = rest

			continue
		}

		s, rest, err := readBytes(b)
		if err != nil {
			return nil, err
		}

		value, err := unmarshalValue(s)
		if err != nil {
			return nil, err
		}

		values = append(values, value)
		b = rest
	}

	return values, nil
}

func unmarshalValue(b []byte) (Value, error) {
	var v Value

	for len(b) > 0 {
		key, n := binary.Uvarint(b)
		if n <= 0 {
			return v, errors.New("invalid field key")
		}

		b = b[n:]
		field, wire := key>>3, key&7

		switch {
		case field == 1 && wire == 2:
			s, rest, err := readBytes(b)
			if err != nil {
				return v, err
			}

			v.Tag = string(s)
			b = rest
		case field == 2 && wire == 5:
			if len(b) < 4 {
				return v, errors.New("truncated simple_value")
			}

			v.SimpleValue = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[:4])))
			b = b[4:]
		default:
			rest, err := skipField(b, wire)
			if err != nil {
				return v, err
			}

			b = rest
		}
	}

	return v, nil
}

func readBytes(b []byte) ([]byte, []byte, error) {
	length, n := binary.Uvarint(b)
	if n <= 0 || uint64(len(b[n:])) < length {
		return nil, nil, errors.New("truncated length-delimited field")
	}

	return b[n : n+int(length)], b[n+int(length):], nil
}

func skipField(b []byte, wire uint64) ([]byte, error) {
	switch wire {
	case 0:
		_, n := binary.Uvarint(b)
		if n <= 0 {
			return nil, errors.New("invalid varint field")
		}

		return b[n:], nil
	case 1:
		if len(b) < 8 {
			return nil, errors.New("truncated fixed64 field")
		}

		return b[8:], nil
	case 2:
		_, rest, err := readBytes(b)

		return rest, err
	case 5:
		if len(b) < 4 {
			return nil, errors.New("truncated fixed32 field")
		}

		return b[4:], nil
	default:
		return nil, errors.Errorf("unsupported wire type %d", wire)
	}
}
