package checkpoint

import (
	"bytes"
	"encoding/gob"

	"github.com/pkg/errors"
)

// MarshalGob encodes v with encoding/gob. Models whose state is a plain
// struct can build their Snapshot on it.
func MarshalGob(v any) ([]byte, error) {
	var buf bytes.Buffer

	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, errors.Wrap(err, "unable to gob encode")
	}

	return buf.Bytes(), nil
}

// UnmarshalGob decodes gob data into v, the counterpart of MarshalGob for
// Restore implementations.
func UnmarshalGob(data []byte, v any) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return errors.Wrap(err, "unable to gob decode")
	}

	return nil
}
