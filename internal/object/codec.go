package object

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrCorrupt = errors.New("corrupt object")

// Encode lays out obj as a kind byte followed by its payload: raw bytes for a
// blob, canonical JSON for a commit.
func Encode(obj Object) ([]byte, error) {
	switch o := obj.(type) {
	case *Blob:
		out := make([]byte, 0, len(o.Content)+1)
		out = append(out, byte(KindBlob))
		return append(out, o.Content...), nil
	case *Commit:
		payload, err := o.payload()
		if err != nil {
			return nil, err
		}
		out := make([]byte, 0, len(payload)+1)
		out = append(out, byte(KindCommit))
		return append(out, payload...), nil
	default:
		return nil, fmt.Errorf("unsupported object type %T", obj)
	}
}

// Decode reverses Encode and recomputes the object's id from the payload.
func Decode(data []byte) (Object, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty envelope", ErrCorrupt)
	}

	payload := data[1:]
	switch Kind(data[0]) {
	case KindBlob:
		content := make([]byte, len(payload))
		copy(content, payload)
		return NewBlob(content), nil
	case KindCommit:
		var c Commit
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, fmt.Errorf("%w: decoding commit: %v", ErrCorrupt, err)
		}
		if c.Files == nil {
			c.Files = map[string]string{}
		}
		c.id = commitID(payload)
		return &c, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrCorrupt, data[0])
	}
}
