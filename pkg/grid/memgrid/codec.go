package memgrid

import (
	"fmt"

	"github.com/golang/snappy"
)

// Values are stored snappy-compressed, the way a networked grid would keep
// them in its off-heap pages. Callers never see the encoded form.

func encodeValue(value []byte) []byte {
	return snappy.Encode(nil, value)
}

func decodeValue(encoded []byte) ([]byte, error) {
	value, err := snappy.Decode(nil, encoded)
	if err != nil {
		return nil, fmt.Errorf("memgrid: corrupt cache value: %w", err)
	}
	return value, nil
}
