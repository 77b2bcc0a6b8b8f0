package wlclient

import (
	"encoding/binary"
	"fmt"
)

// marshalArgs encodes request arguments in wire order: 32-bit little-endian
// words, strings as length-prefixed NUL-terminated data padded to 4 bytes.
func marshalArgs(args []any) ([]byte, error) {
	var out []byte
	for _, arg := range args {
		switch v := arg.(type) {
		case uint32:
			out = binary.LittleEndian.AppendUint32(out, v)
		case int32:
			out = binary.LittleEndian.AppendUint32(out, uint32(v))
		case string:
			n := len(v) + 1 // includes NUL
			out = binary.LittleEndian.AppendUint32(out, uint32(n))
			out = append(out, v...)
			out = append(out, 0)
			for len(out)%4 != 0 {
				out = append(out, 0)
			}
		case []byte:
			out = binary.LittleEndian.AppendUint32(out, uint32(len(v)))
			out = append(out, v...)
			for len(out)%4 != 0 {
				out = append(out, 0)
			}
		case nil:
			// Null object.
			out = binary.LittleEndian.AppendUint32(out, 0)
		default:
			return nil, fmt.Errorf("unsupported argument type %T", arg)
		}
	}
	return out, nil
}

// reader decodes event bodies. Malformed input yields zero values rather
// than panics; the compositor is trusted, truncation is not.
type reader struct {
	data []byte
	off  int
}

func newReader(data []byte) *reader {
	return &reader{data: data}
}

func (r *reader) uint32() uint32 {
	if r.off+4 > len(r.data) {
		r.off = len(r.data)
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v
}

func (r *reader) int32() int32 {
	return int32(r.uint32())
}

func (r *reader) string() string {
	n := int(r.uint32())
	if n == 0 || r.off+n > len(r.data) {
		return ""
	}
	s := string(r.data[r.off : r.off+n-1]) // strip NUL
	r.off += n
	for r.off%4 != 0 {
		r.off++
	}
	return s
}

func (r *reader) array() []byte {
	n := int(r.uint32())
	if r.off+n > len(r.data) {
		return nil
	}
	a := r.data[r.off : r.off+n]
	r.off += n
	for r.off%4 != 0 {
		r.off++
	}
	return a
}
