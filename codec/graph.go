package codec

import "github.com/hantas-hq/gohantas/wire"

// MaxGraphCount is the largest sample count a Graph record may declare.
const MaxGraphCount = 2000

// Graph is a torque or angle sample series captured during a fastening.
type Graph struct {
	Channel uint8
	Count uint16
	Values []float32
}

// DecodeGraph parses a Graph payload: a 4 byte sub-header (channel, reserved,
// count) followed by count big-endian float32 samples. len(data) must equal
// 4 + count*4 exactly; any mismatch (including the count itself exceeding
// MaxGraphCount) is a decode error rather than a truncated read.
func DecodeGraph(data []byte) (Graph, error) {
	if len(data) < 4 {
		return Graph{}, &DecodeError{Record: "Graph", Expected: 4, Got: len(data)}
	}
	r := wire.NewReader(data)

	channel, err := r.U8()
	if err != nil {
		return Graph{}, wrapFieldError("Graph", err)
	}
	if err := r.Skip(1); err != nil { // reserved
		return Graph{}, wrapFieldError("Graph", err)
	}
	count, err := r.U16()
	if err != nil {
		return Graph{}, wrapFieldError("Graph", err)
	}

	if count > MaxGraphCount {
		return Graph{}, &DecodeError{Record: "Graph.count", Expected: MaxGraphCount, Got: int(count)}
	}
	want := 4 + int(count)*4
	if len(data) != want {
		return Graph{}, &DecodeError{Record: "Graph", Expected: want, Got: len(data)}
	}

	values := make([]float32, count)
	for i := range values {
		v, err := r.F32()
		if err != nil {
			return Graph{}, wrapFieldError("Graph", err)
		}
		values[i] = v
	}

	return Graph{Channel: channel, Count: count, Values: values}, nil
}
