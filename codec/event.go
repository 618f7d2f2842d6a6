package codec

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hantas-hq/gohantas/wire"
)

const (
	eventGen2Size = 192
	eventLegacySize = 183 // Gen1/Gen1+: identical layout minus the 9 byte Gen2 datetime field
	graphStepCount = 16
)

// GraphStep is one sample-index marker recorded alongside a fastening event.
type GraphStep struct {
	ID uint8
	Index uint16
}

// Event is a completed fastening result.
type Event struct {
	Generation Generation

	ID uint32
	Revision uint8
	// Time is read from the wire for Gen2; for Gen1/Gen1+ it is stamped with
	// the decoder's current time, since those generations never transmit it
	// (those generations never carry a timestamp on the wire).
	Time time.Time

	FastenTime uint16
	Preset uint8
	Unit uint8
	RemainScrew uint8
	Direction Direction
	Error uint8
	Status uint8

	TorqueTarget float32
	TorqueMeasured float32
	TorqueSeating float32
	TorqueClamp float32
	TorquePrevailing float32
	TorqueSnug float32

	Speed uint16
	Angle1 uint16
	Angle2 uint16
	Angle3 uint16
	SnugAngle uint16

	Barcode string

	GraphChannel1Type uint8
	GraphChannel1Count uint16
	GraphChannel2Type uint8
	GraphChannel2Count uint16
	SamplingRate uint16

	GraphSteps [graphStepCount]GraphStep
}

// nowFunc is overridden in tests to make the Gen1/Gen1+ "stamp with now"
// behavior deterministic.
var nowFunc = time.Now

func decodeEventCommon(r *wire.Reader) (Event, error) {
	var e Event
	var err error

	if e.ID, err = r.U32(); err != nil {
		return Event{}, wrapFieldError("Event", err)
	}
	if e.Revision, err = r.U8(); err != nil {
		return Event{}, wrapFieldError("Event", err)
	}
	if e.FastenTime, err = r.U16(); err != nil {
		return Event{}, wrapFieldError("Event", err)
	}
	if e.Preset, err = r.U8(); err != nil {
		return Event{}, wrapFieldError("Event", err)
	}
	if e.Unit, err = r.U8(); err != nil {
		return Event{}, wrapFieldError("Event", err)
	}
	if e.RemainScrew, err = r.U8(); err != nil {
		return Event{}, wrapFieldError("Event", err)
	}
	dir, err := r.U8()
	if err != nil {
		return Event{}, wrapFieldError("Event", err)
	}
	e.Direction = directionFromWire(dir)
	if e.Error, err = r.U8(); err != nil {
		return Event{}, wrapFieldError("Event", err)
	}
	if e.Status, err = r.U8(); err != nil {
		return Event{}, wrapFieldError("Event", err)
	}

	torques := []*float32{&e.TorqueTarget, &e.TorqueMeasured, &e.TorqueSeating, &e.TorqueClamp, &e.TorquePrevailing, &e.TorqueSnug}
	for _, t := range torques {
		v, err := r.F32()
		if err != nil {
			return Event{}, wrapFieldError("Event", err)
		}
		*t = v
	}

	if e.Speed, err = r.U16(); err != nil {
		return Event{}, wrapFieldError("Event", err)
	}
	if e.Angle1, err = r.U16(); err != nil {
		return Event{}, wrapFieldError("Event", err)
	}
	if e.Angle2, err = r.U16(); err != nil {
		return Event{}, wrapFieldError("Event", err)
	}
	if e.Angle3, err = r.U16(); err != nil {
		return Event{}, wrapFieldError("Event", err)
	}
	if e.SnugAngle, err = r.U16(); err != nil {
		return Event{}, wrapFieldError("Event", err)
	}
	if err := r.Skip(16); err != nil { // reserved
		return Event{}, wrapFieldError("Event", err)
	}
	if e.Barcode, err = r.ReadASCII(64); err != nil {
		return Event{}, wrapFieldError("Event", err)
	}
	if e.GraphChannel1Type, err = r.U8(); err != nil {
		return Event{}, wrapFieldError("Event", err)
	}
	if e.GraphChannel1Count, err = r.U16(); err != nil {
		return Event{}, wrapFieldError("Event", err)
	}
	if e.GraphChannel2Type, err = r.U8(); err != nil {
		return Event{}, wrapFieldError("Event", err)
	}
	if e.GraphChannel2Count, err = r.U16(); err != nil {
		return Event{}, wrapFieldError("Event", err)
	}
	if e.SamplingRate, err = r.U16(); err != nil {
		return Event{}, wrapFieldError("Event", err)
	}
	for i := 0; i < graphStepCount; i++ {
		id, err := r.U8()
		if err != nil {
			return Event{}, wrapFieldError("Event", err)
		}
		index, err := r.U16()
		if err != nil {
			return Event{}, wrapFieldError("Event", err)
		}
		e.GraphSteps[i] = GraphStep{ID: id, Index: index}
	}
	return e, nil
}

// DecodeEventGen2 parses the Gen2 event layout, which reads a full
// year/month/day/hour/minute/second/millisecond timestamp from the wire.
func DecodeEventGen2(data []byte) (Event, error) {
	if err := expectSize("Event(Gen2)", data, eventGen2Size); err != nil {
		return Event{}, err
	}
	r := wire.NewReader(data)

	year, err := r.U16()
	if err != nil {
		return Event{}, wrapFieldError("Event", err)
	}
	month, err := r.U8()
	if err != nil {
		return Event{}, wrapFieldError("Event", err)
	}
	day, err := r.U8()
	if err != nil {
		return Event{}, wrapFieldError("Event", err)
	}
	hour, err := r.U8()
	if err != nil {
		return Event{}, wrapFieldError("Event", err)
	}
	minute, err := r.U8()
	if err != nil {
		return Event{}, wrapFieldError("Event", err)
	}
	second, err := r.U8()
	if err != nil {
		return Event{}, wrapFieldError("Event", err)
	}
	ms, err := r.U16()
	if err != nil {
		return Event{}, wrapFieldError("Event", err)
	}

	e, err := decodeEventCommon(r)
	if err != nil {
		return Event{}, err
	}
	e.Generation = Gen2
	e.Time = time.Date(int(year), time.Month(month), int(day), int(hour), int(minute), int(second), int(ms)*1_000_000, time.UTC)

	if r.Remaining() != 0 {
		return Event{}, &DecodeError{Record: "Event(Gen2)", Expected: eventGen2Size - r.Remaining(), Got: eventGen2Size}
	}
	return e, nil
}

// decodeEventLegacy is shared by Gen1 and Gen1+: identical wire layout minus
// the Gen2 datetime field; the decoder's current time stands in for the
// event timestamp since the device never transmits one.
func decodeEventLegacy(data []byte, gen Generation) (Event, error) {
	if err := expectSize("Event(legacy)", data, eventLegacySize); err != nil {
		return Event{}, err
	}
	r := wire.NewReader(data)
	e, err := decodeEventCommon(r)
	if err != nil {
		return Event{}, err
	}
	e.Generation = gen
	e.Time = nowFunc()

	if r.Remaining() != 0 {
		return Event{}, &DecodeError{Record: "Event(legacy)", Expected: eventLegacySize - r.Remaining(), Got: eventLegacySize}
	}
	return e, nil
}

// DecodeEventGen1 parses the Gen1 event layout.
func DecodeEventGen1(data []byte) (Event, error) { return decodeEventLegacy(data, Gen1) }

// DecodeEventGen1Plus parses the Gen1+ event layout.
func DecodeEventGen1Plus(data []byte) (Event, error) { return decodeEventLegacy(data, Gen1Plus) }

// eventCSVColumns is the fixed column order ParseEventCSV expects, chosen in
// place of the source's CSV-with-culture-info approach, using an explicit
// enum-string table instead of global culture state.
var eventCSVColumns = []string{
	"id", "revision", "fastenTime", "preset", "unit", "remainScrew", "direction",
	"error", "status", "torqueTarget", "torqueMeasured", "torqueSeating",
	"torqueClamp", "torquePrevailing", "torqueSnug", "speed", "angle1", "angle2",
	"angle3", "snugAngle", "barcode",
}

var directionByName = map[string]Direction{
	"CW": DirectionCW, "CCW": DirectionCCW, "Unknown": DirectionUnknown,
}

// ParseEventCSV is Event's secondary constructor: a single CSV
// record (already split, e.g. by encoding/csv.Reader.Read) in the column
// order of eventCSVColumns. Floats parse as plain decimal ("English
// culture"); direction parses by name via directionByName. Returns the first
// parse failure as a human-readable error rather than a panic.
func ParseEventCSV(record []string) (Event, error) {
	if len(record) != len(eventCSVColumns) {
		return Event{}, fmt.Errorf("codec: event csv record has %d fields, want %d", len(record), len(eventCSVColumns))
	}
	col := func(i int) string { return strings.TrimSpace(record[i]) }

	parseUint := func(name string, i int, bits int) (uint64, error) {
		v, err := strconv.ParseUint(col(i), 10, bits)
		if err != nil {
			return 0, fmt.Errorf("codec: event csv field %q: %w", name, err)
		}
		return v, nil
	}
	parseFloat := func(name string, i int) (float32, error) {
		v, err := strconv.ParseFloat(col(i), 32)
		if err != nil {
			return 0, fmt.Errorf("codec: event csv field %q: %w", name, err)
		}
		return float32(v), nil
	}

	var e Event
	id, err := parseUint("id", 0, 32)
	if err != nil {
		return Event{}, err
	}
	e.ID = uint32(id)

	rev, err := parseUint("revision", 1, 8)
	if err != nil {
		return Event{}, err
	}
	e.Revision = uint8(rev)

	ft, err := parseUint("fastenTime", 2, 16)
	if err != nil {
		return Event{}, err
	}
	e.FastenTime = uint16(ft)

	preset, err := parseUint("preset", 3, 8)
	if err != nil {
		return Event{}, err
	}
	e.Preset = uint8(preset)

	unit, err := parseUint("unit", 4, 8)
	if err != nil {
		return Event{}, err
	}
	e.Unit = uint8(unit)

	remain, err := parseUint("remainScrew", 5, 8)
	if err != nil {
		return Event{}, err
	}
	e.RemainScrew = uint8(remain)

	dirName := col(6)
	dir, ok := directionByName[dirName]
	if !ok {
		return Event{}, fmt.Errorf("codec: event csv field %q: unrecognized direction %q", "direction", dirName)
	}
	e.Direction = dir

	errCode, err := parseUint("error", 7, 8)
	if err != nil {
		return Event{}, err
	}
	e.Error = uint8(errCode)

	status, err := parseUint("status", 8, 8)
	if err != nil {
		return Event{}, err
	}
	e.Status = uint8(status)

	floatFields := []struct {
		name string
		col int
		dst *float32
	}{
		{"torqueTarget", 9, &e.TorqueTarget},
		{"torqueMeasured", 10, &e.TorqueMeasured},
		{"torqueSeating", 11, &e.TorqueSeating},
		{"torqueClamp", 12, &e.TorqueClamp},
		{"torquePrevailing", 13, &e.TorquePrevailing},
		{"torqueSnug", 14, &e.TorqueSnug},
	}
	for _, f := range floatFields {
		v, err := parseFloat(f.name, f.col)
		if err != nil {
			return Event{}, err
		}
		*f.dst = v
	}

	speed, err := parseUint("speed", 15, 16)
	if err != nil {
		return Event{}, err
	}
	e.Speed = uint16(speed)

	uintFields := []struct {
		name string
		col int
		dst *uint16
	}{
		{"angle1", 16, &e.Angle1},
		{"angle2", 17, &e.Angle2},
		{"angle3", 18, &e.Angle3},
		{"snugAngle", 19, &e.SnugAngle},
	}
	for _, f := range uintFields {
		v, err := parseUint(f.name, f.col, 16)
		if err != nil {
			return Event{}, err
		}
		*f.dst = uint16(v)
	}

	e.Barcode = col(20)
	return e, nil
}

// ReadEventCSV reads the next CSV record from r and parses it with ParseEventCSV.
func ReadEventCSV(r *csv.Reader) (Event, error) {
	record, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return Event{}, err
		}
		return Event{}, fmt.Errorf("codec: event csv read: %w", err)
	}
	return ParseEventCSV(record)
}
