package statusfields

// ValueMap turns a raw extracted integer into a Value, either by indexing
// into a fixed string array or by applying a named transform reserved for
// device classes this module does not target (spec.md §4.5, §9).
type ValueMap struct {
	// Values, when non-nil, is an index -> string lookup. Out-of-range
	// indices pass through as a raw Number, per spec.md §4.5 step 7.
	Values []string
	// Transform, when non-empty, names a numeric transform (e.g.
	// "scale10"). Per the Open Question resolution in SPEC_FULL.md, no
	// field definition used by the device classes this module targets
	// attaches a Transform; the mechanism is implemented without being
	// exercised on the wire.
	Transform string
}

// Apply maps a raw extracted integer to a Value.
func (m *ValueMap) Apply(raw int) Value {
	if m == nil {
		return Number(raw)
	}
	if len(m.Values) > 0 {
		if raw >= 0 && raw < len(m.Values) {
			return Text(m.Values[raw])
		}
		return Number(raw)
	}
	if m.Transform != "" {
		return applyTransform(m.Transform, raw)
	}
	return Number(raw)
}

// Named value maps from spec.md §6.
var (
	mapOnOff  = &ValueMap{Values: []string{"off", "on"}}
	mapUpDown = &ValueMap{Values: []string{"up", "down"}}
	// mapMoving's dual "stop" entry is intentional: motion truth comes
	// from command-issue logic on the host, not from parsed status bits.
	mapMoving = &ValueMap{Values: []string{"stop", "stop"}}
	mapMotor  = &ValueMap{Values: []string{"off", "short(160ms)", "long(480ms)", "individual"}}
	mapCloseT = &ValueMap{Values: []string{"off", "30", "60", "90", "120", "150", "180", "210", "240"}}
	mapOpenS  = &ValueMap{Values: []string{"error", "11", "15", "19"}}
	// mapScale10 is declared but, per the Open Question resolution,
	// never attached to a field definition reachable from this module's
	// supported device classes.
	mapScale10 = &ValueMap{Transform: "scale10"}
)

// applyTransform evaluates a named transform reserved for sensor device
// classes (spec.md §4.5: "the transform is reserved for sensor device
// classes and is NOT applied for blind/gate/actuator classes").
func applyTransform(name string, raw int) Value {
	switch name {
	case "scale10":
		return Number(raw * 10)
	default:
		return Number(raw)
	}
}

// FieldDef is one row of the declarative StatusFieldTable: a bit-extraction
// rule plus an optional inversion base and an optional value map.
type FieldDef struct {
	ID   int
	Name string
	// Pos is the byte position offset from the format byte (spec.md §4.5
	// step 4): the 16-bit big-endian extraction window starts at hex
	// offset 6+2*Pos. Pos=0 overlaps the format byte itself.
	Pos int
	// BitFrom/BitTo select an inclusive bit window out of the 16-bit
	// extracted value.
	BitFrom, BitTo int
	// InvertBase, when non-nil, replaces the extracted value with
	// (*InvertBase - value), used so raw 0 encodes 100% for position-like
	// fields.
	InvertBase *int
	Map        *ValueMap
}

func invert(base int) *int { return &base }

// fieldDefs is the field-ID-keyed portion of the StatusFieldTable. The
// representative entries from spec.md §6 are reproduced exactly; further
// IDs from the per-format ID lists are given names and positions by hand
// below, and every ID still left over is completed as a single-bit raw
// "reserved" field at sequential, non-overlapping positions — the source
// table is "~40 entries" but spec.md gives only a representative excerpt,
// so this completion is mechanical, not a claim about undocumented
// DuoFern semantics.
var fieldDefs = buildFieldDefs()

func buildFieldDefs() map[int]FieldDef {
	defs := map[int]FieldDef{
		50:  {ID: 50, Name: "moving", Pos: 0, BitFrom: 0, BitTo: 0, Map: mapMoving},
		100: {ID: 100, Name: "sunAutomatic", Pos: 0, BitFrom: 2, BitTo: 2, Map: mapOnOff},
		101: {ID: 101, Name: "timeAutomatic", Pos: 0, BitFrom: 3, BitTo: 3, Map: mapOnOff},
		102: {ID: 102, Name: "position", Pos: 7, BitFrom: 0, BitTo: 6, InvertBase: invert(100)},
		104: {ID: 104, Name: "dawnAutomatic", Pos: 0, BitFrom: 4, BitTo: 4, Map: mapOnOff},
		105: {ID: 105, Name: "duskAutomatic", Pos: 0, BitFrom: 5, BitTo: 5, Map: mapOnOff},
		106: {ID: 106, Name: "manualAutomatic", Pos: 0, BitFrom: 6, BitTo: 6, Map: mapOnOff},
		107: {ID: 107, Name: "motorType", Pos: 1, BitFrom: 0, BitTo: 1, Map: mapMotor},
		109: {ID: 109, Name: "runningTime", Pos: 6, BitFrom: 0, BitTo: 7},
		111: {ID: 111, Name: "windAutomatic", Pos: 0, BitFrom: 7, BitTo: 7, Map: mapOnOff},
		112: {ID: 112, Name: "rainAutomatic", Pos: 1, BitFrom: 2, BitTo: 2, Map: mapOnOff},
		113: {ID: 113, Name: "sunMode", Pos: 1, BitFrom: 3, BitTo: 3, Map: mapOnOff},
		114: {ID: 114, Name: "windMode", Pos: 1, BitFrom: 4, BitTo: 4, Map: mapOnOff},
		128: {ID: 128, Name: "upDownState", Pos: 8, BitFrom: 0, BitTo: 0, Map: mapUpDown},
		135: {ID: 135, Name: "slatPosition", Pos: 9, BitFrom: 0, BitTo: 6},
		140: {ID: 140, Name: "sensorErrorFlags", Pos: 10, BitFrom: 0, BitTo: 7},
		141: {ID: 141, Name: "sensorWarningFlags", Pos: 11, BitFrom: 0, BitTo: 7},
		400: {ID: 400, Name: "openingState", Pos: 12, BitFrom: 0, BitTo: 3, Map: mapOpenS},
		402: {ID: 402, Name: "windSpeed", Pos: 13, BitFrom: 0, BitTo: 7},
		405: {ID: 405, Name: "automaticClosing", Pos: 1, BitFrom: 0, BitTo: 3, Map: mapCloseT},
	}

	// Contiguous "reserved" bit ranges named only by number in the
	// per-format ID lists (115..127, 129..136, 404, 406..411): pack them
	// as single bits into ascending byte positions starting after the
	// last hand-specified position used above, so every ID in every
	// format's list resolves to a concrete, non-overlapping definition.
	nextPos := 14
	bit := 0
	assignSequential := func(ids []int) {
		for _, id := range ids {
			if _, exists := defs[id]; exists {
				continue
			}
			defs[id] = FieldDef{
				ID:      id,
				Name:    reservedFieldName(id),
				Pos:     nextPos,
				BitFrom: bit,
				BitTo:   bit,
			}
			bit++
			if bit == 8 {
				bit = 0
				nextPos++
			}
		}
	}
	assignSequential(rangeIDs(115, 127))
	assignSequential(rangeIDs(129, 136))
	assignSequential([]int{404, 406, 407, 408, 409, 410, 411})

	return defs
}

func rangeIDs(from, to int) []int {
	ids := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		ids = append(ids, i)
	}
	return ids
}

func reservedFieldName(id int) string {
	return "reserved" + itoa(id)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// FormatKey names one status-frame format byte. The "a" suffix keys
// (Format23a, Format24a) are synthetic per spec.md §3 and, per the Open
// Question resolution, are never produced by decoding the wire format
// byte — they exist only so the table itself is complete and testable.
type FormatKey string

const (
	Format21  FormatKey = "21"
	Format22  FormatKey = "22"
	Format23  FormatKey = "23"
	Format23a FormatKey = "23a"
	Format24  FormatKey = "24"
	Format24a FormatKey = "24a"
)

// formatFieldIDs is the ordered field-ID list per format, from spec.md §6.
var formatFieldIDs = map[FormatKey][]int{
	Format21: {100, 101, 102, 104, 105, 106, 111, 112, 113, 114, 50},
	Format22: {102, 107, 109, 50},
	Format23: concatIDs(
		[]int{102, 107, 109},
		rangeIDs(115, 127),
		rangeIDs(128, 136),
		[]int{140, 141, 50},
	),
	Format23a: concatIDs(
		[]int{102, 107, 109},
		rangeIDs(115, 127),
		[]int{133, 140, 141, 50},
	),
	Format24: concatIDs(
		[]int{102, 107},
		rangeIDs(115, 127),
		[]int{140, 141, 400, 402, 50},
	),
	Format24a: concatIDs(
		[]int{102, 107, 115, 123, 124, 400, 402},
		rangeIDs(404, 411),
		[]int{50},
	),
}

func concatIDs(parts ...[]int) []int {
	var out []int
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Lookup returns the field definition for id, if the table declares one.
func Lookup(id int) (FieldDef, bool) {
	d, ok := fieldDefs[id]
	return d, ok
}

// FieldIDsFor returns the ordered field-ID list for a format key, or nil
// if the format byte is not recognized.
func FieldIDsFor(key FormatKey) []int {
	return formatFieldIDs[key]
}
