package statusfields

import "strconv"

// StatusPrefix is the fixed 6-hex-char prefix that marks a status frame,
// per spec.md §4.5: "A status frame begins 0F FF 0F <format_byte>".
const StatusPrefix = "0FFF0F"

// Parse extracts a {name -> Value} mapping from a status frame's hex
// rendering, per spec.md §4.5. Unknown format bytes yield an empty map;
// fields absent from the format's ID list are not emitted.
func Parse(hexFrame string) map[string]Value {
	out := map[string]Value{}
	if len(hexFrame) < 8 || hexFrame[0:6] != StatusPrefix {
		return out
	}
	formatByte := hexFrame[6:8]
	ids := FieldIDsFor(FormatKey(formatByte))
	if ids == nil {
		return out
	}
	for _, id := range ids {
		def, ok := Lookup(id)
		if !ok {
			continue
		}
		raw, ok := extractWindow(hexFrame, def.Pos, def.BitFrom, def.BitTo)
		if !ok {
			continue
		}
		if def.InvertBase != nil {
			raw = *def.InvertBase - raw
		}
		out[def.Name] = def.Map.Apply(raw)
	}
	return out
}

// extractWindow reads the 16-bit big-endian window at hex offset 6+2*pos
// and returns the masked bit range [bitFrom, bitTo].
func extractWindow(hexFrame string, pos, bitFrom, bitTo int) (int, bool) {
	start := 6 + 2*pos
	end := start + 4
	if start < 0 || end > len(hexFrame) {
		return 0, false
	}
	raw16, err := strconv.ParseUint(hexFrame[start:end], 16, 16)
	if err != nil {
		return 0, false
	}
	width := bitTo - bitFrom + 1
	if width <= 0 || width > 16 {
		return 0, false
	}
	mask := (1 << width) - 1
	value := (int(raw16) >> bitFrom) & mask
	return value, true
}
