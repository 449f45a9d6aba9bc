package statusfields

import (
	"strings"
	"testing"
)

func zeroPayloadFrame(formatByte string) string {
	return "0FFF0F" + formatByte + strings.Repeat("0", 44-8)
}

func TestParseFormat21ZeroFrame(t *testing.T) {
	got := Parse(zeroPayloadFrame("21"))

	want := map[string]Value{
		"moving":          Text("stop"),
		"sunAutomatic":    Text("off"),
		"timeAutomatic":   Text("off"),
		"position":        Number(100),
		"dawnAutomatic":   Text("off"),
		"duskAutomatic":   Text("off"),
		"manualAutomatic": Text("off"),
		"windAutomatic":   Text("off"),
	}
	for name, wantVal := range want {
		gotVal, ok := got[name]
		if !ok {
			t.Fatalf("missing field %q in %v", name, got)
		}
		if !gotVal.Equal(wantVal) {
			t.Errorf("field %q = %v, want %v", name, gotVal, wantVal)
		}
	}
}

func TestParsePosition(t *testing.T) {
	// position field lives at hex offset 6+2*7=20, 4 hex chars, low 7 bits,
	// inverted against 100. raw 0x0032 (50) -> 100-50=50.
	hx := []byte(zeroPayloadFrame("21"))
	copy(hx[20:24], []byte("0032"))

	got := Parse(string(hx))
	pos, ok := got["position"]
	if !ok {
		t.Fatal("missing position field")
	}
	if pos.Int() != 50 {
		t.Errorf("position = %d, want 50", pos.Int())
	}
}

func TestParseUnknownFormatByte(t *testing.T) {
	got := Parse(zeroPayloadFrame("FF"))
	if len(got) != 0 {
		t.Errorf("Parse with unknown format byte = %v, want empty", got)
	}
}

func TestParseTooShort(t *testing.T) {
	got := Parse("0FFF0F")
	if len(got) != 0 {
		t.Errorf("Parse of truncated frame = %v, want empty", got)
	}
}

func TestParseNotStatusFrame(t *testing.T) {
	got := Parse(strings.Repeat("0", 44))
	if len(got) != 0 {
		t.Errorf("Parse of non-status frame = %v, want empty", got)
	}
}

func TestParseFormat22MotorType(t *testing.T) {
	hx := []byte(zeroPayloadFrame("22"))
	// motorType lives at pos1 bits0-1; pos1 window is hex[8:12].
	copy(hx[8:12], []byte("0002"))

	got := Parse(string(hx))
	mt, ok := got["motorType"]
	if !ok {
		t.Fatal("missing motorType field")
	}
	if !mt.Equal(Text("long(480ms)")) {
		t.Errorf("motorType = %v, want long(480ms)", mt)
	}
}

func TestFieldIDsForUnknownFormat(t *testing.T) {
	if ids := FieldIDsFor("99"); ids != nil {
		t.Errorf("FieldIDsFor(99) = %v, want nil", ids)
	}
}

func TestLookupReservedFields(t *testing.T) {
	def, ok := Lookup(120)
	if !ok {
		t.Fatal("expected reserved field 120 to be defined")
	}
	if def.Name != "reserved120" {
		t.Errorf("reserved field 120 name = %q, want reserved120", def.Name)
	}
}

func TestValueMapApplyOutOfRange(t *testing.T) {
	v := mapOnOff.Apply(5)
	if v.IsText() {
		t.Errorf("out-of-range map index produced text %v, want raw number", v)
	}
	if v.Int() != 5 {
		t.Errorf("out-of-range map index = %d, want 5", v.Int())
	}
}
