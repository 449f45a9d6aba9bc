package codec

import (
	"testing"

	"duofernd/internal/frame"
)

func mustDongle(t *testing.T, s string) frame.DongleID {
	t.Helper()
	d, err := frame.ParseDongleID(s)
	if err != nil {
		t.Fatalf("ParseDongleID(%q): %v", s, err)
	}
	return d
}

func mustDevice(t *testing.T, s string) frame.DeviceCode {
	t.Helper()
	d, err := frame.ParseDeviceCode(s)
	if err != nil {
		t.Fatalf("ParseDeviceCode(%q): %v", s, err)
	}
	return d
}

func TestBuildCommandUp(t *testing.T) {
	f, err := BuildCommand("up", "01", mustDongle(t, "6F1234"), mustDevice(t, "49ABCD"))
	if err != nil {
		t.Fatal(err)
	}
	want := "0D01070100000000000000000000006F123449ABCD00"
	if f.Hex() != want {
		t.Errorf("up frame = %s, want %s", f.Hex(), want)
	}
}

func TestBuildLevelCommandPosition50(t *testing.T) {
	f, err := BuildLevelCommand("position", "01", mustDongle(t, "6F1234"), mustDevice(t, "49ABCD"), 50)
	if err != nil {
		t.Fatal(err)
	}
	want := "0D01070700320000000000000000006F123449ABCD00"
	if f.Hex() != want {
		t.Errorf("position(50) frame = %s, want %s", f.Hex(), want)
	}
}

func TestBuildLevelCommandOutOfRange(t *testing.T) {
	_, err := BuildLevelCommand("position", "01", mustDongle(t, "6F1234"), mustDevice(t, "49ABCD"), 101)
	if err == nil {
		t.Fatal("expected error for level > 100")
	}
}

func TestBuildStatusRequestBroadcast(t *testing.T) {
	f, err := BuildStatusRequestBroadcast()
	if err != nil {
		t.Fatal(err)
	}
	want := "0DFF0F400000000000000000000000000000FFFFFF01"
	if f.Hex() != want {
		t.Errorf("broadcast status request = %s, want %s", f.Hex(), want)
	}
}

func TestBuildRemotePairAlternatesSuffix(t *testing.T) {
	pair, err := BuildRemotePair("01", mustDongle(t, "6F1234"), mustDevice(t, "49ABCD"))
	if err != nil {
		t.Fatal(err)
	}
	if pair[0].At(42, 44) != "00" || pair[1].At(42, 44) != "01" {
		t.Errorf("remote pair suffixes = %q, %q, want 00, 01", pair[0].At(42, 44), pair[1].At(42, 44))
	}
	if pair[0].At(4, 12) != remotePairBody || pair[1].At(4, 12) != remotePairBody {
		t.Error("remote pair frames must share the same command body")
	}
}

func TestBuildCommandUnknown(t *testing.T) {
	if _, err := BuildCommand("not-a-command", "01", mustDongle(t, "6F1234"), mustDevice(t, "49ABCD")); err == nil {
		t.Fatal("expected error for unknown command name")
	}
}

func TestAutomaticOnOffTail(t *testing.T) {
	on, err := BuildAutomatic("sun", true, "01", mustDongle(t, "6F1234"), mustDevice(t, "49ABCD"))
	if err != nil {
		t.Fatal(err)
	}
	off, err := BuildAutomatic("sun", false, "01", mustDongle(t, "6F1234"), mustDevice(t, "49ABCD"))
	if err != nil {
		t.Fatal(err)
	}
	if on.At(10, 12) != "FD" {
		t.Errorf("automatic-on tail = %s, want FD", on.At(10, 12))
	}
	if off.At(10, 12) != "FE" {
		t.Errorf("automatic-off tail = %s, want FE", off.At(10, 12))
	}
}
