//go:build !no_mqtt

package host

import (
	"io"
	"log/slog"
	"testing"

	"duofernd/internal/frame"
)

type fakeSubmitter struct {
	submitted []frame.Frame
}

func (f *fakeSubmitter) Submit(fr frame.Frame) { f.submitted = append(f.submitted, fr) }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustDongle(t *testing.T) frame.DongleID {
	t.Helper()
	d, err := frame.ParseDongleID("6F1234")
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func mustDevice(t *testing.T) frame.DeviceCode {
	t.Helper()
	d, err := frame.ParseDeviceCode("49ABCD")
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestBuildFrameSimpleCommand(t *testing.T) {
	g := &Gateway{dongle: mustDongle(t), logger: testLogger()}
	f, err := g.buildFrame(command{Command: "up"}, mustDevice(t))
	if err != nil {
		t.Fatal(err)
	}
	if f.At(0, 4) != "0D01" {
		t.Errorf("frame prefix = %s, want 0D01", f.At(0, 4))
	}
}

func TestBuildFrameLevelCommandRequiresLevel(t *testing.T) {
	g := &Gateway{dongle: mustDongle(t), logger: testLogger()}
	if _, err := g.buildFrame(command{Command: "position"}, mustDevice(t)); err == nil {
		t.Fatal("expected error for missing level")
	}
	level := 50
	f, err := g.buildFrame(command{Command: "position", Level: &level}, mustDevice(t))
	if err != nil {
		t.Fatal(err)
	}
	if f.At(4, 12) != "07070032" {
		t.Errorf("command body = %s, want 07070032", f.At(4, 12))
	}
}

func TestBuildFrameAutomaticRequiresOn(t *testing.T) {
	g := &Gateway{dongle: mustDongle(t), logger: testLogger()}
	if _, err := g.buildFrame(command{Command: "automatic", Name: "sun"}, mustDevice(t)); err == nil {
		t.Fatal("expected error for missing on")
	}
	on := true
	if _, err := g.buildFrame(command{Command: "automatic", Name: "sun", On: &on}, mustDevice(t)); err != nil {
		t.Fatal(err)
	}
}

func TestBuildFrameUnknownCommand(t *testing.T) {
	g := &Gateway{dongle: mustDongle(t), logger: testLogger()}
	if _, err := g.buildFrame(command{Command: "nonsense"}, mustDevice(t)); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestHandleCommandSubmitsFrame(t *testing.T) {
	sub := &fakeSubmitter{}
	g := &Gateway{dongle: mustDongle(t), logger: testLogger(), disp: sub}

	g.handleCommand("duofern/cmd/49ABCD", []byte(`{"command":"stop"}`))

	if len(sub.submitted) != 1 {
		t.Fatalf("submitted = %d frames, want 1", len(sub.submitted))
	}
}

func TestHandleCommandInvalidDeviceCode(t *testing.T) {
	sub := &fakeSubmitter{}
	g := &Gateway{dongle: mustDongle(t), logger: testLogger(), disp: sub}

	g.handleCommand("duofern/cmd/ZZZZZZ", []byte(`{"command":"stop"}`))

	if len(sub.submitted) != 0 {
		t.Fatalf("submitted = %d frames, want 0 for invalid device code", len(sub.submitted))
	}
}

func TestHandleCommandInvalidJSON(t *testing.T) {
	sub := &fakeSubmitter{}
	g := &Gateway{dongle: mustDongle(t), logger: testLogger(), disp: sub}

	g.handleCommand("duofern/cmd/49ABCD", []byte(`not json`))

	if len(sub.submitted) != 0 {
		t.Fatalf("submitted = %d frames, want 0 for invalid JSON", len(sub.submitted))
	}
}

func TestMustJSON(t *testing.T) {
	out := mustJSON(map[string]string{"a": "b"})
	if string(out) != `{"a":"b"}` {
		t.Errorf("mustJSON = %s, want {\"a\":\"b\"}", out)
	}
}
