package codec

import "duofernd/internal/frame"

// Kind distinguishes how a dispatcher should treat an inbound frame.
type Kind int

const (
	// KindAck is a pure acknowledgement: advance the outbound queue, do
	// not auto-ACK, do not dispatch further.
	KindAck Kind = iota
	// KindPaired reports a device join; carries a DeviceCode.
	KindPaired
	// KindUnpaired reports a device leave; carries a DeviceCode.
	KindUnpaired
	// KindMessage is a device-originated message requiring auto-ACK
	// before dispatch.
	KindMessage
)

// AckFrame is the constant raw ACK frame written both as the handshake's
// unconditional ACK and as the dispatcher's auto-ACK (spec.md §4.2, §4.3).
var AckFrame = mustConstFrame("81" + padZeros(42))

func mustConstFrame(hex string) frame.Frame {
	f, err := frame.FromHex(hex)
	if err != nil {
		panic(err)
	}
	return f
}

func padZeros(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '0'
	}
	return string(b)
}

// Classified is the result of classifying one inbound frame.
type Classified struct {
	Kind   Kind
	Device frame.DeviceCode // set for KindPaired / KindUnpaired
}

// Classify inspects an inbound frame structurally: by leading byte(s) and
// total length, never by regex (spec.md §9).
func Classify(f frame.Frame) Classified {
	hex := f.Hex()
	if len(hex) == frame.HexLen && hex[0:2] == "81" {
		return Classified{Kind: KindAck}
	}
	if len(hex) == frame.HexLen && hex[0:4] == "0602" {
		dev, err := frame.ParseDeviceCode(hex[30:36])
		if err == nil {
			return Classified{Kind: KindPaired, Device: dev}
		}
	}
	if len(hex) == frame.HexLen && hex[0:4] == "0603" {
		dev, err := frame.ParseDeviceCode(hex[30:36])
		if err == nil {
			return Classified{Kind: KindUnpaired, Device: dev}
		}
	}
	return Classified{Kind: KindMessage}
}

// IsStatusFrame reports whether a message frame is a status report, per
// spec.md §4.6: the first 6 hex chars equal "0FFF0F".
func IsStatusFrame(f frame.Frame) bool {
	hex := f.Hex()
	return len(hex) >= 6 && hex[0:6] == "0FFF0F"
}

// StatusDeviceCode extracts the device code at hex offset 30..36 from a
// status frame, per spec.md §4.6.
func StatusDeviceCode(f frame.Frame) (frame.DeviceCode, error) {
	hex := f.Hex()
	if len(hex) < 36 {
		return "", ErrInvalidArgument
	}
	return frame.ParseDeviceCode(hex[30:36])
}
