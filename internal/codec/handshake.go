package codec

import (
	"fmt"

	"duofernd/internal/frame"
)

// The handshake frames are bit-exact contracts (spec.md §6: "an
// implementation that changes any byte breaks compatibility"), built here
// as right-padded constant templates rather than inline literals so the
// padding arithmetic lives in one place.

// BuildInit1 is handshake step 1.
func BuildInit1() (frame.Frame, error) {
	return frame.FromHex(rightPad("0100"))
}

// BuildInit2 is handshake step 2.
func BuildInit2() (frame.Frame, error) {
	return frame.FromHex(rightPad("0E00"))
}

// BuildSetDongle is handshake step 3: registers the transceiver's own
// identity with itself.
func BuildSetDongle(dongle frame.DongleID) (frame.Frame, error) {
	return frame.FromHex(rightPad("0A" + dongle.String() + "0001"))
}

// BuildInit3 is handshake step 4.
func BuildInit3() (frame.Frame, error) {
	return frame.FromHex(rightPad("1414"))
}

// BuildSetPairs is handshake step 5, run once per device in the PairSet.
// counter is the device's 0-based index within the set, as one byte.
func BuildSetPairs(counter int, device frame.DeviceCode) (frame.Frame, error) {
	if counter < 0 || counter > 0xFF {
		return frame.Frame{}, fmt.Errorf("codec: pair counter %d out of byte range: %w", counter, ErrInvalidArgument)
	}
	return frame.FromHex(rightPad(fmt.Sprintf("03%02X%s00", counter, device.String())))
}

// BuildInitEnd is handshake step 6.
func BuildInitEnd() (frame.Frame, error) {
	return frame.FromHex(rightPad("1001"))
}

// rightPad right-pads a hex prefix with "00" bytes out to one full frame.
func rightPad(prefix string) string {
	if len(prefix) >= frame.HexLen {
		return prefix[:frame.HexLen]
	}
	return prefix + padZeros(frame.HexLen-len(prefix))
}
