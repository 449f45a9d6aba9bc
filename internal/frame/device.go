package frame

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidArgument is returned by every parser/constructor in this
// package when input fails validation, matching spec.md §4.4's
// "Construction fails with InvalidArgument otherwise."
var ErrInvalidArgument = errors.New("invalid argument")

// dongleIDPattern matches a dongle id: 6 hex chars, first byte 0x6F.
var dongleIDPattern = regexp.MustCompile(`^6F[0-9A-Fa-f]{4}$`)

// deviceCodePattern matches any 6-hex-character device code.
var deviceCodePattern = regexp.MustCompile(`^[0-9A-Fa-f]{6}$`)

// DongleID identifies the USB transceiver. Always 6 uppercase hex chars
// beginning with "6F".
type DongleID string

// ParseDongleID validates s against ^6F[0-9A-Fa-f]{4}$ and normalizes case.
func ParseDongleID(s string) (DongleID, error) {
	if !dongleIDPattern.MatchString(s) {
		return "", fmt.Errorf("frame: invalid dongle id %q: %w", s, ErrInvalidArgument)
	}
	return DongleID(strings.ToUpper(s)), nil
}

func (d DongleID) String() string { return string(d) }

// DeviceCode identifies a paired DuoFern device. Always 6 uppercase hex
// characters. The leading byte classifies the device type (see Class).
type DeviceCode string

// BroadcastCode is the reserved code addressing all devices at once. It
// must never appear in a PairSet.
const BroadcastCode DeviceCode = "FFFFFF"

// ParseDeviceCode validates s against ^[0-9A-Fa-f]{6}$ and normalizes case.
func ParseDeviceCode(s string) (DeviceCode, error) {
	if !deviceCodePattern.MatchString(s) {
		return "", fmt.Errorf("frame: invalid device code %q: %w", s, ErrInvalidArgument)
	}
	return DeviceCode(strings.ToUpper(s)), nil
}

func (d DeviceCode) String() string { return string(d) }

// IsBroadcast reports whether d is the reserved broadcast code.
func (d DeviceCode) IsBroadcast() bool { return d == BroadcastCode }

// DeviceClass classifies a DeviceCode by its leading byte.
type DeviceClass string

const (
	ClassSimpleBlind   DeviceClass = "simple_blind"
	ClassVenetianBlind DeviceClass = "venetian_blind"
	ClassGate          DeviceClass = "gate"
	ClassActuator      DeviceClass = "actuator"
	ClassDimmer        DeviceClass = "dimmer"
	ClassSensor        DeviceClass = "sensor"
	ClassThermostat    DeviceClass = "thermostat"
	ClassRemote        DeviceClass = "remote"
	ClassUnknown       DeviceClass = "unknown"
)

// classByLeadingByte is the opaque device-type classification side table
// from spec.md §3. It is intentionally the only thing this module knows
// about "what a device is" — per-device semantic role/unit metadata used
// to publish states to a host is out of scope (spec.md §1).
var classByLeadingByte = map[byte]DeviceClass{
	0x40: ClassSimpleBlind, 0x41: ClassSimpleBlind, 0x49: ClassSimpleBlind,
	0x61: ClassSimpleBlind, 0x62: ClassSimpleBlind, 0x47: ClassSimpleBlind,

	0x42: ClassVenetianBlind, 0x4B: ClassVenetianBlind, 0x4C: ClassVenetianBlind,
	0x70: ClassVenetianBlind,

	0x4E: ClassGate,

	0x43: ClassActuator, 0x46: ClassActuator, 0x71: ClassActuator,

	0x48: ClassDimmer, 0x4A: ClassDimmer,

	0x65: ClassSensor, 0x69: ClassSensor, 0xA5: ClassSensor, 0xA9: ClassSensor,
	0xAA: ClassSensor, 0xAB: ClassSensor, 0xAC: ClassSensor, 0xAF: ClassSensor,

	0x73: ClassThermostat, 0xE1: ClassThermostat,

	0x74: ClassRemote, 0xA0: ClassRemote, 0xA1: ClassRemote, 0xA2: ClassRemote,
	0xA3: ClassRemote, 0xA4: ClassRemote, 0xA7: ClassRemote, 0xA8: ClassRemote,
	0xAD: ClassRemote, 0xE0: ClassRemote,
}

// Class classifies d by its leading byte. Returns ClassUnknown for the
// broadcast code or any code whose leading byte is not in the table.
func (d DeviceCode) Class() DeviceClass {
	if len(d) < 2 {
		return ClassUnknown
	}
	b, err := strconv.ParseUint(string(d[:2]), 16, 8)
	if err != nil {
		return ClassUnknown
	}
	if class, ok := classByLeadingByte[byte(b)]; ok {
		return class
	}
	return ClassUnknown
}
