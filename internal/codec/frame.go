// Package codec builds outbound DuoFern wire frames from a fixed command
// catalog and classifies inbound frames by structural inspection, never by
// regex (spec.md §9: "A principled re-implementation classifies by
// inspecting the first byte... and validating total length").
package codec

import (
	"errors"
	"fmt"
	"strings"

	"duofernd/internal/frame"
)

// ErrInvalidArgument is returned for out-of-range command parameters.
var ErrInvalidArgument = errors.New("codec: invalid argument")

const (
	startByte  = "0D"
	padHex     = "000000000000000000" // 18 hex zeros
	zeroDongle = "000000"
	defaultSfx = "00"
	statusSfx  = "01"
)

// buildDeviceFrame assembles the 22-byte device-addressed layout from
// spec.md §4.4: start byte, channel, 8-char command body, 18-char pad,
// dongle id (or zeroDongle), device code (or broadcast), suffix byte.
func buildDeviceFrame(ch string, cmdBody string, dongle string, device frame.DeviceCode, sfx string) (frame.Frame, error) {
	if len(cmdBody) != 8 {
		return frame.Frame{}, fmt.Errorf("codec: command body %q is not 8 hex chars: %w", cmdBody, ErrInvalidArgument)
	}
	hex := startByte + ch + cmdBody + padHex + dongle + string(device) + sfx
	return frame.FromHex(hex)
}

// BuildCommand builds a device-addressed command frame for one of the
// fixed catalog entries that take no parameter.
func BuildCommand(name string, ch string, dongle frame.DongleID, device frame.DeviceCode) (frame.Frame, error) {
	body, ok := commandBodies[name]
	if !ok {
		return frame.Frame{}, fmt.Errorf("codec: unknown command %q: %w", name, ErrInvalidArgument)
	}
	return buildDeviceFrame(ch, body, dongle.String(), device, defaultSfx)
}

// BuildLevelCommand builds a command whose template carries the "nn"
// placeholder (position, slatPosition, sunPosition, ventilatingPosition),
// substituting level (0..100) as its plain hex byte value, per spec.md
// §4.4's worked example: 50 -> "32".
func BuildLevelCommand(name string, ch string, dongle frame.DongleID, device frame.DeviceCode, level int) (frame.Frame, error) {
	tmpl, ok := levelCommandTemplates[name]
	if !ok {
		return frame.Frame{}, fmt.Errorf("codec: unknown level command %q: %w", name, ErrInvalidArgument)
	}
	if level < 0 || level > 100 {
		return frame.Frame{}, fmt.Errorf("codec: level %d out of range 0..100: %w", level, ErrInvalidArgument)
	}
	body := strings.Replace(tmpl, "nn", fmt.Sprintf("%02X", level), 1)
	return buildDeviceFrame(ch, body, dongle.String(), device, defaultSfx)
}

// BuildAutomatic builds an on/off frame for one of the seven automatics
// named in spec.md §4.4 ("sun/time/dawn/dusk/manual/wind/rain"). The
// source's exact per-automatic sub-code byte is not reproduced in full in
// the catalog excerpt; this assigns sub-codes by the automatics' declared
// ordering (see DESIGN.md) rather than guessing undocumented literals.
func BuildAutomatic(name string, on bool, ch string, dongle frame.DongleID, device frame.DeviceCode) (frame.Frame, error) {
	sub, ok := automaticSubCodes[name]
	if !ok {
		return frame.Frame{}, fmt.Errorf("codec: unknown automatic %q: %w", name, ErrInvalidArgument)
	}
	tail := "FD"
	if !on {
		tail = "FE"
	}
	body := fmt.Sprintf("08%02X00%s", sub, tail)
	return buildDeviceFrame(ch, body, dongle.String(), device, defaultSfx)
}

// BuildStatusRequest builds the device-addressed status-request frame,
// which uses channel FF, no dongle id, and suffix 01 regardless of the
// caller-supplied defaults (spec.md §4.4).
func BuildStatusRequest(device frame.DeviceCode) (frame.Frame, error) {
	return buildDeviceFrame("FF", commandBodies["statusRequest"], zeroDongle, device, statusSfx)
}

// BuildStatusRequestBroadcast builds the broadcast status-request frame
// used at handshake step 7 (spec.md §4.2 step 7).
func BuildStatusRequestBroadcast() (frame.Frame, error) {
	return BuildStatusRequest(frame.BroadcastCode)
}

// BuildRemotePair builds the two identical-but-for-suffix frames that
// register a hand remote against a device (spec.md §4.4, "Remote-pair
// frames"). Both frames must be submitted, in order.
func BuildRemotePair(ch string, dongle frame.DongleID, device frame.DeviceCode) ([2]frame.Frame, error) {
	var pair [2]frame.Frame
	first, err := buildDeviceFrame(ch, remotePairBody, dongle.String(), device, "00")
	if err != nil {
		return pair, err
	}
	second, err := buildDeviceFrame(ch, remotePairBody, dongle.String(), device, "01")
	if err != nil {
		return pair, err
	}
	pair[0], pair[1] = first, second
	return pair, nil
}

const remotePairBody = "06010000"

var commandBodies = map[string]string{
	"up":            "07010000",
	"down":          "07030000",
	"stop":          "07020000",
	"toggle":        "071A0000",
	"sunModeOn":     "070801FF",
	"sunModeOff":    "070A0100",
	"windModeOn":    "070D01FF",
	"windModeOff":   "070E0100",
	"rainModeOn":    "071101FF",
	"rainModeOff":   "07120100",
	"statusRequest": "0F400000",
}

var levelCommandTemplates = map[string]string{
	"position":            "070700nn",
	"slatPosition":        "071B00nn",
	"sunPosition":         "080100nn",
	"ventilatingPosition": "080200nn",
}

// automaticSubCodes assigns each named automatic a sub-code byte, ordered
// to match the StatusFieldTable's automatic field ordering (sun, time,
// dawn, dusk, manual, wind, rain) — see DESIGN.md.
var automaticSubCodes = map[string]int{
	"sun":    0x00,
	"time":   0x01,
	"dawn":   0x02,
	"dusk":   0x03,
	"manual": 0x04,
	"wind":   0x05,
	"rain":   0x06,
}

// ventilatingModeBody selects the literal ventilating-mode on/off bodies
// given in the catalog (distinct from the generic automatic encoding).
func ventilatingModeBody(on bool) string {
	if on {
		return "080200FD"
	}
	return "080200FE"
}

// BuildVentilatingMode builds the ventilating-mode on/off frame.
func BuildVentilatingMode(on bool, ch string, dongle frame.DongleID, device frame.DeviceCode) (frame.Frame, error) {
	return buildDeviceFrame(ch, ventilatingModeBody(on), dongle.String(), device, defaultSfx)
}
