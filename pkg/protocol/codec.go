// Package protocol implements the UPS wire codec: it builds the fixed poll
// request and decodes the fixed-length response frame into a Reading.
//
// The device speaks a Modbus-RTU style register protocol. Register
// addresses, widths and scale factors below were derived from captured
// device traffic and are protocol constants, not configuration.
package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/kmatveev/upsmon/pkg/models"
)

const (
	stationAddress  = 0x0A
	funcReadHolding = 0x03

	// The poll reads one contiguous block of inverter registers.
	baseRegister  = 25201
	registerCount = 35

	payloadLength = registerCount * 2

	// ResponseLength is the exact size of a well-formed response frame:
	// station + function + byte count + payload + 2 CRC bytes.
	ResponseLength = 3 + payloadLength + 2
)

// Register offsets from baseRegister and their scale factors.
const (
	regWorkState      = 0  // line/battery discriminator
	regBatteryVoltage = 4  // raw / 10 -> volts
	regOutputVoltage  = 5  // raw / 10 -> volts
	regInputVoltage   = 6  // raw / 10 -> volts
	regLoadPower      = 14 // watts
	regLoadPercent    = 15 // percent
	regFrequency      = 24 // raw / 10 -> hertz
	regInputFrequency = 25 // raw / 10 -> hertz
	regBatteryLevel   = 28 // percent
	regTemperature    = 32 // degrees Celsius, signed
)

// Work-state register values observed on the wire. Anything else is an
// OutOfRange decode error: an unrecognized state must never be reported
// as mains power.
const (
	workStateLine    = 2
	workStateBattery = 3
)

// Wakeup probes observed on the wire: single-register reads against the
// station addresses the firmware family listens on. The device ignores
// its first requests after a quiet period; these nudge it until it
// answers polls reliably.
var wakeupProbes = []struct {
	station  byte
	register uint16
}{
	{0x01, 10000},
	{0x05, 20001},
	{0x06, 20001},
	{stationAddress, 30000},
}

// BuildPollRequest returns the fixed request frame for one poll.
func BuildPollRequest() []byte {
	return buildReadRequest(stationAddress, baseRegister, registerCount)
}

// WakeupFrames returns the probe frames sent once after the port opens,
// before the first poll. Responses, if any, are discarded.
func WakeupFrames() [][]byte {
	frames := make([][]byte, 0, len(wakeupProbes))

	for _, p := range wakeupProbes {
		frames = append(frames, buildReadRequest(p.station, p.register, 1))
	}

	return frames
}

func buildReadRequest(station byte, register, count uint16) []byte {
	req := make([]byte, 0, 8)
	req = append(req, station, funcReadHolding)
	req = binary.BigEndian.AppendUint16(req, register)
	req = binary.BigEndian.AppendUint16(req, count)

	sum := crc16(req)

	return append(req, byte(sum), byte(sum>>8))
}

// Decode validates a raw response frame and extracts a Reading.
//
// Decode is a pure function: it performs no I/O, holds no state, and the
// same bytes always produce the same Reading or the same error. CapturedAt
// is left zero; the caller stamps it at acquisition time.
func Decode(frame []byte) (models.Reading, error) {
	var reading models.Reading

	if len(frame) != ResponseLength {
		return reading, fmt.Errorf("%w: got %d bytes, want %d", ErrShortFrame, len(frame), ResponseLength)
	}

	if frame[0] != stationAddress || frame[1] != funcReadHolding || frame[2] != payloadLength {
		return reading, fmt.Errorf("%w: header % x", ErrBadFraming, frame[:3])
	}

	want := crc16(frame[:ResponseLength-2])
	got := uint16(frame[ResponseLength-2]) | uint16(frame[ResponseLength-1])<<8

	if want != got {
		return reading, fmt.Errorf("%w: got %#04x, want %#04x", ErrBadChecksum, got, want)
	}

	payload := frame[3 : 3+payloadLength]

	status, err := decodeWorkState(register(payload, regWorkState))
	if err != nil {
		return reading, err
	}

	reading.Status = status
	reading.BatteryVoltage = float64(register(payload, regBatteryVoltage)) / 10
	reading.OutputVoltage = float64(register(payload, regOutputVoltage)) / 10
	reading.InputVoltage = float64(register(payload, regInputVoltage)) / 10
	reading.LoadPower = int(register(payload, regLoadPower))
	reading.LoadPercent = int(register(payload, regLoadPercent))
	reading.Frequency = float64(register(payload, regFrequency)) / 10
	reading.InputFrequency = float64(register(payload, regInputFrequency)) / 10
	reading.BatteryLevel = int(uregister(payload, regBatteryLevel))
	reading.Temperature = float64(register(payload, regTemperature))

	return reading, nil
}

func decodeWorkState(raw int16) (models.Status, error) {
	switch raw {
	case workStateLine:
		return models.StatusOnline, nil
	case workStateBattery:
		return models.StatusOnBattery, nil
	default:
		return models.StatusUnknown, fmt.Errorf("%w: work state %d", ErrOutOfRange, raw)
	}
}

// register extracts the signed big-endian register at the given offset.
func register(payload []byte, offset int) int16 {
	return int16(binary.BigEndian.Uint16(payload[offset*2:]))
}

// uregister extracts the unsigned big-endian register at the given offset.
func uregister(payload []byte, offset int) uint16 {
	return binary.BigEndian.Uint16(payload[offset*2:])
}
