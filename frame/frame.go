// Package frame implements the telemetry wire format exchanged between the
// board and the host: ASCII decimal fields, tab separated, always 12
// positions, terminated by a single NUL byte. When the IMU is stale the nine
// IMU positions are present but empty, so consumers can keep indexing fields
// positionally.
package frame

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	// FieldCount is the fixed number of positions in a telemetry frame.
	FieldCount = 12
	// Terminator ends every frame. Frames never end in a newline; that
	// framing is reserved for status lines.
	Terminator byte = 0x00
)

// Frame is one telemetry snapshot, built fresh every emission cycle.
type Frame struct {
	Voltage float64

	// Acceleration (g)
	AX, AY, AZ float64
	// Angular velocity (deg/s)
	GX, GY, GZ float64
	// Euler angles (degrees)
	Roll, Pitch, Yaw float64

	RPM  int
	Gear int

	// IMUValid reports whether the IMU fields carry a current reading.
	// When false the nine IMU positions are emitted empty.
	IMUValid bool
}

// Record is a decoded frame on the receiving side. IMU fields are nil when
// the sender marked them stale; voltage is nil when its field was blank or
// garbled.
type Record struct {
	Voltage *float64

	AX, AY, AZ       *float64
	GX, GY, GZ       *float64
	Roll, Pitch, Yaw *float64

	RPM  int
	Gear int
}

// Encode renders the frame including its NUL terminator.
func Encode(f Frame) []byte {
	fields := make([]string, 0, FieldCount)
	fields = append(fields, formatFloat(f.Voltage))
	if f.IMUValid {
		for _, v := range []float64{f.AX, f.AY, f.AZ, f.GX, f.GY, f.GZ, f.Roll, f.Pitch, f.Yaw} {
			fields = append(fields, formatFloat(v))
		}
	} else {
		for i := 0; i < 9; i++ {
			fields = append(fields, "")
		}
	}
	fields = append(fields, strconv.Itoa(f.RPM), strconv.Itoa(f.Gear))

	out := []byte(strings.Join(fields, "\t"))
	return append(out, Terminator)
}

// Decode parses a frame body (terminator already stripped). Only a wrong
// field count rejects the frame; within a well-formed frame, fields that are
// empty or unparsable decode as nil rather than failing the whole record.
func Decode(line string) (*Record, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != FieldCount {
		return nil, errors.Errorf("unexpected field count: %v", len(fields))
	}

	rec := &Record{Voltage: parseOptional(fields[0])}
	imu := []**float64{&rec.AX, &rec.AY, &rec.AZ, &rec.GX, &rec.GY, &rec.GZ, &rec.Roll, &rec.Pitch, &rec.Yaw}
	for i, dst := range imu {
		*dst = parseOptional(fields[1+i])
	}
	rec.RPM = parseInt(fields[10])
	rec.Gear = parseInt(fields[11])
	return rec, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func parseOptional(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseInt(s string) int {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return int(v)
}
