// Package wt61 decodes the binary packet stream of a WT61 6-axis IMU and
// manages its zero-point calibration.
//
// The device emits 11-byte packets: 0x55 header, a type byte, three
// little-endian signed 16-bit values, two temperature bytes (ignored) and an
// additive 8-bit checksum over the first ten bytes.
package wt61

import (
	"context"
	"encoding/binary"
	"io"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	// PacketHeader starts every packet; the decoder resynchronizes on it.
	PacketHeader byte = 0x55
	// PacketSize is the fixed packet length including header and checksum.
	PacketSize = 11
)

// PacketType identifies which value triple a packet carries.
type PacketType byte

const (
	PacketAccel PacketType = 0x51
	PacketGyro  PacketType = 0x52
	PacketAngle PacketType = 0x53
)

// Full-scale factors from the WT61 datasheet.
const (
	accelScale = 16.0 / 32768.0
	gyroScale  = 2000.0 / 32768.0
	angleScale = 180.0 / 32768.0
)

const calibrationSamples = 5

// Sample is the decoder's view of the sensor. LastUpdate advances only when
// an angle packet decodes; angle packets are the freshness heartbeat.
type Sample struct {
	// Acceleration (g)
	AX, AY, AZ float64
	// Angular velocity (deg/s)
	GX, GY, GZ float64
	// Euler angles (degrees)
	Roll, Pitch, Yaw float64

	LastUpdate time.Time
}

// Offsets holds zero-point calibration values, subtracted per-axis at read
// time.
type Offsets struct {
	AX, AY, AZ       float64
	GX, GY, GZ       float64
	Roll, Pitch, Yaw float64
}

// Decoder is the packet state machine. It is not safe for concurrent use;
// the board loop owns it.
type Decoder struct {
	buf [PacketSize]byte
	n   int

	data       Sample
	offsets    Offsets
	calibrated bool

	now func() time.Time
}

func NewDecoder() *Decoder {
	return &Decoder{now: time.Now}
}

// Feed consumes raw bytes and returns the number of packets decoded. Bytes
// before a header are discarded; packets with a bad checksum or unknown type
// are dropped without breaking framing.
func (d *Decoder) Feed(p []byte) int {
	decoded := 0
	for _, b := range p {
		if _, ok := d.feedByte(b); ok {
			decoded++
		}
	}
	return decoded
}

func (d *Decoder) feedByte(b byte) (PacketType, bool) {
	if d.n == 0 {
		if b == PacketHeader {
			d.buf[0] = b
			d.n = 1
		}
		return 0, false
	}

	d.buf[d.n] = b
	d.n++
	if d.n < PacketSize {
		return 0, false
	}
	// fixed length consumed regardless of validity; framing stays aligned
	d.n = 0
	return d.decodePacket()
}

func (d *Decoder) decodePacket() (PacketType, bool) {
	if !checksumOK(d.buf[:]) {
		log.WithField("type", d.buf[1]).Debug("dropping imu packet with bad checksum")
		return 0, false
	}

	v0 := int16(binary.LittleEndian.Uint16(d.buf[2:4]))
	v1 := int16(binary.LittleEndian.Uint16(d.buf[4:6]))
	v2 := int16(binary.LittleEndian.Uint16(d.buf[6:8]))
	// bytes 8-9 are temperature, unused

	t := PacketType(d.buf[1])
	switch t {
	case PacketAccel:
		d.data.AX = float64(v0) * accelScale
		d.data.AY = float64(v1) * accelScale
		d.data.AZ = float64(v2) * accelScale
	case PacketGyro:
		d.data.GX = float64(v0) * gyroScale
		d.data.GY = float64(v1) * gyroScale
		d.data.GZ = float64(v2) * gyroScale
	case PacketAngle:
		d.data.Roll = float64(v0) * angleScale
		d.data.Pitch = float64(v1) * angleScale
		d.data.Yaw = float64(v2) * angleScale
		d.data.LastUpdate = d.now()
	default:
		log.WithField("type", d.buf[1]).Debug("unknown imu packet type")
		return t, false
	}
	return t, true
}

func checksumOK(p []byte) bool {
	var sum byte
	for _, b := range p[:PacketSize-1] {
		sum += b
	}
	return sum == p[PacketSize-1]
}

// Sample returns a copy of the current data with calibration offsets
// applied. The subtraction happens on every call; the underlying data is
// never mutated.
func (d *Decoder) Sample() Sample {
	s := d.data
	if !d.calibrated {
		return s
	}
	s.AX -= d.offsets.AX
	s.AY -= d.offsets.AY
	s.AZ -= d.offsets.AZ
	s.GX -= d.offsets.GX
	s.GY -= d.offsets.GY
	s.GZ -= d.offsets.GZ
	s.Roll -= d.offsets.Roll
	s.Pitch -= d.offsets.Pitch
	s.Yaw -= d.offsets.Yaw
	return s
}

// Fresh reports whether an angle packet arrived within the timeout.
func (d *Decoder) Fresh(timeout time.Duration) bool {
	if d.data.LastUpdate.IsZero() {
		return false
	}
	return d.now().Sub(d.data.LastUpdate) < timeout
}

// Calibrated reports whether zero-point offsets are in effect.
func (d *Decoder) Calibrated() bool {
	return d.calibrated
}

// Calibrate blocks reading src until five distinct angle packets have been
// observed, then stores their per-axis averages as zero-point offsets. The
// context bounds the wait; on cancellation the decoder stays uncalibrated
// and the caller proceeds with raw readings.
func (d *Decoder) Calibrate(ctx context.Context, src io.Reader) error {
	var sum Offsets
	count := 0
	last := d.data.LastUpdate
	buf := make([]byte, 64)

	for count < calibrationSamples {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "imu calibration incomplete")
		}

		n, err := src.Read(buf)
		for _, b := range buf[:n] {
			d.feedByte(b)
			if d.data.LastUpdate.Equal(last) {
				continue
			}
			// new angle packet: LastUpdate only changes on angle decode
			last = d.data.LastUpdate
			sum.AX += d.data.AX
			sum.AY += d.data.AY
			sum.AZ += d.data.AZ
			sum.GX += d.data.GX
			sum.GY += d.data.GY
			sum.GZ += d.data.GZ
			sum.Roll += d.data.Roll
			sum.Pitch += d.data.Pitch
			sum.Yaw += d.data.Yaw
			count++
			if count >= calibrationSamples {
				break
			}
		}
		if err != nil && count < calibrationSamples {
			return errors.Wrap(err, "imu calibration read")
		}
	}

	n := float64(calibrationSamples)
	d.offsets = Offsets{
		AX: sum.AX / n, AY: sum.AY / n, AZ: sum.AZ / n,
		GX: sum.GX / n, GY: sum.GY / n, GZ: sum.GZ / n,
		Roll: sum.Roll / n, Pitch: sum.Pitch / n, Yaw: sum.Yaw / n,
	}
	d.calibrated = true
	return nil
}
