// Package serow is the sensor-acquisition core of the motorcycle dashboard:
// it samples battery voltage and a serial IMU, frames the readings into
// periodic telemetry records and answers commands from the host.
package serow

import (
	"context"
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/smartserow/serow/comms"
	"github.com/smartserow/serow/frame"
	"github.com/smartserow/serow/voltage"
	"github.com/smartserow/serow/wt61"
)

const (
	telemetryInterval = 100 * time.Millisecond
	heartbeatInterval = 500 * time.Millisecond
	imuFreshTimeout   = 200 * time.Millisecond

	loopIdle = time.Millisecond
)

// IMU is the board's view of the inertial sensor.
type IMU interface {
	// Poll drains available bytes into the decoder; bounded work per call.
	Poll() int
	Sample() wt61.Sample
	Fresh(timeout time.Duration) bool
}

type RPMSource interface {
	RPM() int
}

type GearSource interface {
	Gear(rpm int) int
}

// Board runs the cooperative acquisition loop: drain IMU bytes, drain
// command bytes, then emit telemetry and toggle the heartbeat on their
// schedules. Everything is touched from this single loop; no locks.
type Board struct {
	imu    IMU
	volts  *voltage.Sampler
	rpm    RPMSource
	gear   GearSource
	ch     *comms.Channel
	hostIn io.Reader

	heartbeat func(on bool)
	beatOn    bool
	lastEmit  time.Time
	lastBeat  time.Time

	cmdBuf [64]byte
	now    func() time.Time
}

func NewBoard(imu IMU, volts *voltage.Sampler, rpm RPMSource, gear GearSource, ch *comms.Channel, hostIn io.Reader) *Board {
	return &Board{
		imu:    imu,
		volts:  volts,
		rpm:    rpm,
		gear:   gear,
		ch:     ch,
		hostIn: hostIn,
		now:    time.Now,
	}
}

// OnHeartbeat registers the heartbeat indicator, toggled every 500ms.
func (b *Board) OnHeartbeat(fn func(on bool)) {
	b.heartbeat = fn
}

// Step runs one loop iteration against the current clock.
func (b *Board) Step() {
	now := b.now()

	b.imu.Poll()
	b.drainCommands()

	if now.Sub(b.lastEmit) >= telemetryInterval {
		b.lastEmit = now
		b.emit()
	}
	if now.Sub(b.lastBeat) >= heartbeatInterval {
		b.lastBeat = now
		b.beatOn = !b.beatOn
		if b.heartbeat != nil {
			b.heartbeat(b.beatOn)
		}
	}
}

// Run drives Step until the context is done. Pacing comes from the read
// timeouts on the underlying ports plus a small idle sleep.
func (b *Board) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		b.Step()
		time.Sleep(loopIdle)
	}
}

func (b *Board) drainCommands() {
	n, err := b.hostIn.Read(b.cmdBuf[:])
	if err != nil && err != io.EOF {
		log.WithField("err", err).Warn("host link read failed")
		return
	}
	if n > 0 {
		b.ch.Feed(b.cmdBuf[:n])
	}

	cmd := b.ch.Command()
	if cmd == "" {
		return
	}
	log.WithField("cmd", cmd).Info("command received")
	if err := b.ch.SendStatus("ACK", cmd); err != nil {
		log.WithField("err", err).Warn("unable to acknowledge command")
	}
}

func (b *Board) emit() {
	rpm := b.rpm.RPM()
	s := b.imu.Sample()
	f := frame.Frame{
		Voltage:  b.volts.Read(),
		AX:       s.AX,
		AY:       s.AY,
		AZ:       s.AZ,
		GX:       s.GX,
		GY:       s.GY,
		GZ:       s.GZ,
		Roll:     s.Roll,
		Pitch:    s.Pitch,
		Yaw:      s.Yaw,
		RPM:      rpm,
		Gear:     b.gear.Gear(rpm),
		IMUValid: b.imu.Fresh(imuFreshTimeout),
	}
	if err := b.ch.SendFrame(f); err != nil {
		log.WithField("err", err).Warn("unable to send telemetry frame")
	}
}
