package serow

import (
	"math"
	"time"

	"github.com/smartserow/serow/wt61"
)

// Simulated peripherals for running the board loop without hardware.

// SimIMU synthesizes a gentle lean/shake pattern. Always fresh.
type SimIMU struct {
	start time.Time
	now   func() time.Time
}

func NewSimIMU() *SimIMU {
	return &SimIMU{start: time.Now(), now: time.Now}
}

func (s *SimIMU) Poll() int { return 1 }

func (s *SimIMU) Sample() wt61.Sample {
	t := s.now().Sub(s.start).Seconds()
	return wt61.Sample{
		AX:         0.05 * math.Sin(t*2),
		AY:         0.02 * math.Cos(t*3),
		AZ:         1.0,
		GX:         2 * math.Sin(t),
		GY:         1.5 * math.Cos(t),
		GZ:         0.5 * math.Sin(t/2),
		Roll:       25 * math.Sin(t/3),
		Pitch:      5 * math.Sin(t/5),
		Yaw:        math.Mod(t*10, 360) - 180,
		LastUpdate: s.now(),
	}
}

func (s *SimIMU) Fresh(time.Duration) bool { return true }

// SimADC produces a raw reading around a nominal battery voltage with a
// little ripple.
type SimADC struct {
	Volts float64
	step  float64
}

func (a *SimADC) Read() int {
	volts := a.Volts
	if volts == 0 {
		volts = 12.6
	}
	a.step += 0.1
	volts += 0.05 * math.Sin(a.step)
	// inverse of the sampler's divider math
	raw := (volts - 0.2) * (47.0 / 147.0) / 5.0 * 1023
	return int(raw)
}

// RampRPM sweeps between idle and redline, one step per read.
type RampRPM struct {
	rpm int
}

func (r *RampRPM) RPM() int {
	if r.rpm < 800 {
		r.rpm = 800
	}
	r.rpm += 10
	if r.rpm >= 8000 {
		r.rpm = 800
	}
	return r.rpm
}
