package serow

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/smartserow/serow/comms"
	"github.com/smartserow/serow/frame"
	"github.com/smartserow/serow/voltage"
	"github.com/smartserow/serow/wt61"
)

type clock struct {
	t time.Time
}

func (c *clock) Now() time.Time { return c.t }

func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type imuStub struct {
	sample wt61.Sample
	fresh  bool
	polls  int
}

func (s *imuStub) Poll() int                { s.polls++; return 0 }
func (s *imuStub) Sample() wt61.Sample      { return s.sample }
func (s *imuStub) Fresh(time.Duration) bool { return s.fresh }

type fixedADC struct{ raw int }

func (a fixedADC) Read() int { return a.raw }

type fixedRPM struct{ rpm int }

func (r fixedRPM) RPM() int { return r.rpm }

func mkBoard(imu *imuStub, hostIn *bytes.Buffer) (*Board, *bytes.Buffer, *clock) {
	out := &bytes.Buffer{}
	b := NewBoard(imu,
		voltage.NewSampler(fixedADC{raw: 500}),
		fixedRPM{rpm: 3500},
		BandGear{},
		comms.NewChannel(out),
		hostIn)
	clk := &clock{t: time.Unix(1000, 0)}
	b.now = clk.Now
	return b, out, clk
}

func lastFrame(t *testing.T, out *bytes.Buffer) *frame.Record {
	parts := bytes.Split(out.Bytes(), []byte{frame.Terminator})
	// the final element is whatever followed the last terminator
	assert.True(t, len(parts) >= 2, "no complete frame emitted")
	rec, err := frame.Decode(string(parts[len(parts)-2]))
	assert.NoError(t, err)
	return rec
}

func TestEmitCadence(t *testing.T) {
	b, out, clk := mkBoard(&imuStub{}, &bytes.Buffer{})

	b.Step()
	assert.Equal(t, 1, bytes.Count(out.Bytes(), []byte{frame.Terminator}))

	// within the interval: no new frame
	clk.Advance(50 * time.Millisecond)
	b.Step()
	assert.Equal(t, 1, bytes.Count(out.Bytes(), []byte{frame.Terminator}))

	clk.Advance(50 * time.Millisecond)
	b.Step()
	assert.Equal(t, 2, bytes.Count(out.Bytes(), []byte{frame.Terminator}))
}

func TestStaleThenFresh(t *testing.T) {
	imu := &imuStub{
		sample: wt61.Sample{Roll: 12.5, Pitch: -3, Yaw: 45, AZ: 1},
	}
	b, out, clk := mkBoard(imu, &bytes.Buffer{})

	// stale: frame carries blank IMU fields but full positional shape
	b.Step()
	rec := lastFrame(t, out)
	assert.Nil(t, rec.Roll)
	assert.Nil(t, rec.AZ)
	assert.Equal(t, 3500, rec.RPM)
	assert.Equal(t, 2, rec.Gear)

	// one valid angle packet later the next cycle repopulates all fields
	imu.fresh = true
	clk.Advance(telemetryInterval)
	b.Step()
	rec = lastFrame(t, out)
	assert.Equal(t, 12.5, *rec.Roll)
	assert.Equal(t, -3.0, *rec.Pitch)
	assert.Equal(t, 45.0, *rec.Yaw)
	assert.Equal(t, 1.0, *rec.AZ)
}

func TestStepOrderDrainsBeforeEmit(t *testing.T) {
	imu := &imuStub{}
	b, _, _ := mkBoard(imu, &bytes.Buffer{})
	b.Step()
	assert.Equal(t, 1, imu.polls, "IMU drained every iteration")
	b.Step()
	assert.Equal(t, 2, imu.polls)
}

func TestCommandAck(t *testing.T) {
	hostIn := &bytes.Buffer{}
	hostIn.WriteString("PING\n")
	b, out, _ := mkBoard(&imuStub{}, hostIn)

	b.Step()
	assert.Contains(t, out.String(), "ACK: PING\n")
}

func TestHeartbeatCadence(t *testing.T) {
	b, _, clk := mkBoard(&imuStub{}, &bytes.Buffer{})

	var beats []bool
	b.OnHeartbeat(func(on bool) { beats = append(beats, on) })

	b.Step()
	assert.Equal(t, []bool{true}, beats)

	clk.Advance(100 * time.Millisecond)
	b.Step()
	assert.Len(t, beats, 1, "no toggle before the heartbeat interval")

	clk.Advance(heartbeatInterval)
	b.Step()
	assert.Equal(t, []bool{true, false}, beats)
}

func TestBandGear(t *testing.T) {
	g := BandGear{}
	assert.Equal(t, 0, g.Gear(800))
	assert.Equal(t, 1, g.Gear(1000))
	assert.Equal(t, 2, g.Gear(3000))
	assert.Equal(t, 3, g.Gear(4000))
	assert.Equal(t, 4, g.Gear(6000))
	assert.Equal(t, 5, g.Gear(7500))
}

func TestRampRPM(t *testing.T) {
	r := &RampRPM{}
	first := r.RPM()
	assert.Equal(t, 810, first)
	prev := first
	for i := 0; i < 10; i++ {
		cur := r.RPM()
		assert.Equal(t, prev+10, cur)
		prev = cur
	}
}

func TestSimFrameShape(t *testing.T) {
	// a full sim board produces well-formed fresh frames
	out := &bytes.Buffer{}
	b := NewBoard(NewSimIMU(),
		voltage.NewSampler(&SimADC{}),
		&RampRPM{},
		BandGear{},
		comms.NewChannel(out),
		&bytes.Buffer{})
	b.Step()

	body := strings.TrimSuffix(out.String(), string(frame.Terminator))
	rec, err := frame.Decode(body)
	assert.NoError(t, err)
	assert.NotNil(t, rec.Roll)
	assert.InDelta(t, 12.6, *rec.Voltage, 0.2)
}
