package host

import (
	"context"
	"sync"
	"testing"

	"github.com/jd3nn1s/skytraq"
	"github.com/stretchr/testify/assert"
)

type gpsStub struct {
	callbacks skytraq.Callbacks
	startChan chan struct{}
	fnChan    chan func()
}

func createGPSStub() *gpsStub {
	return &gpsStub{
		startChan: make(chan struct{}),
		fnChan:    make(chan func()),
	}
}

func (s *gpsStub) Close() error {
	return nil
}

func (s *gpsStub) Start(ctx context.Context, c skytraq.Callbacks) error {
	s.callbacks = c
	s.startChan <- struct{}{}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-s.fnChan:
			fn()
		}
	}
}

func mkGPSSource() (*GPSSource, *Hub, *Subscription) {
	hub := NewHub()
	sub := hub.Subscribe(TopicGPS, TopicStatus)
	g := NewGPSSource("/dev/testgps", hub)
	g.now = fixedTime
	return g, hub, sub
}

func TestRunGPS(t *testing.T) {
	defer noDelays()()
	g, _, sub := mkGPSSource()

	origGPSConnect := gpsConnect
	defer func() {
		gpsConnect = origGPSConnect
	}()

	stub := createGPSStub()
	gpsConnect = func(p string) (GPS, error) {
		return stub, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		_ = g.Run(ctx)
		wg.Done()
	}()
	<-stub.startChan

	assert.True(t, g.Connected())
	assert.Equal(t, Status{Key: "gps", Value: "connected"}, (<-sub.C).Data)

	stub.fnChan <- func() {
		stub.callbacks.NavData(skytraq.NavData{
			Fix:            skytraq.Fix3D,
			SatelliteCount: 7,
			Latitude:       123456789,
			Longitude:      987654321,
			Altitude:       12345,
			VX:             5,
			VY:             7,
			HDOP:           9,
		})
	}

	ev := <-sub.C
	assert.Equal(t, TopicGPS, ev.Topic)
	data := ev.Data.(GpsData)
	assert.Equal(t, 12.3456789, data.Latitude)
	assert.Equal(t, 98.7654321, data.Longitude)
	assert.Equal(t, 123.45, data.Altitude)
	assert.Equal(t, 7, data.Satellites)

	cancel()
	wg.Wait()
}

func TestNavDataFn(t *testing.T) {
	g, _, sub := mkGPSSource()

	navData := skytraq.NavData{
		Fix:            skytraq.FixNone,
		SatelliteCount: 1,
		Latitude:       2,
		Longitude:      3,
		Altitude:       4,
		VX:             5,
		VY:             7,
		HDOP:           9,
	}

	g.navDataFn(navData)
	assertNoEvent(t, sub, "unexpected data as there is no fix")

	navData.Fix = skytraq.Fix3D
	g.navDataFn(navData)
	data := (<-sub.C).Data.(GpsData)
	assert.Equal(t, float64(8.602325267042627), data.Speed)
	assert.InDelta(t, 35.5376778, data.Track, 0.0001)
	assert.Equal(t, "2024-06-01T12:00:00Z", data.Time)

	navData.HDOP = maxHDOP + 1
	g.navDataFn(navData)
	assertNoEvent(t, sub, "unexpected data as there is high HDOP")

	// no velocity should report a zero track
	navData.HDOP = 0
	navData.VX = 0
	navData.VY = 0
	g.navDataFn(navData)
	data = (<-sub.C).Data.(GpsData)
	assert.Equal(t, float64(0), data.Track)
}
