package motocan

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"

	"github.com/brutella/can"
	"github.com/stretchr/testify/assert"
)

type busStub struct {
	disconnected bool
	subscribed   bool
	stopChan     chan struct{}
	startedChan  chan struct{}
}

func (bus *busStub) SubscribeFunc(can.HandlerFunc) {
	bus.subscribed = true
}

func (bus *busStub) ConnectAndPublish() error {
	bus.startedChan <- struct{}{}
	<-bus.stopChan
	return nil
}

func (bus *busStub) Disconnect() error {
	bus.disconnected = true
	bus.stopChan <- struct{}{}
	return nil
}

func TestConnect(t *testing.T) {
	origNewBus := newBus
	bus := &busStub{
		stopChan: make(chan struct{}, 1),
	}
	newBus = func(string) (CANBus, error) {
		return bus, nil
	}
	defer func() {
		newBus = origNewBus
	}()

	c, err := Connect("fakecan")
	assert.NotNil(t, c)
	assert.NoError(t, err)
	assert.IsType(t, &busStub{}, c.bus)

	assert.NoError(t, c.Close())
	assert.True(t, bus.disconnected)
}

func TestStart(t *testing.T) {
	bus := &busStub{
		stopChan:    make(chan struct{}),
		startedChan: make(chan struct{}),
	}

	c := &Connection{bus: bus}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		assert.NoError(t, c.Start(ctx, Callbacks{}))
		wg.Done()
	}()
	<-bus.startedChan
	assert.True(t, bus.subscribed)
	cancel()
	wg.Wait()
}

func TestHandleFrame(t *testing.T) {
	data := struct {
		RPM  int
		Gear int
	}{}

	c := &Connection{
		cb: Callbacks{
			RPM: func(v int) {
				data.RPM = v
			},
			Gear: func(v int) {
				data.Gear = v
			},
		},
	}
	expectedData := data

	buf := [8]byte{}
	binary.LittleEndian.PutUint16(buf[0:2], 4500)
	c.handleFrame(can.Frame{
		ID:     frameRPM,
		Length: 2,
		Data:   buf,
	})
	expectedData.RPM = 4500
	assert.Equal(t, expectedData, data)

	c.handleFrame(can.Frame{
		ID:     frameGear,
		Length: 1,
		Data:   [8]byte{3},
	})
	expectedData.Gear = 3
	assert.Equal(t, expectedData, data)

	// unknown CAN frame
	c.handleFrame(can.Frame{
		ID: 0x400,
	})
	assert.Equal(t, expectedData, data)

	// wrong length
	c.handleFrame(can.Frame{
		ID:     frameRPM,
		Length: 1,
	})
	assert.Equal(t, expectedData, data)
}

func TestSource(t *testing.T) {
	src := &Source{}
	cb := src.Callbacks()

	cb.RPM(3200)
	cb.Gear(4)
	assert.Equal(t, 3200, src.RPM())
	assert.Equal(t, 4, src.Gear(3200))

	cb.RPM(3300)
	assert.Equal(t, 3300, src.RPM())
}

func TestUint16Result(t *testing.T) {
	_, err := uint16Result(can.Frame{})
	assert.Error(t, err)

	buf := [8]byte{}
	binary.LittleEndian.PutUint16(buf[0:2], 300)
	n, err := uint16Result(can.Frame{
		Length: 2,
		Data:   buf,
	})
	assert.NoError(t, err)
	assert.Equal(t, 300, n)
}

func TestByteResult(t *testing.T) {
	_, err := byteResult(can.Frame{})
	assert.Error(t, err)

	n, err := byteResult(can.Frame{
		Length: 1,
		Data:   [8]byte{5},
	})
	assert.NoError(t, err)
	assert.Equal(t, 5, n)
}
