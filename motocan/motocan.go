// Package motocan reads engine rpm and gear position frames from the
// motorcycle's CAN bus.
package motocan

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/brutella/can"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	frameRPM  uint32 = 0x200
	frameGear uint32 = 0x201
)

type IntResultFn func(v int)

type Callbacks struct {
	RPM  IntResultFn
	Gear IntResultFn
}

type CANBus interface {
	SubscribeFunc(can.HandlerFunc)
	ConnectAndPublish() error
	Disconnect() error
}

// to allow testing
var newBus = func(ifName string) (CANBus, error) {
	return can.NewBusForInterfaceWithName(ifName)
}

type Connection struct {
	bus CANBus
	cb  Callbacks
}

func Connect(ifName string) (*Connection, error) {
	bus, err := newBus(ifName)
	if err != nil {
		return nil, err
	}
	return &Connection{bus: bus}, nil
}

func (c *Connection) Start(ctx context.Context, cb Callbacks) error {
	c.cb = cb
	c.bus.SubscribeFunc(c.handleFrame)
	log.Info("CAN bus opened and subscribed")

	go func() {
		<-ctx.Done()
		log.Infof("stopping can bus: %v", ctx.Err())
		if err := c.bus.Disconnect(); err != nil {
			log.WithField("err", err).Warn("unable to disconnect canbus after context")
		}
	}()

	return c.bus.ConnectAndPublish()
}

func (c *Connection) Close() error {
	if c.bus == nil {
		return errors.New("can bus not connected")
	}
	return c.bus.Disconnect()
}

func (c *Connection) handleFrame(frame can.Frame) {
	log.WithField("canID", frame.ID).
		WithField("length", frame.Length).
		Debug("received canbus frame")

	var cb IntResultFn
	var v int
	var err error

	switch frame.ID {
	case frameRPM:
		cb = c.cb.RPM
		v, err = uint16Result(frame)
	case frameGear:
		cb = c.cb.Gear
		v, err = byteResult(frame)
	default:
		log.WithField("canID", frame.ID).
			Error("unknown canID")
		return
	}

	if err != nil {
		log.Error("unable to convert canbus frame value ", err)
		return
	}
	if cb == nil {
		log.WithField("canID", frame.ID).Debug("no callback registered")
		return
	}
	cb(v)
}

func uint16Result(frame can.Frame) (int, error) {
	if frame.Length != 2 {
		return 0, errors.Errorf("incorrect frame size for uint16: %v", frame.Length)
	}
	return int(binary.LittleEndian.Uint16(frame.Data[0:2])), nil
}

func byteResult(frame can.Frame) (int, error) {
	if frame.Length != 1 {
		return 0, errors.Errorf("incorrect frame size for byte: %v", frame.Length)
	}
	return int(frame.Data[0]), nil
}

// Source adapts the CAN callbacks into the latest-value rpm/gear sources the
// board loop reads.
type Source struct {
	mu   sync.Mutex
	rpm  int
	gear int
}

func (s *Source) Callbacks() Callbacks {
	return Callbacks{
		RPM: func(v int) {
			s.mu.Lock()
			s.rpm = v
			s.mu.Unlock()
		},
		Gear: func(v int) {
			s.mu.Lock()
			s.gear = v
			s.mu.Unlock()
		},
	}
}

func (s *Source) RPM() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rpm
}

// Gear returns the last reported gear position. The rpm argument exists for
// sources that derive gear from it; here it is ignored.
func (s *Source) Gear(int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gear
}
