package wt61

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// Configuration commands, sent as 0xFF 0xAA <cmd>.
const (
	cmdResetYaw  byte = 0x52
	cmdFlatMount byte = 0x65
	cmdRate20Hz  byte = 0x64 // 9600 baud, 20Hz report rate
)

const (
	configBaud = 115200 // device default out of the box
	reportBaud = 9600   // after cmdRate20Hz

	pollTimeout = 5 * time.Millisecond
	pollBudget  = 4 // reads per Poll, bounds work per loop iteration
)

// to allow testing
var portOpen = func(name string, mode *serial.Mode) (serial.Port, error) {
	return serial.Open(name, mode)
}

// Connection owns the IMU serial port and feeds its decoder.
type Connection struct {
	port serial.Port
	dec  *Decoder
	buf  [64]byte
}

// Connect opens the port, configures the device for 20Hz reporting and flat
// mounting, and leaves the port at the report baud rate.
func Connect(portName string) (*Connection, error) {
	port, err := portOpen(portName, &serial.Mode{BaudRate: configBaud})
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open imu port %s", portName)
	}
	c := &Connection{
		port: port,
		dec:  NewDecoder(),
	}
	if err := c.configure(); err != nil {
		_ = port.Close()
		return nil, err
	}
	if err := port.SetReadTimeout(pollTimeout); err != nil {
		_ = port.Close()
		return nil, errors.Wrap(err, "unable to set imu read timeout")
	}
	log.WithField("port", portName).Info("imu connected")
	return c, nil
}

// configure issues the setup sequence at the factory baud rate and again at
// the report rate, since the device may be in either state after a power
// cycle.
func (c *Connection) configure() error {
	for _, baud := range []int{configBaud, reportBaud} {
		if err := c.port.SetMode(&serial.Mode{BaudRate: baud}); err != nil {
			return errors.Wrapf(err, "unable to set imu baud rate %v", baud)
		}
		for _, cmd := range []byte{cmdResetYaw, cmdFlatMount} {
			if err := c.SendCommand(cmd); err != nil {
				return err
			}
			time.Sleep(50 * time.Millisecond)
		}
		if err := c.SendCommand(cmdRate20Hz); err != nil {
			return err
		}
		// let the device process the rate switch
		time.Sleep(150 * time.Millisecond)
	}
	return nil
}

// SendCommand writes one 3-byte configuration command to the device.
func (c *Connection) SendCommand(cmd byte) error {
	_, err := c.port.Write([]byte{0xFF, 0xAA, cmd})
	return errors.Wrap(err, "unable to write imu command")
}

// Poll drains currently-available bytes into the decoder and returns the
// number of packets decoded. Work per call is bounded so the board loop
// stays responsive.
func (c *Connection) Poll() int {
	decoded := 0
	for i := 0; i < pollBudget; i++ {
		n, err := c.port.Read(c.buf[:])
		if err != nil {
			log.WithField("err", err).Warn("imu read failed")
			return decoded
		}
		if n == 0 {
			return decoded
		}
		decoded += c.dec.Feed(c.buf[:n])
	}
	return decoded
}

// Calibrate blocks until the decoder has averaged its zero-point offsets or
// the context expires.
func (c *Connection) Calibrate(ctx context.Context) error {
	return c.dec.Calibrate(ctx, c.port)
}

func (c *Connection) Sample() Sample {
	return c.dec.Sample()
}

func (c *Connection) Fresh(timeout time.Duration) bool {
	return c.dec.Fresh(timeout)
}

func (c *Connection) Close() error {
	return c.port.Close()
}
