// Package comms is the board's duplex link to the host: line-delimited
// commands in, telemetry frames and status lines out.
//
// The two outbound shapes use different framing so a host reader can keep
// them apart in one stream: telemetry frames end in a NUL byte, everything
// else ends in a newline.
package comms

import (
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/smartserow/serow/frame"
)

const (
	cmdBufSize = 64

	// DefaultConnectedWindow is the inbound-activity window used to decide
	// whether the host is still there.
	DefaultConnectedWindow = 5 * time.Second
)

// Channel accumulates inbound command bytes and writes outbound messages.
// Not safe for concurrent use; the board loop owns it.
type Channel struct {
	w io.Writer

	buf   [cmdBufSize]byte
	n     int
	cmd   string
	ready bool

	lastRx time.Time
	now    func() time.Time
}

func NewChannel(w io.Writer) *Channel {
	return &Channel{w: w, now: time.Now}
}

// Feed consumes inbound bytes. A newline or carriage return terminates the
// pending command; bytes past the buffer capacity are silently dropped until
// the next terminator. Returns true if a complete command became available.
func (c *Channel) Feed(p []byte) bool {
	got := false
	for _, b := range p {
		c.lastRx = c.now()

		if b == '\n' || b == '\r' {
			if c.n > 0 {
				c.cmd = string(c.buf[:c.n])
				c.ready = true
				c.n = 0
				got = true
			}
			continue
		}
		if c.n < cmdBufSize-1 {
			c.buf[c.n] = b
			c.n++
		}
	}
	return got
}

// Command returns the last complete command and clears it; empty string if
// none is pending.
func (c *Channel) Command() string {
	if !c.ready {
		return ""
	}
	c.ready = false
	return c.cmd
}

// Connected reports whether any inbound byte arrived within the window.
// Outbound telemetry does not count as activity.
func (c *Channel) Connected(window time.Duration) bool {
	if c.lastRx.IsZero() {
		return false
	}
	return c.now().Sub(c.lastRx) < window
}

// SendStatus writes a human-readable "key: value" line.
func (c *Channel) SendStatus(key string, value interface{}) error {
	_, err := fmt.Fprintf(c.w, "%s: %v\n", key, value)
	return errors.Wrap(err, "unable to write status line")
}

// SendFrame writes one NUL-terminated telemetry frame.
func (c *Channel) SendFrame(f frame.Frame) error {
	_, err := c.w.Write(frame.Encode(f))
	return errors.Wrap(err, "unable to write telemetry frame")
}
