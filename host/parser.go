package host

import (
	"regexp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/smartserow/serow/frame"
)

// Structured ack from newer firmware: "ACK:CMD:STATUS" or "ACK:CMD:STATUS:extra".
var ackPattern = regexp.MustCompile(`^ACK:(\w+):(\w+)(?::(.*))?$`)

// Parser classifies tokens from the serial stream and publishes typed
// records. Malformed input is dropped, never surfaced as an error.
type Parser struct {
	hub *Hub
	now func() time.Time
}

func NewParser(hub *Hub) *Parser {
	return &Parser{hub: hub, now: time.Now}
}

// Dispatch consumes one token (frame body or line, terminator stripped).
func (p *Parser) Dispatch(token string) {
	line := strings.TrimSpace(token)
	if line == "" {
		return
	}

	if m := ackPattern.FindStringSubmatch(line); m != nil {
		p.hub.Publish(TopicAck, Ack{
			ID:     strings.ToLower(m[1]),
			Status: strings.ToLower(m[2]),
			Extra:  m[3],
		})
		return
	}

	if strings.ContainsRune(line, '\t') {
		rec, err := frame.Decode(line)
		if err != nil {
			log.WithField("err", err).Debug("dropping malformed telemetry frame")
			return
		}
		p.hub.Publish(TopicArduino, arduinoData(rec, p.now()))
		return
	}

	if key, value, ok := strings.Cut(line, ": "); ok {
		if key == "ACK" {
			// legacy echo form: "ACK: <original command>"
			p.hub.Publish(TopicAck, echoAck(value))
			return
		}
		p.hub.Publish(TopicStatus, Status{Key: key, Value: value})
		return
	}

	log.WithField("line", line).Debug("dropping unrecognized line")
}

func arduinoData(rec *frame.Record, now time.Time) ArduinoData {
	d := ArduinoData{
		Voltage: rec.Voltage,
		AX:      rec.AX,
		AY:      rec.AY,
		AZ:      rec.AZ,
		GX:      rec.GX,
		GY:      rec.GY,
		GZ:      rec.GZ,
		Roll:    rec.Roll,
		// mounting orientation: pitch and yaw are inverted on the
		// motorcycle frame, roll is left as-is
		Pitch: negate(rec.Pitch),
		Yaw:   negate(rec.Yaw),
		RPM:   rec.RPM,
		Gear:  rec.Gear,
		Time:  timestamp(now),
	}
	return d
}

func negate(v *float64) *float64 {
	if v == nil {
		return nil
	}
	n := -*v
	return &n
}

// echoAck maps the board's plain command echo onto the ack record shape.
func echoAck(echoed string) Ack {
	name := strings.TrimPrefix(echoed, "CMD:")
	if i := strings.IndexAny(name, ": "); i >= 0 {
		name = name[:i]
	}
	return Ack{
		ID:     strings.ToLower(name),
		Status: "ok",
		Extra:  echoed,
	}
}
