// Package host receives the board's byte stream, reconstructs frames and
// status lines, and republishes them as typed event streams with
// reconnect-on-failure semantics.
package host

import "time"

// Topic tags a typed event stream.
type Topic int

const (
	TopicArduino Topic = iota
	TopicGPS
	TopicStatus
	TopicAck
	TopicAlert
)

func (t Topic) String() string {
	switch t {
	case TopicArduino:
		return "arduino"
	case TopicGPS:
		return "gps"
	case TopicStatus:
		return "status"
	case TopicAck:
		return "ack"
	case TopicAlert:
		return "alert"
	}
	return "unknown"
}

// Event is one dispatched record on a topic.
type Event struct {
	Topic Topic
	Data  interface{}
}

// ArduinoData is one decoded telemetry frame. Fields the board blanked or
// garbled are nil; JSON then carries null, never NaN.
type ArduinoData struct {
	Voltage *float64 `json:"voltage"`

	AX *float64 `json:"ax"`
	AY *float64 `json:"ay"`
	AZ *float64 `json:"az"`
	GX *float64 `json:"gx"`
	GY *float64 `json:"gy"`
	GZ *float64 `json:"gz"`

	Roll  *float64 `json:"roll"`
	Pitch *float64 `json:"pitch"`
	Yaw   *float64 `json:"yaw"`

	RPM  int `json:"rpm"`
	Gear int `json:"gear"`

	Time string `json:"time"`
}

// GpsData is one position fix.
type GpsData struct {
	Latitude   float64 `json:"lat"`
	Longitude  float64 `json:"lon"`
	Altitude   float64 `json:"alt"`
	Speed      float64 `json:"speed"`
	Track      float64 `json:"track"`
	Satellites int     `json:"satellites"`
	Time       string  `json:"time"`
}

// Ack reports the board's response to a command.
type Ack struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Extra  string `json:"extra,omitempty"`
}

// Status is a human-readable key/value line from the board, also used for
// link-state transitions (key "arduino" or "gps").
type Status struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Alert is broadcast to every consumer, e.g. on an emergency trigger.
type Alert struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
